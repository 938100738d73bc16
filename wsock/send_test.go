package wsock

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func TestEncodeSingle_ClientMasksServerDoesNot(t *testing.T) {
	wire, err := encodeSingle(RoleClient, opcodeText, []byte("hi"))
	if err != nil {
		t.Fatalf("encodeSingle: %v", err)
	}
	if wire[1]&0x80 == 0 {
		t.Error("client frame must carry MASK=1")
	}

	wire, err = encodeSingle(RoleServer, opcodeText, []byte("hi"))
	if err != nil {
		t.Fatalf("encodeSingle: %v", err)
	}
	if wire[1]&0x80 != 0 {
		t.Error("server frame must not be masked")
	}
}

func TestEncodeFragmentStart_FINZero(t *testing.T) {
	wire, err := encodeFragmentStart(RoleServer, opcodeBinary, []byte("chunk1"))
	if err != nil {
		t.Fatalf("encodeFragmentStart: %v", err)
	}
	if wire[0]&0x80 != 0 {
		t.Error("fragment start must have FIN=0")
	}
	if wire[0]&0x0F != opcodeBinary {
		t.Errorf("opcode = 0x%X, want 0x%X", wire[0]&0x0F, opcodeBinary)
	}
}

func TestEncodeFragment_ContinuationOpcode(t *testing.T) {
	wire, err := encodeFragment(RoleServer, []byte("chunk2"), false)
	if err != nil {
		t.Fatalf("encodeFragment: %v", err)
	}
	if wire[0]&0x0F != opcodeContinuation {
		t.Errorf("opcode = 0x%X, want continuation", wire[0]&0x0F)
	}
	if wire[0]&0x80 != 0 {
		t.Error("non-final fragment must have FIN=0")
	}

	last, err := encodeFragment(RoleServer, []byte("chunk3"), true)
	if err != nil {
		t.Fatalf("encodeFragment: %v", err)
	}
	if last[0]&0x80 == 0 {
		t.Error("final fragment must have FIN=1")
	}
}

func TestEncodeClose_PayloadLayout(t *testing.T) {
	wire, err := encodeClose(RoleServer, CloseNormalClosure, "bye")
	if err != nil {
		t.Fatalf("encodeClose: %v", err)
	}

	r := bufio.NewReader(bytes.NewReader(wire))
	f, err := decodeHeader(r, maxFramePayload)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if f.opcode != opcodeClose {
		t.Fatalf("opcode = 0x%X, want close", f.opcode)
	}
	if got := uint16BE(f.payload[:2]); CloseCode(got) != CloseNormalClosure {
		t.Errorf("code = %d, want %d", got, CloseNormalClosure)
	}
	if string(f.payload[2:]) != "bye" {
		t.Errorf("reason = %q, want %q", f.payload[2:], "bye")
	}
}

func TestEncodeClose_InvalidUTF8Reason(t *testing.T) {
	if _, err := encodeClose(RoleServer, CloseNormalClosure, string([]byte{0xff, 0xfe})); err != ErrInvalidUTF8 {
		t.Errorf("err = %v, want %v", err, ErrInvalidUTF8)
	}
}

// CloseNoStatusReceived, CloseAbnormalClosure, and CloseTLSHandshake are
// internal-use-only markers per RFC 6455 Section 7.4.1 and must never be
// serialized onto the wire.
func TestEncodeClose_RejectsReservedCodes(t *testing.T) {
	reserved := []CloseCode{CloseNoStatusReceived, CloseAbnormalClosure, CloseTLSHandshake}
	for _, code := range reserved {
		if _, err := encodeClose(RoleServer, code, ""); !errors.Is(err, ErrReservedCloseCode) {
			t.Errorf("encodeClose(%v) err = %v, want wrapping %v", code, err, ErrReservedCloseCode)
		}
	}
}

// A fragmented text message's first chunk may end mid-rune when maxChunk
// splits a multibyte character; the whole message is validated as UTF-8
// before chunking, so encoding each individual chunk must not re-validate.
func TestChunkFragments_MultibyteRuneSplitAcrossChunks(t *testing.T) {
	data := []byte("héllo") // 'é' is two bytes; maxChunk=2 splits it mid-rune
	frames, err := chunkFragments(RoleServer, opcodeText, data, 2)
	if err != nil {
		t.Fatalf("chunkFragments: %v", err)
	}

	var reassembled []byte
	for _, wire := range frames {
		r := bufio.NewReader(bytes.NewReader(wire))
		f, err := decodeHeader(r, maxFramePayload)
		if err != nil {
			t.Fatalf("decodeHeader: %v", err)
		}
		reassembled = append(reassembled, f.payload...)
	}
	if string(reassembled) != string(data) {
		t.Errorf("reassembled = %q, want %q", reassembled, data)
	}
}

func TestChunkFragments_EmptyPayload(t *testing.T) {
	frames, err := chunkFragments(RoleServer, opcodeText, nil, 16)
	if err != nil {
		t.Fatalf("chunkFragments: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	if frames[0][0]&0x80 == 0 {
		t.Error("empty payload's single frame must have FIN=1")
	}
}

func TestChunkFragments_SingleChunkFitsWhole(t *testing.T) {
	frames, err := chunkFragments(RoleServer, opcodeText, []byte("short"), 4096)
	if err != nil {
		t.Fatalf("chunkFragments: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	if frames[0][0]&0x80 == 0 {
		t.Error("single-chunk message must have FIN=1 on its only frame")
	}
	if frames[0][0]&0x0F != opcodeText {
		t.Error("single-chunk message must keep the real opcode")
	}
}

func TestChunkFragments_MultiChunkBoundaries(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, 10)
	frames, err := chunkFragments(RoleServer, opcodeBinary, data, 3)
	if err != nil {
		t.Fatalf("chunkFragments: %v", err)
	}
	if len(frames) != 4 {
		t.Fatalf("len(frames) = %d, want 4 (3+3+3+1)", len(frames))
	}

	var reassembled []byte
	for i, wire := range frames {
		r := bufio.NewReader(bytes.NewReader(wire))
		f, err := decodeHeader(r, maxFramePayload)
		if err != nil {
			t.Fatalf("frame %d decodeHeader: %v", i, err)
		}

		wantFIN := i == len(frames)-1
		if f.fin != wantFIN {
			t.Errorf("frame %d FIN = %v, want %v", i, f.fin, wantFIN)
		}

		wantOpcode := byte(opcodeContinuation)
		if i == 0 {
			wantOpcode = opcodeBinary
		}
		if f.opcode != wantOpcode {
			t.Errorf("frame %d opcode = 0x%X, want 0x%X", i, f.opcode, wantOpcode)
		}

		reassembled = append(reassembled, f.payload...)
	}

	if string(reassembled) != string(data) {
		t.Errorf("reassembled = %q, want %q", reassembled, data)
	}
}

func TestChunkFragments_NonPositiveMaxChunkUsesDefault(t *testing.T) {
	data := bytes.Repeat([]byte{'b'}, defaultFragmentSize+1)
	frames, err := chunkFragments(RoleServer, opcodeBinary, data, 0)
	if err != nil {
		t.Fatalf("chunkFragments: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
}

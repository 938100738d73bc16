package wsock

import (
	"bufio"
	"bytes"
	"encoding/json/v2"
	"fmt"
	"net"
	"sync"
	"time"
	"unicode/utf8"
)

// closeDrainTimeout bounds how long Close waits to observe the peer's
// close frame after sending its own, per RFC 6455 Section 7.1.2's closing
// handshake. The teacher's Close dropped the TCP connection immediately
// after writing its Close frame ("Future enhancement: wait for close
// response with timeout"); this resolves that in favor of the compliant
// behavior.
const closeDrainTimeout = 2 * time.Second

// recvState tracks whether Conn.Receive is in the middle of reassembling a
// fragmented message.
type recvState int

const (
	stateIdle recvState = iota
	stateReassembling
)

// Conn represents a single WebSocket connection (RFC 6455).
//
// Conn owns frame-level reassembly (multi-frame messages), control-frame
// handling (auto Pong on Ping, Close handshake), and role-dependent
// masking. It has no knowledge of HTTP beyond what Upgrade/Dial leave
// behind, and no application dispatch loop: callers drive Receive/Send
// themselves.
//
// Example:
//
//	conn, err := wsock.Upgrade(w, r, nil)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	msg, err := conn.Receive()
//	conn.SendText("hello back")
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	role Role

	// maxMessageSize bounds both a single frame's payload and a
	// reassembled fragmented message's total size.
	maxMessageSize int

	// writeMu serializes writes. RFC 6455 Section 5.1: "An endpoint MUST
	// NOT send a data frame while a fragmented message is being sent",
	// which this enforces by holding the lock across a whole
	// SendFragmented call, not just each frame.
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    bool
	closeMu   sync.RWMutex

	// Fragment reassembly state. Receive has no internal lock: the spec's
	// concurrency model requires the caller not to issue overlapping
	// Receive calls, so this state is read/written without synchronization
	// by design, not oversight.
	state          recvState
	fragmentBuf    bytes.Buffer
	fragmentOpcode byte
}

// newConn constructs a Conn around an already-upgraded net.Conn. Not
// exported: callers get a Conn from Upgrade or Dial.
func newConn(netConn net.Conn, reader *bufio.Reader, writer *bufio.Writer, role Role, maxMessageSize int) *Conn {
	if maxMessageSize <= 0 {
		maxMessageSize = maxFramePayload
	}
	return &Conn{
		conn:           netConn,
		reader:         reader,
		writer:         writer,
		role:           role,
		maxMessageSize: maxMessageSize,
	}
}

// Role reports which side of the connection this Conn represents.
func (c *Conn) Role() Role {
	return c.role
}

func (c *Conn) isClosed() bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	return c.closed
}

// Receive reads the next complete message, transparently reassembling
// fragmented messages and handling control frames (RFC 6455 Section 5.4,
// 5.5):
//   - Ping is answered with an automatic Pong and does not return to the
//     caller.
//   - Pong is consumed silently.
//   - Close completes the closing handshake and returns ErrClosed.
//   - A reserved/unknown opcode returns Payload{Kind: KindInvalid} wrapped
//     in ErrProtocolError.
//
// Not safe for concurrent use: callers must not issue overlapping Receive
// calls on the same Conn (RFC 6455 Section 5 gives no meaning to
// interleaved reads from one side, so Receive does not serialize them —
// doing so silently would hide a caller bug instead of surfacing it).
//
//nolint:gocyclo,cyclop,gocognit // fragmentation + control-frame handling per RFC 6455 Section 5
func (c *Conn) Receive() (Payload, error) {
	if c.isClosed() {
		return Payload{}, ErrClosed
	}

	for {
		f, err := decodeHeader(c.reader, c.maxMessageSize)
		if err != nil {
			return Payload{}, err
		}

		if maskErr := c.checkMask(f); maskErr != nil {
			return c.abort(CloseProtocolError, maskErr)
		}

		switch {
		case f.opcode == opcodePing:
			if err := c.sendControl(opcodePong, f.payload); err != nil {
				return Payload{}, err
			}
			continue

		case f.opcode == opcodePong:
			continue

		case f.opcode == opcodeClose:
			return c.handleCloseFrame(f.payload)

		case isDataFrame(f.opcode):
			payload, done, dataErr := c.reassemble(f)
			if dataErr != nil {
				return c.abort(CloseCodeFor(dataErr), dataErr)
			}
			if !done {
				continue
			}
			return payload, nil

		default:
			// Reserved opcode (0x3-0x7, 0xB-0xF): classify but don't
			// silently accept it as data or control.
			return c.abort(CloseProtocolError,
				fmt.Errorf("%w: reserved opcode 0x%X", ErrProtocolError, f.opcode))
		}
	}
}

// ReceiveText reads the next message and requires it to be text.
// Returns ErrInvalidMessageType if the message is binary.
func (c *Conn) ReceiveText() (string, error) {
	msg, err := c.Receive()
	if err != nil {
		return "", err
	}
	if msg.Kind != KindText {
		return "", ErrInvalidMessageType
	}
	return msg.Text, nil
}

// ReceiveJSON reads the next message, requires it to be text, and
// unmarshals its body into v.
func (c *Conn) ReceiveJSON(v any) error {
	msg, err := c.Receive()
	if err != nil {
		return err
	}
	if msg.Kind != KindText {
		return ErrInvalidMessageType
	}
	return json.Unmarshal([]byte(msg.Text), v)
}

// checkMask enforces RFC 6455 Section 5.3's role-dependent masking rule:
// frames from a client must be masked, frames from a server must not be.
// The teacher declared ErrMaskRequired/ErrMaskUnexpected but never checked
// for them; this is where that check actually happens.
func (c *Conn) checkMask(f *frame) error {
	peerMasks := c.role.peerRole().masksOutgoing()
	switch {
	case peerMasks && !f.masked:
		return ErrMaskRequired
	case !peerMasks && f.masked:
		return ErrMaskUnexpected
	default:
		return nil
	}
}

// reassemble folds one data/continuation frame into the in-progress
// message. Returns the completed Payload and done=true once FIN=1 closes
// the message (or immediately, for an unfragmented message).
func (c *Conn) reassemble(f *frame) (Payload, bool, error) {
	switch f.opcode {
	case opcodeText, opcodeBinary:
		if c.state == stateReassembling {
			// RFC 6455 Section 5.4 allows only continuation frames (and
			// control frames) while a fragmented message is in progress.
			// The teacher's Read() let a new Text/Binary frame silently
			// reset fragmentBuf here; this treats it as the protocol
			// error it is instead.
			return Payload{}, false, ErrInterleavedDataFrame
		}

		if f.fin {
			return c.finishPayload(f.opcode, f.payload)
		}

		c.state = stateReassembling
		c.fragmentOpcode = f.opcode
		c.fragmentBuf.Reset()
		c.fragmentBuf.Write(f.payload)
		return Payload{}, false, nil

	case opcodeContinuation:
		if c.state != stateReassembling {
			return Payload{}, false, ErrUnexpectedContinuation
		}

		if c.fragmentBuf.Len()+len(f.payload) > c.maxMessageSize {
			return Payload{}, false, ErrMessageTooLarge
		}
		c.fragmentBuf.Write(f.payload)

		if !f.fin {
			return Payload{}, false, nil
		}

		c.state = stateIdle
		payload := make([]byte, c.fragmentBuf.Len())
		copy(payload, c.fragmentBuf.Bytes())
		c.fragmentBuf.Reset()
		result, _, err := c.finishPayload(c.fragmentOpcode, payload)
		return result, true, err

	default:
		return Payload{}, false, fmt.Errorf("%w: not a data opcode 0x%X", ErrProtocolError, f.opcode)
	}
}

// finishPayload validates and wraps a complete message body.
func (c *Conn) finishPayload(opcode byte, data []byte) (Payload, bool, error) {
	if opcode == opcodeText {
		if !utf8.Valid(data) {
			return Payload{}, true, ErrInvalidUTF8
		}
		return Payload{Kind: KindText, Text: string(data)}, true, nil
	}
	return Payload{Kind: KindBinary, Data: data}, true, nil
}

// abort marks the connection closed, best-effort notifies the peer with
// code, and returns the triggering error as Receive's result.
func (c *Conn) abort(code CloseCode, err error) (Payload, error) {
	_ = c.CloseWithCode(code, "")
	return Payload{Kind: KindInvalid}, err
}

// handleCloseFrame parses an incoming close frame (RFC 6455 Section 5.5.1:
// an optional 2-byte status code followed by an optional UTF-8 reason) and
// completes the closing handshake by echoing it back.
func (c *Conn) handleCloseFrame(payload []byte) (Payload, error) {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()

	var code CloseCode
	var reason string
	switch {
	case len(payload) >= 2:
		code = CloseCode(uint16BE(payload[:2]))
		reason = string(payload[2:])
	default:
		code = CloseNoStatusReceived
	}

	// The reported code may be a value RFC 6455 reserves for internal use
	// only (1005, 1006, 1015, or absent entirely); those must never be
	// echoed back on the wire, so the reply always closes normally.
	echo := code
	switch echo {
	case CloseNoStatusReceived, CloseAbnormalClosure, CloseTLSHandshake:
		echo = CloseNormalClosure
	}
	_ = c.CloseWithCode(echo, "")

	return Payload{Kind: KindClose, Code: code, Reason: reason}, ErrClosed
}

// sendControl writes a single control frame under writeMu. Receive uses it
// for the automatic Pong reply to a Ping; Ping and Pong use it as well.
func (c *Conn) sendControl(opcode byte, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeFrameLocked(buildFrame(c.role, true, opcode, data))
}

func (c *Conn) writeFrameLocked(f *frame) error {
	return encodeHeader(c.writer, f)
}

// SendText sends a complete UTF-8 text message as a single frame.
func (c *Conn) SendText(text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	return c.send(opcodeText, []byte(text))
}

// SendBinary sends a complete binary message as a single frame.
func (c *Conn) SendBinary(data []byte) error {
	return c.send(opcodeBinary, data)
}

// SendJSON marshals v and sends it as a text message.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.send(opcodeText, data)
}

func (c *Conn) send(opcode byte, data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.writeFrameLocked(buildFrame(c.role, true, opcode, data))
}

// SendFragmented sends a message as a sequence of frames of at most
// maxChunk payload bytes each, rather than one single frame. maxChunk <= 0
// uses defaultFragmentSize. kind must be KindText or KindBinary.
//
// The teacher's Write always sent a single frame and explicitly called
// fragmentation a future enhancement; this is that enhancement, grounded
// on the chunk-and-tag-continuation algorithm documented in send.go.
func (c *Conn) SendFragmented(kind PayloadKind, data []byte, maxChunk int) error {
	var opcode byte
	switch kind {
	case KindText:
		if !utf8.Valid(data) {
			return ErrInvalidUTF8
		}
		opcode = opcodeText
	case KindBinary:
		opcode = opcodeBinary
	default:
		return ErrInvalidMessageType
	}

	if c.isClosed() {
		return ErrClosed
	}

	frames, err := chunkFragments(c.role, opcode, data, maxChunk)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, wire := range frames {
		if err := writeAll(c.writer, wire); err != nil {
			return err
		}
		if err := c.writer.Flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
	}
	return nil
}

// Ping sends a ping control frame. data is optional application data
// (max 125 bytes), echoed back by the peer's automatic Pong.
func (c *Conn) Ping(data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	if len(data) > maxControlPayload {
		return ErrControlTooLarge
	}
	return c.sendControl(opcodePing, data)
}

// Pong sends a pong control frame. Receive already answers Ping
// automatically; Pong is exposed for unsolicited keep-alive replies.
func (c *Conn) Pong(data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	if len(data) > maxControlPayload {
		return ErrControlTooLarge
	}
	return c.sendControl(opcodePong, data)
}

// Close sends a close frame with CloseNormalClosure and no reason, then
// tears down the connection. Idempotent.
func (c *Conn) Close() error {
	return c.CloseWithCode(CloseNormalClosure, "")
}

// CloseWithCode sends a close frame carrying code and reason, then waits
// up to closeDrainTimeout for the peer's own close frame (RFC 6455 Section
// 7.1.2's closing handshake) before dropping the TCP connection.
// Idempotent: later calls are no-ops and return nil.
func (c *Conn) CloseWithCode(code CloseCode, reason string) error {
	var err error

	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		alreadyHandshaking := c.closed
		c.closed = true
		c.closeMu.Unlock()

		wire, encErr := encodeClose(c.role, code, reason)
		if encErr != nil {
			err = encErr
			return
		}

		c.writeMu.Lock()
		writeErr := writeAll(c.writer, wire)
		if writeErr == nil {
			writeErr = c.writer.Flush()
		}
		c.writeMu.Unlock()

		if writeErr != nil {
			err = writeErr
			if c.conn != nil {
				_ = c.conn.Close()
			}
			return
		}

		// If handleCloseFrame already ran (we are replying to the peer's
		// close), the handshake is already complete; just drop the stream.
		if !alreadyHandshaking {
			c.drainForPeerClose()
		}

		if c.conn != nil {
			err = c.conn.Close()
		}
	})

	return err
}

// drainForPeerClose reads frames until it observes a close frame or
// closeDrainTimeout elapses, completing the closing handshake on the
// initiating side instead of dropping the TCP connection immediately
// after sending Close (which is what the teacher's Close did).
func (c *Conn) drainForPeerClose() {
	if c.conn != nil {
		_ = c.conn.SetReadDeadline(time.Now().Add(closeDrainTimeout))
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}

	for {
		f, err := decodeHeader(c.reader, c.maxMessageSize)
		if err != nil {
			return
		}
		if f.opcode == opcodeClose {
			return
		}
	}
}

// Deinit drops the underlying connection without sending a close frame.
// Use this for abnormal teardown (e.g. the caller's context was canceled
// mid-read) where RFC 6455's closing handshake cannot or should not be
// attempted. Close/CloseWithCode remain the normal teardown path.
func (c *Conn) Deinit() error {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()

	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

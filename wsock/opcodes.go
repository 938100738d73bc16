// Package wsock implements the RFC 6455 WebSocket framing protocol: frame
// encode/decode, fragmentation reassembly, role-dependent masking, and the
// connection lifecycle built on top of them.
//
// It handles:
//   - Text and binary data frames
//   - Control frames (close, ping, pong)
//   - Fragmentation and continuation
//   - Role-dependent masking (client-to-server masked, server-to-client not)
//   - Payload length encoding (7-bit, 16-bit, 64-bit)
//
// The HTTP upgrade handshake is covered only at the boundary: Upgrade for
// servers and Dial for clients. TLS, DNS, TCP setup, application dispatch
// loops, permessage compression, and subprotocol negotiation beyond simple
// echo are out of scope.
//
// RFC Reference: https://datatracker.ietf.org/doc/html/rfc6455
package wsock

// Opcode values defined in RFC 6455 Section 5.2.
//
// Opcodes 0x0-0x2 are data frames, 0x8-0xA are control frames.
// Opcodes 0x3-0x7 and 0xB-0xF are reserved for future use.
const (
	// opcodeContinuation indicates a continuation frame (RFC 6455 Section 5.4).
	// Used for fragmented messages where FIN=0 in the previous frame.
	opcodeContinuation = 0x0

	// opcodeText indicates a text data frame (RFC 6455 Section 5.6).
	// Payload must be valid UTF-8.
	opcodeText = 0x1

	// opcodeBinary indicates a binary data frame (RFC 6455 Section 5.6).
	// Payload is arbitrary binary data.
	opcodeBinary = 0x2

	// opcodeClose indicates a close control frame (RFC 6455 Section 5.5.1).
	// Initiates the WebSocket closing handshake.
	opcodeClose = 0x8

	// opcodePing indicates a ping control frame (RFC 6455 Section 5.5.2).
	// Used for keepalive and latency measurement.
	opcodePing = 0x9

	// opcodePong indicates a pong control frame (RFC 6455 Section 5.5.3).
	// Response to a ping frame with identical payload.
	opcodePong = 0xA
)

// isControlFrame returns true if the opcode is a control frame (0x8-0xF).
//
// Control frames:
//   - Must NOT be fragmented (FIN must be 1)
//   - May be interleaved with a fragmented message
//   - Payload length must be <= 125 bytes
func isControlFrame(opcode byte) bool {
	return opcode&0x08 != 0
}

// isDataFrame returns true if the opcode is a data frame (0x0-0x2).
func isDataFrame(opcode byte) bool {
	return opcode == opcodeContinuation ||
		opcode == opcodeText ||
		opcode == opcodeBinary
}

// isValidOpcode returns true if the opcode is one of the six defined by
// RFC 6455. Opcodes 0x3-0x7 and 0xB-0xF are reserved.
func isValidOpcode(opcode byte) bool {
	switch opcode {
	case opcodeContinuation, opcodeText, opcodeBinary,
		opcodeClose, opcodePing, opcodePong:
		return true
	default:
		return false
	}
}

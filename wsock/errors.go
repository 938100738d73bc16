package wsock

import "errors"

// Protocol error types, per RFC 6455 Section 7.4.1 and this package's own
// receive/send path.

var (
	// ErrProtocolError indicates a violation of the WebSocket protocol that
	// has no more specific sentinel: a 64-bit payload length with its most
	// significant bit set, or a reserved opcode reaching Receive. Violations
	// with their own sentinels below (RSV bits, interleaved data frames,
	// unexpected continuations, mask errors, control-frame rules) do not
	// wrap it; CloseCodeFor maps all of them to 1002 as well.
	// RFC 6455 Section 7.4.1: status code 1002.
	ErrProtocolError = errors.New("wsock: protocol error")

	// ErrInvalidUTF8 indicates a text frame contains invalid UTF-8.
	// RFC 6455 Section 8.1. Status code 1007.
	ErrInvalidUTF8 = errors.New("wsock: invalid UTF-8 in text frame")

	// ErrFrameTooLarge indicates a frame exceeds the implementation's
	// configured maximum payload size (not an RFC-defined limit).
	ErrFrameTooLarge = errors.New("wsock: frame too large")

	// ErrReservedBits indicates RSV1/RSV2/RSV3 are set without a negotiated
	// extension. RFC 6455 Section 5.2. Status code 1002.
	ErrReservedBits = errors.New("wsock: reserved bits must be 0")

	// ErrInvalidOpcode indicates an unknown or reserved opcode (0x3-0x7,
	// 0xB-0xF). RFC 6455 Section 5.2. Status code 1002.
	ErrInvalidOpcode = errors.New("wsock: invalid opcode")

	// ErrControlFragmented indicates a control frame with FIN=0.
	// RFC 6455 Section 5.5. Status code 1002.
	ErrControlFragmented = errors.New("wsock: control frame must not be fragmented")

	// ErrControlTooLarge indicates a control frame payload > 125 bytes.
	// RFC 6455 Section 5.5. Status code 1002.
	ErrControlTooLarge = errors.New("wsock: control frame payload too large")

	// ErrUnexpectedContinuation indicates a continuation frame with no
	// fragmented message in progress. RFC 6455 Section 5.4. Status code 1002.
	ErrUnexpectedContinuation = errors.New("wsock: unexpected continuation frame")

	// ErrInterleavedDataFrame indicates a Text/Binary opcode arrived while a
	// fragmented message was already being reassembled. RFC 6455 Section 5.4
	// only allows continuation frames and control frames in that state;
	// this package treats a new data frame there as a protocol error rather
	// than silently discarding the in-progress message. Status code 1002.
	ErrInterleavedDataFrame = errors.New("wsock: data frame interleaved with fragmented message")

	// ErrMaskRequired indicates a frame from a client was not masked.
	// RFC 6455 Section 5.3. Status code 1002.
	ErrMaskRequired = errors.New("wsock: client frames must be masked")

	// ErrMaskUnexpected indicates a frame from a server was masked.
	// RFC 6455 Section 5.3. Status code 1002.
	ErrMaskUnexpected = errors.New("wsock: server frames must not be masked")

	// ErrRecvShort indicates the underlying stream closed or errored before
	// a complete frame could be read. Wraps io.EOF or io.ErrUnexpectedEOF.
	ErrRecvShort = errors.New("wsock: short read, incomplete frame")

	// ErrSendFailed wraps a write error from the underlying connection.
	ErrSendFailed = errors.New("wsock: send failed")

	// Handshake error types (RFC 6455 Section 4).

	// ErrInvalidMethod indicates the HTTP method is not GET.
	// RFC 6455 Section 4.1.
	ErrInvalidMethod = errors.New("wsock: method must be GET")

	// ErrMissingUpgrade indicates a missing or invalid Upgrade header.
	// RFC 6455 Section 4.2.1.
	ErrMissingUpgrade = errors.New("wsock: missing or invalid Upgrade header")

	// ErrMissingConnection indicates a missing or invalid Connection header.
	// RFC 6455 Section 4.2.1.
	ErrMissingConnection = errors.New("wsock: missing or invalid Connection header")

	// ErrMissingSecKey indicates a missing Sec-WebSocket-Key header.
	// RFC 6455 Section 4.2.1.
	ErrMissingSecKey = errors.New("wsock: missing Sec-WebSocket-Key header")

	// ErrInvalidVersion indicates a Sec-WebSocket-Version other than 13.
	// RFC 6455 Section 4.4.
	ErrInvalidVersion = errors.New("wsock: unsupported WebSocket version")

	// ErrOriginDenied indicates the configured origin check rejected the
	// request. Application-level, not an RFC requirement.
	ErrOriginDenied = errors.New("wsock: origin check failed")

	// ErrHijackFailed indicates the http.ResponseWriter does not support
	// hijacking, so the handshake cannot take over the TCP socket.
	ErrHijackFailed = errors.New("wsock: cannot hijack connection")

	// ErrHandshakeFailed indicates the client-side handshake did not
	// complete: a non-101 status, a missing header, or a Sec-WebSocket-Accept
	// mismatch.
	ErrHandshakeFailed = errors.New("wsock: handshake failed")

	// ErrUnsupportedScheme indicates a Dial URL using a scheme other than
	// ws:// (wss:// is out of scope; see dial.go).
	ErrUnsupportedScheme = errors.New("wsock: unsupported URL scheme")

	// Connection error types (runtime errors).

	// ErrClosed indicates the connection is already closed (a close frame
	// was sent or received).
	ErrClosed = errors.New("wsock: connection closed")

	// ErrInvalidMessageType indicates a method was called against a
	// Payload.Kind it does not support (e.g. reading a Payload as text when
	// Kind is KindBinary).
	ErrInvalidMessageType = errors.New("wsock: invalid message type")

	// ErrMessageTooLarge indicates a reassembled message exceeds the
	// configured maximum size. Status code 1009.
	ErrMessageTooLarge = errors.New("wsock: message too large")

	// ErrReservedCloseCode indicates an attempt to send a close code RFC
	// 6455 Section 7.4.1 reserves for internal use only (1005, 1006, 1015):
	// these describe a closure condition but must never appear on the wire.
	ErrReservedCloseCode = errors.New("wsock: close code must not be sent on the wire")
)

// CloseCodeFor maps an error returned by Receive or Send to the close code
// that RFC 6455 prescribes for it, for callers that want to reply with a
// specific Close before tearing the connection down. Returns
// CloseInternalServerErr for errors it does not recognize.
func CloseCodeFor(err error) CloseCode {
	switch {
	case errors.Is(err, ErrInvalidUTF8):
		return CloseInvalidFramePayloadData
	case errors.Is(err, ErrMessageTooLarge), errors.Is(err, ErrFrameTooLarge):
		return CloseMessageTooBig
	case errors.Is(err, ErrInvalidMessageType):
		return CloseUnsupportedData
	case errors.Is(err, ErrProtocolError),
		errors.Is(err, ErrReservedBits),
		errors.Is(err, ErrInvalidOpcode),
		errors.Is(err, ErrControlFragmented),
		errors.Is(err, ErrControlTooLarge),
		errors.Is(err, ErrUnexpectedContinuation),
		errors.Is(err, ErrInterleavedDataFrame),
		errors.Is(err, ErrMaskRequired),
		errors.Is(err, ErrMaskUnexpected):
		return CloseProtocolError
	default:
		return CloseInternalServerErr
	}
}

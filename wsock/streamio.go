package wsock

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// readExact reads exactly len(buf) bytes from r, the idiom this package and
// every framing implementation in the corpus uses for "read N bytes or
// fail" (io.ReadFull already does the short-read bookkeeping correctly).
// A short read or clean EOF is reported as ErrRecvShort so callers can tell
// a truncated frame apart from other I/O errors.
func readExact(r *bufio.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrRecvShort, err)
		}
		return err
	}
	return nil
}

// writeAll writes buf to w in full. bufio.Writer.Write already loops until
// it either writes everything or hits an error, so this just names the
// intent and keeps send.go/conn.go from repeating the write+error-wrap
// idiom at every call site.
func writeAll(w *bufio.Writer, buf []byte) error {
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

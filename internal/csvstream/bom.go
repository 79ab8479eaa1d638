package csvstream

import "io"

// bomReader wraps an io.Reader and strips a leading UTF-8 BOM
// (0xEF 0xBB 0xBF), commonly added by Windows spreadsheet exports.
// Without this the first header name would carry invisible bytes and
// never match a required column.
type bomReader struct {
	r       io.Reader
	checked bool
	rest    []byte
	err     error
	buf     [3]byte
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: r}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		n, err := io.ReadFull(b.r, b.buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if n > 0 {
			head := b.buf[:n]
			if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
				head = nil
			}
			b.rest = head
		}
		// Hold any error from the lookahead until its bytes are handed
		// out; returning it now would lose them.
		b.err = err
	}

	// Drain the lookahead bytes before touching the underlying reader again.
	if len(b.rest) > 0 {
		n := copy(p, b.rest)
		b.rest = b.rest[n:]
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}

	return b.r.Read(p)
}

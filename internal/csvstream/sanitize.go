package csvstream

import (
	"io"
	"unicode/utf8"
)

// utf8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes with
// '?' as they stream past. Uploads saved in legacy encodings would
// otherwise leak raw bytes into field values and the rejection log. The
// one-byte stand-in lets the rewrite happen in place without growing the
// buffer.
type utf8Sanitizer struct {
	r io.Reader

	// bytes held back because they may start a multi-byte rune split
	// across two reads
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := 0
	if len(s.pending) > 0 {
		off = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	// Most CSV data is plain ASCII; skip the scan when it is.
	if allASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes kept.
// Unless atEOF, a partial rune at the end is stashed in pending for the
// next read instead of being judged invalid early.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if t := trailingPartial(data); t > 0 {
				s.pending = append(s.pending, data[len(data)-t:]...)
				return len(data) - t
			}
		}
		return len(data)
	}

	w := 0
	for r := 0; r < len(data); {
		ru, size := utf8.DecodeRune(data[r:])

		if !atEOF && r+size >= len(data) && partialRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}

		if ru == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}

		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

func allASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// trailingPartial returns how many bytes at the end of data could be the
// start of a multi-byte rune that has not fully arrived yet.
func trailingPartial(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			// Start of a multi-byte sequence; partial if cut short.
			if i < runeWidth(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			// Not a continuation byte, so no sequence spans the cut.
			return 0
		}
	}
	return 0
}

// partialRune reports whether data begins a multi-byte rune longer than
// the bytes available.
func partialRune(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return runeWidth(data[0]) > len(data)
}

// runeWidth returns the declared length of a UTF-8 sequence starting
// with byte b, or 0 for a bare continuation byte.
func runeWidth(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

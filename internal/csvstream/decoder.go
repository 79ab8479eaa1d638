// Package csvstream converts a CSV byte stream into a lazy, ordered
// sequence of raw field maps without ever holding the file in memory.
//
// The first line is the header and defines column names; each subsequent
// non-blank line is yielded as one row. Row numbers are 1-based over the
// yielded rows: blank lines (and lines whose fields are all empty after
// trimming) are skipped without consuming a number, so row N is always the
// Nth non-blank data row.
package csvstream

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one decoded data row. Fields maps each header-declared column
// name to the trimmed raw value for this row; columns absent from a short
// row map to the empty string.
type Row struct {
	Num    int
	Fields map[string]string
}

// DecodeError reports a failure of the underlying source or CSV framing.
// It aborts the remaining sequence; rows already yielded stand.
type DecodeError struct {
	Row int // last successfully yielded row number
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("csv decode failed after row %d: %v", e.Row, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder is a forward-only pull iterator over CSV data rows.
//
// Usage follows the bufio.Scanner pattern:
//
//	dec, err := csvstream.NewDecoder(f)
//	...
//	for dec.Next() {
//		row := dec.Row()
//		...
//	}
//	if err := dec.Err(); err != nil { ... }
//
// A Decoder is not restartable; reopen the source to decode again.
type Decoder struct {
	r      *csv.Reader
	header []string
	row    Row
	err    *DecodeError
	count  int
}

// NewDecoder reads the header line and returns a decoder for the data rows.
// It fails with a DecodeError if the header cannot be read (empty source,
// unreadable stream, malformed first line).
func NewDecoder(src io.Reader) (*Decoder, error) {
	// BOM strip must run before sanitization so the marker bytes are
	// recognized intact.
	r := csv.NewReader(newUTF8Sanitizer(newBOMReader(src)))
	// Tolerate ragged rows; short rows surface as per-field "required"
	// violations downstream rather than killing the whole file.
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, &DecodeError{Row: 0, Err: fmt.Errorf("read header: %w", err)}
	}

	names := make([]string, len(header))
	for i, name := range header {
		names[i] = strings.TrimSpace(name)
	}

	return &Decoder{r: r, header: names}, nil
}

// Header returns the trimmed column names from the header line.
func (d *Decoder) Header() []string { return d.header }

// Next advances to the next non-blank data row. It returns false at end of
// input or on error; check Err afterwards to distinguish.
func (d *Decoder) Next() bool {
	if d.err != nil {
		return false
	}

	for {
		rec, err := d.r.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			d.err = &DecodeError{Row: d.count, Err: err}
			return false
		}

		fields := make(map[string]string, len(d.header))
		blank := true
		for i, name := range d.header {
			var v string
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			if v != "" {
				blank = false
			}
			if name != "" {
				fields[name] = v
			}
		}
		// Values beyond the declared header still count against blankness.
		for i := len(d.header); i < len(rec); i++ {
			if strings.TrimSpace(rec[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		d.count++
		d.row = Row{Num: d.count, Fields: fields}
		return true
	}
}

// Row returns the current row. Valid only after a true Next.
func (d *Decoder) Row() Row { return d.row }

// Err returns the error that stopped iteration, if any. io.EOF is not an
// error; a clean end of input yields nil.
func (d *Decoder) Err() error {
	if d.err != nil {
		return d.err
	}
	return nil
}

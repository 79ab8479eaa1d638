package csvstream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBOMReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "input with BOM",
			input: append([]byte{0xEF, 0xBB, 0xBF}, []byte("full_name,email")...),
			want:  "full_name,email",
		},
		{
			name:  "input without BOM",
			input: []byte("full_name,email"),
			want:  "full_name,email",
		},
		{
			name:  "empty input",
			input: []byte{},
			want:  "",
		},
		{
			name:  "only BOM",
			input: []byte{0xEF, 0xBB, 0xBF},
			want:  "",
		},
		{
			name:  "partial BOM kept as data",
			input: []byte{0xEF, 0xBB, 'a', 'b'},
			want:  string([]byte{0xEF, 0xBB, 'a', 'b'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMReader(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

// failingReader yields its payload and an error in the same call, the way
// a network-backed reader dies mid-stream.
type failingReader struct {
	data []byte
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), f.err
}

func TestBOMReader_ErrorHeldUntilLookaheadDrained(t *testing.T) {
	boom := errors.New("connection reset")
	r := newBOMReader(&failingReader{data: []byte("ab"), err: boom})

	got, err := io.ReadAll(r)

	assert.Equal(t, "ab", string(got), "bytes read before the failure are not lost")
	require.ErrorIs(t, err, boom)
}

func TestBOMReader_ErrorWithoutLookaheadSurfacesImmediately(t *testing.T) {
	boom := errors.New("disk gone")
	r := newBOMReader(&failingReader{err: boom})

	n, err := r.Read(make([]byte, 8))
	assert.Zero(t, n)
	require.ErrorIs(t, err, boom)
}

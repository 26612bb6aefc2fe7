package serialize

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	A  uint8
	B  uint32
	C  int32
	D  []byte
	E  string
	F  bool
	G  [][]byte
	H  []uint32
	F2 bool
}

func (r *record) serialize(s *Stream) {
	r.A = s.SerUint8(r.A)
	r.B = s.SerUint32(r.B)
	r.C = s.SerInt32(r.C)
	r.D = s.SerString(r.D)
	r.E = s.SerUniUtf8(r.E)
	r.F = s.SerBool(r.F)
	r.G = s.SerArrString(r.G)
	r.H = s.SerArrUint32(r.H)
	r.F2 = s.SerBool(r.F2)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  record
	}{
		{
			name: "zero values",
			rec:  record{D: []byte{}, G: [][]byte{}, H: []uint32{}},
		},
		{
			name: "boundaries",
			rec: record{
				A:  math.MaxUint8,
				B:  math.MaxUint32,
				C:  math.MinInt32,
				D:  []byte{0, 1, 2, 0xff},
				E:  "",
				F:  true,
				G:  [][]byte{{}, []byte("x")},
				H:  []uint32{0, math.MaxUint32},
				F2: false,
			},
		},
		{
			name: "multi-byte text",
			rec: record{
				B:  1,
				C:  -1,
				D:  []byte("plain"),
				E:  "Größe ≠ サイズ 😀",
				F:  false,
				G:  [][]byte{[]byte("a"), []byte("bc")},
				H:  []uint32{7},
				F2: true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.rec
			w := NewWriter()
			in.serialize(w)
			require.NoError(t, w.Err())

			var out record
			r := NewReader(w.Bytes())
			require.True(t, r.IsReadMode())
			out.serialize(r)
			require.NoError(t, r.Err())

			assert.Equal(t, in, out)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestWriteReturnsValue(t *testing.T) {
	w := NewWriter()
	assert.Equal(t, uint32(42), w.SerUint32(42))
	assert.Equal(t, "abc", w.SerUniUtf8("abc"))
	assert.Equal(t, []byte{0, 0, 0, 42, 0, 0, 0, 3, 'a', 'b', 'c'}, w.Bytes())
}

func TestBoolEncoding(t *testing.T) {
	w := NewWriter()
	w.SerBool(true)
	w.SerBool(false)
	assert.Equal(t, []byte{'1', 0}, w.Bytes())

	// Anything but a zero byte reads as true
	r := NewReader([]byte{'x', 0})
	assert.True(t, r.SerBool(false))
	assert.False(t, r.SerBool(true))
}

func TestShortData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(s *Stream)
	}{
		{"uint32", []byte{0, 1}, func(s *Stream) { s.SerUint32(0) }},
		{"string", []byte{0, 0, 0, 5, 'a'}, func(s *Stream) { s.SerString(nil) }},
		{"array", []byte{0, 0, 0xff, 0xff}, func(s *Stream) { s.SerArrUint32(nil) }},
		{"empty", nil, func(s *Stream) { s.SerUint8(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewReader(tt.data)
			tt.read(s)
			require.Error(t, s.Err())
			assert.True(t, errors.Is(s.Err(), ErrShortBuffer))

			var serr *Error
			assert.True(t, errors.As(s.Err(), &serr))
		})
	}
}

func TestStickyError(t *testing.T) {
	s := NewReader([]byte{1})
	s.SerUint32(0)
	first := s.Err()
	require.Error(t, first)

	// Further reads do not change the error nor panic
	assert.Equal(t, uint8(0), s.SerUint8(0))
	assert.Equal(t, "", s.SerUniUtf8(""))
	assert.Same(t, first, s.Err())
}

func TestInvalidUtf8IsReplaced(t *testing.T) {
	w := NewWriter()
	w.SerString([]byte{'a', 0xff, 'b'})
	r := NewReader(w.Bytes())
	assert.Equal(t, "a�b", r.SerUniUtf8(""))
}

func TestFail(t *testing.T) {
	s := NewReader([]byte{0, 0, 0, 9})
	if v := s.SerUint32(0); v != 0 {
		s.Fail("unsupported version")
	}
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "unsupported version")
}

// Package serialize implements a typed cursor over a byte buffer used to
// persist structured values.
//
// A Stream works either in write mode or in read mode, fixed when it is created.
// Every Ser* method is mode-polymorphic: when writing it encodes the value passed
// and returns it unchanged, when reading it ignores the value passed and returns
// the next decoded value. This allows a single function to describe the layout
// of a record for both directions:
//
//	func (r *Record) serialize(s *serialize.Stream) {
//		r.Version = s.SerUint32(r.Version)
//		r.Name = s.SerUniUtf8(r.Name)
//	}
//
// Errors are sticky: after the first failure all further calls are no-ops and
// Err reports the failure.
package serialize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrShortBuffer = errors.New("unexpected end of data")
	ErrTooLong     = errors.New("value too long")
)

// Error is returned when the data being read does not have the expected
// structure, or when a record has an unsupported version.
type Error struct {
	Offset int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serialization error at offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("serialization error at offset %d: %s", e.Offset, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stream is a cursor that encodes or decodes values in a byte buffer.
type Stream struct {
	readMode bool

	// Write mode
	buf bytes.Buffer

	// Read mode
	data []byte
	pos  int

	err error
}

// NewWriter returns a Stream in write mode with an empty buffer.
func NewWriter() *Stream {
	return &Stream{}
}

// NewReader returns a Stream in read mode positioned at the start of data.
// The stream does not copy data, so the caller must not modify it while reading.
func NewReader(data []byte) *Stream {
	return &Stream{readMode: true, data: data}
}

// IsReadMode reports whether the stream decodes values.
func (s *Stream) IsReadMode() bool {
	return s.readMode
}

// Bytes returns the encoded data of a stream in write mode, or the whole
// underlying data of a stream in read mode.
func (s *Stream) Bytes() []byte {
	if s.readMode {
		return s.data
	}
	return s.buf.Bytes()
}

// Len returns the number of bytes written, or the number of bytes
// still pending to be read.
func (s *Stream) Len() int {
	if s.readMode {
		return len(s.data) - s.pos
	}
	return s.buf.Len()
}

// Err returns the first error found while using the stream.
func (s *Stream) Err() error {
	return s.err
}

// Fail records a structural error found by the caller, for example an
// unsupported record version. Only the first error is kept.
func (s *Stream) Fail(msg string) {
	s.setError(msg, nil)
}

func (s *Stream) setError(msg string, err error) {
	if s.err != nil {
		return
	}
	offset := s.pos
	if !s.readMode {
		offset = s.buf.Len()
	}
	s.err = &Error{Offset: offset, Msg: msg, Err: err}
}

// read returns the next n bytes, or nil if the data is exhausted
func (s *Stream) read(n int, what string) []byte {
	if s.err != nil {
		return nil
	}
	if n < 0 || len(s.data)-s.pos < n {
		s.setError("reading "+what, ErrShortBuffer)
		return nil
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b
}

// SerUint8 reads or writes a single byte.
func (s *Stream) SerUint8(val uint8) uint8 {
	if s.err != nil {
		return val
	}
	if !s.readMode {
		s.buf.WriteByte(val)
		return val
	}
	b := s.read(1, "uint8")
	if b == nil {
		return 0
	}
	return b[0]
}

// SerUint32 reads or writes a big endian 32 bit unsigned integer.
func (s *Stream) SerUint32(val uint32) uint32 {
	if s.err != nil {
		return val
	}
	if !s.readMode {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], val)
		s.buf.Write(b[:])
		return val
	}
	b := s.read(4, "uint32")
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// SerInt32 reads or writes a 32 bit signed integer as its two's complement uint32.
func (s *Stream) SerInt32(val int32) int32 {
	return int32(s.SerUint32(uint32(val)))
}

// serLength reads or writes a length prefix, checking it fits in an uint32
func (s *Stream) serLength(n int, what string) int {
	if !s.readMode && uint64(n) > math.MaxUint32 {
		s.setError("writing "+what, ErrTooLong)
		return 0
	}
	return int(s.SerUint32(uint32(n)))
}

// SerString reads or writes a byte string prefixed by its length.
func (s *Stream) SerString(val []byte) []byte {
	if s.err != nil {
		return val
	}
	if !s.readMode {
		s.serLength(len(val), "string")
		s.buf.Write(val)
		return val
	}
	n := s.serLength(0, "string")
	b := s.read(n, "string")
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// SerUniUtf8 reads or writes text as a length-prefixed UTF-8 byte string.
// Invalid UTF-8 sequences found when reading are replaced by U+FFFD.
func (s *Stream) SerUniUtf8(val string) string {
	if !s.readMode {
		s.SerString([]byte(val))
		return val
	}
	b := s.SerString(nil)
	return strings.ToValidUTF8(string(b), "�")
}

// SerBool reads or writes a boolean as a single byte. Any non-zero byte
// is read as true.
func (s *Stream) SerBool(val bool) bool {
	if !s.readMode {
		if val {
			s.SerUint8('1')
		} else {
			s.SerUint8(0)
		}
		return val
	}
	return s.SerUint8(0) != 0
}

// SerArrString reads or writes a length-prefixed array of byte strings.
func (s *Stream) SerArrString(val [][]byte) [][]byte {
	if !s.readMode {
		s.serLength(len(val), "string array")
		for _, item := range val {
			s.SerString(item)
		}
		return val
	}

	n := s.serLength(0, "string array")
	if s.err != nil {
		return nil
	}
	// Every element needs at least its length prefix
	if n > s.Len()/4 {
		s.setError("reading string array", ErrShortBuffer)
		return nil
	}
	out := make([][]byte, 0, n)
	for i := 0; i < n && s.err == nil; i++ {
		out = append(out, s.SerString(nil))
	}
	if s.err != nil {
		return nil
	}
	return out
}

// SerArrUint32 reads or writes a length-prefixed array of uint32.
func (s *Stream) SerArrUint32(val []uint32) []uint32 {
	if !s.readMode {
		s.serLength(len(val), "uint32 array")
		for _, item := range val {
			s.SerUint32(item)
		}
		return val
	}

	n := s.serLength(0, "uint32 array")
	if s.err != nil {
		return nil
	}
	if n > s.Len()/4 {
		s.setError("reading uint32 array", ErrShortBuffer)
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = s.SerUint32(0)
	}
	if s.err != nil {
		return nil
	}
	return out
}

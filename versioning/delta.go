package versioning

import (
	"fmt"
	"strings"

	"github.com/hesusruiz/wikicore/serialize"
	"github.com/hesusruiz/wikicore/sliceedit"
	"github.com/pmezard/go-difflib/difflib"
)

// The first bytes of every delta packet: "\x00WDP"
const deltaMagic uint32 = 0x00574450

const deltaFormat uint8 = 1

type deltaEdit struct {
	start, end int
	data       []byte
}

// splitLines returns the lines of data, each one including its line feed
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.SplitAfter(string(data), "\n")
}

// makeDelta returns a packet that transforms newer into older.
// Both are compared line by line and each differing run of lines of newer
// becomes one edit, with positions in bytes of newer.
func makeDelta(newer, older []byte) []byte {
	a := splitLines(newer)
	b := splitLines(older)

	// offsets[i] is the byte position of line i of newer
	offsets := make([]int, len(a)+1)
	for i, line := range a {
		offsets[i+1] = offsets[i] + len(line)
	}

	var edits []deltaEdit
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		edits = append(edits, deltaEdit{
			start: offsets[op.I1],
			end:   offsets[op.I2],
			data:  []byte(strings.Join(b[op.J1:op.J2], "")),
		})
	}

	s := serialize.NewWriter()
	s.SerUint32(deltaMagic)
	s.SerUint8(deltaFormat)
	s.SerUint32(uint32(len(newer)))
	s.SerUint32(uint32(len(edits)))
	for _, e := range edits {
		s.SerUint32(uint32(e.start))
		s.SerUint32(uint32(e.end))
		s.SerString(e.data)
	}
	return s.Bytes()
}

// applyDelta applies a packet created by makeDelta to newer and returns the
// older content. Any inconsistency of the packet is reported as ErrDamaged.
func applyDelta(newer, packet []byte) ([]byte, error) {
	s := serialize.NewReader(packet)
	if s.SerUint32(0) != deltaMagic {
		return nil, fmt.Errorf("%w: not a delta packet", ErrDamaged)
	}
	if format := s.SerUint8(0); format != deltaFormat {
		return nil, fmt.Errorf("%w: unknown delta format %d", ErrDamaged, format)
	}
	if baseLen := s.SerUint32(0); int(baseLen) != len(newer) {
		return nil, fmt.Errorf("%w: delta expects %d bytes of base, got %d", ErrDamaged, baseLen, len(newer))
	}

	buf := sliceedit.NewBuffer(newer)
	count := int(s.SerUint32(0))
	for i := 0; i < count && s.Err() == nil; i++ {
		start := int(s.SerUint32(0))
		end := int(s.SerUint32(0))
		data := s.SerString(nil)
		if s.Err() == nil {
			buf.Replace(start, end, data)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDamaged, err)
	}
	if s.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in delta", ErrDamaged, s.Len())
	}

	out, err := buf.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDamaged, err)
	}
	return out, nil
}

// Copyright 2023 Jesus Ruiz. All rights reserved.
// Use of this source code is governed by an Apache-2.0
// license that can be found in the LICENSE file.

// Package sliceedit extends the functionalities of rsc.io/edit to
// implement eficient buffered editing of byte slices.
// It requires a single allocation for many operations, and checks the edits
// before applying them so malformed patches are reported instead of panicking.
package sliceedit

import (
	"errors"
	"fmt"

	"rsc.io/edit"
)

var ErrBadEdit = errors.New("invalid edit")

// A Buffer is a queue of edits to apply to a given byte slice.
// Edits are expressed in positions of the original data and must be
// queued in increasing order without overlapping.
type Buffer struct {
	ed  *edit.Buffer
	buf []byte

	// end of the last edit queued
	last int
	err  error
}

// NewBuffer returns a new buffer to accumulate changes to an initial data slice.
// The returned buffer maintains a reference to the data, so the caller must ensure
// the data is not modified until after the Buffer is done being used.
func NewBuffer(buf []byte) *Buffer {
	b := &Buffer{}
	b.buf = buf // Just for our internal queries, we do not modify anything in it
	b.ed = edit.NewBuffer(buf)
	return b
}

// Len returns the length of the original data.
func (b *Buffer) Len() int {
	return len(b.buf)
}

func (b *Buffer) check(start, end int) bool {
	if b.err != nil {
		return false
	}
	if start < b.last || start > end || end > len(b.buf) {
		b.err = fmt.Errorf("%w: [%d,%d) after %d in data of length %d", ErrBadEdit, start, end, b.last, len(b.buf))
		return false
	}
	b.last = end
	return true
}

// Replace replaces the data in [start, end) with new.
func (b *Buffer) Replace(start, end int, new []byte) {
	if b.check(start, end) {
		b.ed.Replace(start, end, string(new))
	}
}

// Insert inserts new at pos.
func (b *Buffer) Insert(pos int, new []byte) {
	b.Replace(pos, pos, new)
}

// Delete deletes the data in [start, end).
func (b *Buffer) Delete(start, end int) {
	if b.check(start, end) {
		b.ed.Delete(start, end)
	}
}

// Err returns the first invalid edit queued, if any.
func (b *Buffer) Err() error {
	return b.err
}

// Bytes returns a new byte slice containing the original data
// with the queued edits applied.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.ed.Bytes(), nil
}

// String returns a string containing the original data
// with the queued edits applied.
func (b *Buffer) String() string {
	out, err := b.Bytes()
	if err != nil {
		return ""
	}
	return string(out)
}

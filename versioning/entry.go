package versioning

import (
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is the layout of the creation time of entries as persisted.
const TimeLayout = "2006-01-02/15:04:05"

// Differencing tells how the blob of a version is stored.
type Differencing string

const (
	// Complete blobs hold the full content of the version.
	Complete Differencing = "complete"
	// RevDiff blobs hold a delta that transforms the content of the next
	// version into the content of this one.
	RevDiff Differencing = "revdiff"
)

// Encoding of a complete blob.
type Encoding string

const (
	EncodingNone Encoding = ""
	EncodingZlib Encoding = "zlib"
)

// Entry is the metadata of one version of a page. Entries are values:
// the With* methods return modified copies.
type Entry struct {
	CreationTime time.Time
	// Description is empty when the version has no description
	Description   string
	VersionNumber int
	Differencing  Differencing
	Encoding      Encoding
}

// NewEntry returns an entry created now, without a valid version number.
func NewEntry(description string) Entry {
	return Entry{
		CreationTime: time.Now().UTC().Truncate(time.Second),
		Description:  description,
		Differencing: Complete,
	}
}

// WithVersionNumber returns a copy of e with the version number n.
func (e Entry) WithVersionNumber(n int) Entry {
	e.VersionNumber = n
	return e
}

// WithStorage returns a copy of e with the given storage mode.
func (e Entry) WithStorage(diff Differencing, enc Encoding) Entry {
	e.Differencing = diff
	e.Encoding = enc
	return e
}

// FormattedCreationTime returns the creation time in the persisted layout.
func (e Entry) FormattedCreationTime() string {
	return e.CreationTime.UTC().Format(TimeLayout)
}

func (e Entry) String() string {
	s := fmt.Sprintf("%d %s %s", e.VersionNumber, e.FormattedCreationTime(), e.Differencing)
	if e.Encoding != EncodingNone {
		s += "/" + string(e.Encoding)
	}
	if e.Description != "" {
		s += " " + strconv.Quote(e.Description)
	}
	return s
}

// OverviewKey returns the key of the overview record of page.
func OverviewKey(page string) string {
	return "versioning/overview/" + page
}

// PacketKey returns the key of the blob of version n of page.
func PacketKey(n int, page string) string {
	return "versioning/packet/versionNo/" + strconv.Itoa(n) + "/" + page
}

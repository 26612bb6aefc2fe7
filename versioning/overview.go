// Package versioning keeps the history of versions of wiki pages in a
// blobstore.Store.
//
// The newest version of a page is always stored complete. When a version is
// added, the previous head may be replaced by a reverse delta against it, so
// older versions are reconstructed by walking back from the nearest complete
// version. A complete snapshot is kept at least every completeSteps versions
// to bound the cost of reconstruction.
package versioning

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hesusruiz/wikicore/blobstore"
	"github.com/hesusruiz/wikicore/serialize"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultCompleteSteps is the maximum length of a chain of deltas
// before a complete snapshot is kept.
const DefaultCompleteSteps = 10

const (
	formatVersion      = 0
	readCompatVersion  = 0
	writeCompatVersion = 0
)

// Overview is the list of versions of one page. It is not safe for concurrent use.
//
// After Delete or RenameTo the overview is invalidated and any further use panics.
type Overview struct {
	store blobstore.Store
	page  string

	entries          []Entry
	maxVersionNumber int

	completeSteps int
	hint          blobstore.StoreHint
	compress      bool
	log           *zap.SugaredLogger

	invalid bool
}

type Option func(*Overview)

// WithLogger sets the logger used to report compaction decisions and damaged data.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *Overview) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCompleteSteps sets how many versions may be stored as deltas before
// keeping a complete snapshot. Zero disables deltas, negative values are
// treated as zero.
func WithCompleteSteps(n int) Option {
	return func(o *Overview) {
		if n < 0 {
			n = 0
		}
		o.completeSteps = n
	}
}

// WithStoreHint sets the hint passed to the store for every block written.
func WithStoreHint(hint blobstore.StoreHint) Option {
	return func(o *Overview) {
		o.hint = hint
	}
}

// WithCompression stores complete snapshots compressed with zlib.
func WithCompression(compress bool) Option {
	return func(o *Overview) {
		o.compress = compress
	}
}

// New returns an empty overview for page. Call ReadOverview to load the
// versions already stored.
func New(store blobstore.Store, page string, opts ...Option) *Overview {
	o := &Overview{
		store:         store,
		page:          page,
		completeSteps: DefaultCompleteSteps,
		hint:          blobstore.HintIntern,
		log:           zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Overview) checkValid() {
	if o.invalid {
		panic(fmt.Sprintf("versioning: use of invalidated overview of page %q", o.page))
	}
}

func (o *Overview) invalidate() {
	o.invalid = true
	o.entries = nil
}

// Page returns the name of the page.
func (o *Overview) Page() string {
	o.checkValid()
	return o.page
}

// Entries returns a copy of the entries, oldest first.
func (o *Overview) Entries() []Entry {
	o.checkValid()
	out := make([]Entry, len(o.entries))
	copy(out, o.entries)
	return out
}

// MaxVersionNumber returns the highest version number used so far.
func (o *Overview) MaxVersionNumber() int {
	o.checkValid()
	return o.maxVersionNumber
}

// IsNotInDatabase reports whether there is no overview stored for the page.
func (o *Overview) IsNotInDatabase() (bool, error) {
	o.checkValid()
	_, err := o.store.RetrieveDataBlock(OverviewKey(o.page))
	switch {
	case err == nil, errors.Is(err, blobstore.ErrDamaged):
		return false, nil
	case errors.Is(err, blobstore.ErrNotFound):
		return true, nil
	}
	return false, err
}

// ReadOverview loads the entries stored for the page. A page without stored
// overview has no versions.
func (o *Overview) ReadOverview() error {
	o.checkValid()
	data, err := o.store.RetrieveDataBlock(OverviewKey(o.page))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			o.entries = nil
			o.maxVersionNumber = 0
			return nil
		}
		if errors.Is(err, blobstore.ErrDamaged) {
			o.log.Errorw("damaged version overview", "page", o.page, "error", err)
			return fmt.Errorf("%w: overview of %q", ErrDamaged, o.page)
		}
		return err
	}
	return o.ReadOverviewFromBytes(data)
}

// ReadOverviewFromBytes sets the entries from an encoded overview record.
func (o *Overview) ReadOverviewFromBytes(data []byte) error {
	o.checkValid()
	entries, err := decodeOverview(data)
	if err != nil {
		o.log.Errorw("damaged version overview", "page", o.page, "error", err)
		return fmt.Errorf("%w: overview of %q: %v", ErrDamaged, o.page, err)
	}

	o.entries = entries
	o.maxVersionNumber = 0
	for _, e := range entries {
		if e.VersionNumber > o.maxVersionNumber {
			o.maxVersionNumber = e.VersionNumber
		}
	}
	return nil
}

// OverviewBytes returns the encoded overview record.
func (o *Overview) OverviewBytes() []byte {
	o.checkValid()
	return encodeOverview(o.entries)
}

// WriteOverview stores the overview record. An overview without entries
// is removed from the store.
func (o *Overview) WriteOverview() error {
	o.checkValid()
	if len(o.entries) == 0 {
		return o.store.DeleteDataBlock(OverviewKey(o.page))
	}
	return o.store.StoreDataBlock(OverviewKey(o.page), encodeOverview(o.entries), o.hint)
}

// serEntry describes the layout of an entry record for both directions
func serEntry(s *serialize.Stream, e Entry) Entry {
	created := s.SerUniUtf8(e.FormattedCreationTime())
	hasDescription := s.SerBool(e.Description != "")
	description := ""
	if hasDescription {
		description = s.SerUniUtf8(e.Description)
	}
	number := s.SerUint32(uint32(e.VersionNumber))
	diff := s.SerUniUtf8(string(e.Differencing))
	enc := s.SerUniUtf8(string(e.Encoding))

	if !s.IsReadMode() || s.Err() != nil {
		return e
	}

	t, err := time.Parse(TimeLayout, created)
	if err != nil {
		s.Fail("invalid creation time " + created)
		return e
	}
	switch Differencing(diff) {
	case Complete, RevDiff:
	default:
		s.Fail("invalid content differencing " + diff)
		return e
	}
	if number == 0 {
		s.Fail("invalid version number 0")
		return e
	}
	return Entry{
		CreationTime:  t.UTC(),
		Description:   description,
		VersionNumber: int(number),
		Differencing:  Differencing(diff),
		Encoding:      Encoding(enc),
	}
}

func encodeOverview(entries []Entry) []byte {
	s := serialize.NewWriter()
	s.SerUint32(formatVersion)
	s.SerUint32(readCompatVersion)
	s.SerUint32(writeCompatVersion)
	s.SerUint32(uint32(len(entries)))
	for _, e := range entries {
		serEntry(s, e)
	}
	return s.Bytes()
}

func decodeOverview(data []byte) ([]Entry, error) {
	s := serialize.NewReader(data)
	s.SerUint32(0)
	if v := s.SerUint32(0); v > formatVersion {
		s.Fail(fmt.Sprintf("unsupported read compatibility version %d", v))
	}
	if v := s.SerUint32(0); v > formatVersion {
		s.Fail(fmt.Sprintf("unsupported write compatibility version %d", v))
	}
	count := int(s.SerUint32(0))

	var entries []Entry
	last := 0
	for i := 0; i < count && s.Err() == nil; i++ {
		e := serEntry(s, Entry{})
		if s.Err() != nil {
			break
		}
		if e.VersionNumber <= last {
			s.Fail("version numbers not increasing")
			break
		}
		last = e.VersionNumber
		entries = append(entries, e)
	}
	if s.Err() == nil && s.Len() != 0 {
		s.Fail("trailing data")
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// retrieve returns the blob of version n, mapping the errors of the store
func (o *Overview) retrieve(n int) ([]byte, error) {
	data, err := o.store.RetrieveDataBlock(PacketKey(n, o.page))
	if err == nil {
		return data, nil
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, internalErrorf(o.page, "missing packet for version %d", n)
	}
	if errors.Is(err, blobstore.ErrDamaged) {
		o.log.Errorw("damaged version packet", "page", o.page, "version", n, "error", err)
		return nil, fmt.Errorf("%w: packet of version %d of %q", ErrDamaged, n, o.page)
	}
	return nil, err
}

// Every complete blob starts with these bytes. A blob without them, such as a
// delta left by an interrupted compaction, is damaged.
var snapshotMagic = []byte{0x00, 'W', 'C', 'S'}

func encodeContent(content []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingNone:
		blob := make([]byte, 0, len(snapshotMagic)+len(content))
		blob = append(blob, snapshotMagic...)
		return append(blob, content...), nil
	case EncodingZlib:
		var buf bytes.Buffer
		buf.Write(snapshotMagic)
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown content encoding %q", enc)
}

func decodeContent(blob []byte, enc Encoding) ([]byte, error) {
	if !bytes.HasPrefix(blob, snapshotMagic) {
		return nil, fmt.Errorf("%w: not a complete snapshot", ErrDamaged)
	}
	blob = blob[len(snapshotMagic):]
	switch enc {
	case EncodingNone:
		return blob, nil
	case EncodingZlib:
		r, err := zlib.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDamaged, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDamaged, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown content encoding %q", ErrDamaged, enc)
}

func (o *Overview) headEncoding() Encoding {
	if o.compress {
		return EncodingZlib
	}
	return EncodingNone
}

// storeComplete stores content as the complete snapshot of version n and
// returns the encoding used
func (o *Overview) storeComplete(n int, content []byte) (Encoding, error) {
	enc := o.headEncoding()
	blob, err := encodeContent(content, enc)
	if err != nil {
		return enc, err
	}
	return enc, o.store.StoreDataBlock(PacketKey(n, o.page), blob, o.hint)
}

// VersionContentRaw returns the content of version n exactly as it was added.
// A version number of -1 selects the newest version.
func (o *Overview) VersionContentRaw(n int) ([]byte, error) {
	o.checkValid()
	if len(o.entries) == 0 {
		return nil, internalErrorf(o.page, "version %d requested from empty list", n)
	}
	if n == -1 {
		n = o.entries[len(o.entries)-1].VersionNumber
	}

	// Walk from the newest version back to n. The work list holds the
	// deltas to apply after the nearest complete version.
	var base *Entry
	var work []Entry
	found := false
	for i := len(o.entries) - 1; i >= 0; i-- {
		e := o.entries[i]
		if e.Differencing == Complete {
			base = &o.entries[i]
			work = work[:0]
		} else {
			work = append(work, e)
		}
		if e.VersionNumber == n {
			found = true
			break
		}
	}
	if !found {
		return nil, internalErrorf(o.page, "version %d does not exist", n)
	}
	if base == nil {
		return nil, internalErrorf(o.page, "no complete version to rebuild version %d", n)
	}

	blob, err := o.retrieve(base.VersionNumber)
	if err != nil {
		return nil, err
	}
	content, err := decodeContent(blob, base.Encoding)
	if err != nil {
		o.log.Errorw("damaged complete version", "page", o.page, "version", base.VersionNumber, "error", err)
		return nil, fmt.Errorf("version %d of %q: %w", base.VersionNumber, o.page, err)
	}

	for _, e := range work {
		packet, err := o.retrieve(e.VersionNumber)
		if err != nil {
			return nil, err
		}
		content, err = applyDelta(content, packet)
		if err != nil {
			o.log.Errorw("damaged delta", "page", o.page, "version", e.VersionNumber, "error", err)
			return nil, fmt.Errorf("version %d of %q: %w", e.VersionNumber, o.page, err)
		}
	}

	return content, nil
}

// compactionAllowed reports whether the current head may become a delta
// against a new version
func (o *Overview) compactionAllowed() bool {
	if o.completeSteps == 0 || len(o.entries) == 0 {
		return false
	}
	if len(o.entries) < o.completeSteps {
		return true
	}
	// The current head is always complete, so it is left out of the window
	window := o.entries[len(o.entries)-o.completeSteps : len(o.entries)-1]
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Differencing == Complete {
			return true
		}
	}
	return false
}

// AddVersion stores content as the new head of the history and returns its entry.
// The new version is kept even if the conversion of the previous head into a
// delta fails, in which case the error is returned along with the entry.
// The overview must be written with WriteOverview to persist the change.
func (o *Overview) AddVersion(content []byte, description string) (Entry, error) {
	o.checkValid()

	compact := o.compactionAllowed()

	o.maxVersionNumber++
	entry := NewEntry(description).WithVersionNumber(o.maxVersionNumber)

	enc, err := o.storeComplete(entry.VersionNumber, content)
	if err != nil {
		return Entry{}, err
	}
	entry = entry.WithStorage(Complete, enc)
	o.entries = append(o.entries, entry)

	if !compact {
		return entry, nil
	}

	prevIndex := len(o.entries) - 2
	prev := o.entries[prevIndex]

	stored, err := o.retrieve(prev.VersionNumber)
	if err != nil {
		return entry, err
	}
	prevContent, err := o.VersionContentRaw(prev.VersionNumber)
	if err != nil {
		return entry, err
	}

	delta := makeDelta(content, prevContent)
	accepted := len(delta) < len(stored)
	o.log.Debugw("compaction", "page", o.page, "version", prev.VersionNumber,
		"stored", len(stored), "delta", len(delta), "accepted", accepted)
	if !accepted {
		return entry, nil
	}

	if err := o.store.StoreDataBlock(PacketKey(prev.VersionNumber, o.page), delta, o.hint); err != nil {
		return entry, err
	}
	o.entries[prevIndex] = prev.WithStorage(RevDiff, EncodingNone)

	return entry, nil
}

// DeleteVersion removes version n, or the newest version if n is -1.
// Only the oldest and the newest versions can be deleted, any other version
// is reported with an InternalError and nothing is modified.
// The overview must be written with WriteOverview to persist the change.
func (o *Overview) DeleteVersion(n int) error {
	o.checkValid()
	if len(o.entries) == 0 {
		return internalErrorf(o.page, "version %d to delete from empty list", n)
	}
	if n == -1 {
		n = o.entries[len(o.entries)-1].VersionNumber
	}

	if n == o.entries[0].VersionNumber {
		if err := o.store.DeleteDataBlock(PacketKey(n, o.page)); err != nil {
			return err
		}
		o.entries = o.entries[1:]
		return nil
	}

	last := len(o.entries) - 1
	if n == o.entries[last].VersionNumber {
		// There are at least two entries, otherwise n would be the oldest
		prev := o.entries[last-1]
		content, err := o.VersionContentRaw(prev.VersionNumber)
		if err != nil {
			return err
		}
		enc, err := o.storeComplete(prev.VersionNumber, content)
		if err != nil {
			return err
		}
		o.entries[last-1] = prev.WithStorage(Complete, enc)

		if err := o.store.DeleteDataBlock(PacketKey(n, o.page)); err != nil {
			return err
		}
		o.entries = o.entries[:last]
		return nil
	}

	for _, e := range o.entries {
		if e.VersionNumber == n {
			return internalErrorf(o.page, "can not delete in-between version %d", n)
		}
	}
	return internalErrorf(o.page, "version %d to delete does not exist", n)
}

// DependentDataBlocks returns the keys of all blocks stored for the versions
// of the page, and the key of the overview itself unless omitSelf is true.
func (o *Overview) DependentDataBlocks(omitSelf bool) []string {
	o.checkValid()
	keys := make([]string, 0, len(o.entries)+1)
	for _, e := range o.entries {
		keys = append(keys, PacketKey(e.VersionNumber, o.page))
	}
	if !omitSelf {
		keys = append(keys, OverviewKey(o.page))
	}
	return keys
}

// RenameTo moves all versions to newPage and invalidates the overview.
// Load a new overview for newPage to continue working with the versions.
// Packets missing from the store are skipped. Renaming a page to its own
// name fails with an InternalError and changes nothing.
func (o *Overview) RenameTo(newPage string) error {
	o.checkValid()
	if newPage == o.page {
		return internalErrorf(o.page, "can not rename page to itself")
	}

	for _, e := range o.entries {
		data, err := o.store.RetrieveDataBlock(PacketKey(e.VersionNumber, o.page))
		if errors.Is(err, blobstore.ErrNotFound) {
			o.log.Warnw("missing packet while renaming", "page", o.page, "version", e.VersionNumber)
			continue
		}
		if err != nil {
			return err
		}
		if err := o.store.StoreDataBlock(PacketKey(e.VersionNumber, newPage), data, o.hint); err != nil {
			return err
		}
	}

	renamed := &Overview{
		store:            o.store,
		page:             newPage,
		entries:          o.entries,
		maxVersionNumber: o.maxVersionNumber,
		completeSteps:    o.completeSteps,
		hint:             o.hint,
		compress:         o.compress,
		log:              o.log,
	}
	if err := renamed.WriteOverview(); err != nil {
		return err
	}

	var errs error
	for _, key := range o.DependentDataBlocks(false) {
		errs = multierr.Append(errs, o.store.DeleteDataBlock(key))
	}
	o.invalidate()
	return errs
}

// Delete removes all the data of the versions of the page, including the
// overview, and invalidates the overview.
func (o *Overview) Delete() error {
	o.checkValid()
	var errs error
	for _, key := range o.DependentDataBlocks(false) {
		errs = multierr.Append(errs, o.store.DeleteDataBlock(key))
	}
	o.invalidate()
	return errs
}

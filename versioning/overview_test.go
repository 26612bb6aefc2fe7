package versioning

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hesusruiz/wikicore/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyStore simulates damaged blocks and failing deletions
type faultyStore struct {
	*blobstore.MemoryStore
	damaged    map[string]bool
	failDelete map[string]bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: blobstore.NewMemoryStore(),
		damaged:     map[string]bool{},
		failDelete:  map[string]bool{},
	}
}

func (f *faultyStore) RetrieveDataBlock(key string) ([]byte, error) {
	if f.damaged[key] {
		return nil, blobstore.ErrDamaged
	}
	return f.MemoryStore.RetrieveDataBlock(key)
}

func (f *faultyStore) DeleteDataBlock(key string) error {
	if f.failDelete[key] {
		return errors.New("delete failed")
	}
	return f.MemoryStore.DeleteDataBlock(key)
}

// pageVersion returns a page of 20 lines where one line changes in every version
func pageVersion(i int) []byte {
	var b strings.Builder
	for l := 0; l < 20; l++ {
		if l == i%20 {
			fmt.Fprintf(&b, "line %02d changed in version %d\n", l, i)
		} else {
			fmt.Fprintf(&b, "line %02d of the page text\n", l)
		}
	}
	if i%5 == 0 {
		b.WriteString("a tail without line feed")
	}
	return []byte(b.String())
}

func addVersions(t *testing.T, o *Overview, contents [][]byte) {
	t.Helper()
	for i, c := range contents {
		e, err := o.AddVersion(c, fmt.Sprintf("version %d", i+1))
		require.NoError(t, err)
		require.Equal(t, i+1, e.VersionNumber)
	}
}

func TestReconstruction(t *testing.T) {
	var contents [][]byte
	for i := 0; i < 25; i++ {
		contents = append(contents, pageVersion(i))
	}
	contents = append(contents, []byte{}, []byte{0xff, 0x00, '\n', 0x01, '\n'}, pageVersion(3), pageVersion(3))

	tests := []struct {
		steps    int
		compress bool
	}{
		{0, false},
		{1, false},
		{2, false},
		{3, false},
		{10, false},
		{10, true},
		{100, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("steps %d compress %v", tt.steps, tt.compress), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			o := New(store, "Some/Page", WithCompleteSteps(tt.steps), WithCompression(tt.compress))
			addVersions(t, o, contents)

			for k := 1; k <= len(contents); k++ {
				got, err := o.VersionContentRaw(k)
				require.NoError(t, err)
				assert.Equal(t, contents[k-1], got, "version %d", k)
			}
			head, err := o.VersionContentRaw(-1)
			require.NoError(t, err)
			assert.Equal(t, contents[len(contents)-1], head)

			// The same from a freshly loaded overview
			require.NoError(t, o.WriteOverview())
			loaded := New(store, "Some/Page")
			require.NoError(t, loaded.ReadOverview())
			assert.Equal(t, len(contents), loaded.MaxVersionNumber())
			for k := 1; k <= len(contents); k++ {
				got, err := loaded.VersionContentRaw(k)
				require.NoError(t, err)
				assert.Equal(t, contents[k-1], got, "version %d", k)
			}

			if tt.steps == 0 {
				for _, e := range o.Entries() {
					assert.Equal(t, Complete, e.Differencing)
				}
			}
		})
	}
}

func TestCompactionNeverInflates(t *testing.T) {
	tests := []struct {
		name     string
		contents [][]byte
	}{
		{"similar pages", [][]byte{pageVersion(1), pageVersion(2), pageVersion(3), pageVersion(4)}},
		{"unrelated short pages", [][]byte{[]byte("a"), []byte("b"), []byte("c")}},
		{"growing page", [][]byte{[]byte("x\n"), pageVersion(1), append(pageVersion(1), pageVersion(2)...)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			o := New(store, "P")
			for i, c := range tt.contents {
				var prevKey string
				prevSize := -1
				if i > 0 {
					prevKey = PacketKey(i, "P")
					prevSize = store.Size(prevKey)
				}
				_, err := o.AddVersion(c, "")
				require.NoError(t, err)
				if i > 0 {
					assert.LessOrEqual(t, store.Size(prevKey), prevSize)
				}
			}
		})
	}

	t.Run("deltas larger than the content are rejected", func(t *testing.T) {
		o := New(blobstore.NewMemoryStore(), "P")
		addVersions(t, o, [][]byte{[]byte("a"), []byte("b")})
		for _, e := range o.Entries() {
			assert.Equal(t, Complete, e.Differencing)
		}
	})
}

func TestCompleteStepsBoundChains(t *testing.T) {
	o := New(blobstore.NewMemoryStore(), "P", WithCompleteSteps(3))
	var contents [][]byte
	for i := 0; i < 7; i++ {
		contents = append(contents, pageVersion(i+1))
	}
	addVersions(t, o, contents)

	var got []Differencing
	for _, e := range o.Entries() {
		got = append(got, e.Differencing)
	}
	assert.Equal(t, []Differencing{RevDiff, RevDiff, Complete, RevDiff, RevDiff, Complete, Complete}, got)
}

func TestDeleteVersion(t *testing.T) {
	contents := [][]byte{pageVersion(1), pageVersion(2), pageVersion(3), pageVersion(4)}

	t.Run("in-between version", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, contents)
		before := o.Entries()
		blocks := store.Len()

		err := o.DeleteVersion(2)
		var internal *InternalError
		require.ErrorAs(t, err, &internal)
		assert.Equal(t, "P", internal.Page)
		assert.Equal(t, before, o.Entries())
		assert.Equal(t, blocks, store.Len())
		for k := 1; k <= len(contents); k++ {
			got, err := o.VersionContentRaw(k)
			require.NoError(t, err)
			assert.Equal(t, contents[k-1], got)
		}
	})

	t.Run("newest", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, contents)
		require.Equal(t, RevDiff, o.Entries()[2].Differencing)

		require.NoError(t, o.DeleteVersion(-1))
		entries := o.Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, Complete, entries[2].Differencing)
		assert.Equal(t, -1, store.Size(PacketKey(4, "P")))
		for k := 1; k <= 3; k++ {
			got, err := o.VersionContentRaw(k)
			require.NoError(t, err)
			assert.Equal(t, contents[k-1], got)
		}

		// Version numbers are not reused
		e, err := o.AddVersion(pageVersion(9), "")
		require.NoError(t, err)
		assert.Equal(t, 5, e.VersionNumber)
	})

	t.Run("oldest", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, contents)

		require.NoError(t, o.DeleteVersion(1))
		entries := o.Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, 2, entries[0].VersionNumber)
		assert.Equal(t, -1, store.Size(PacketKey(1, "P")))
		for k := 2; k <= 4; k++ {
			got, err := o.VersionContentRaw(k)
			require.NoError(t, err)
			assert.Equal(t, contents[k-1], got)
		}
	})

	t.Run("single and empty", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, contents[:1])
		require.NoError(t, o.DeleteVersion(-1))
		assert.Empty(t, o.Entries())
		assert.Equal(t, 0, store.Len())

		var internal *InternalError
		assert.ErrorAs(t, o.DeleteVersion(1), &internal)
	})

	t.Run("unknown version", func(t *testing.T) {
		o := New(blobstore.NewMemoryStore(), "P")
		addVersions(t, o, contents)
		var internal *InternalError
		assert.ErrorAs(t, o.DeleteVersion(42), &internal)
		assert.Len(t, o.Entries(), 4)
	})
}

func TestVersionContentErrors(t *testing.T) {
	contents := [][]byte{pageVersion(1), pageVersion(2), pageVersion(3)}

	setup := func(t *testing.T, opts ...Option) (*faultyStore, *Overview) {
		store := newFaultyStore()
		o := New(store, "P", opts...)
		addVersions(t, o, contents)
		return store, o
	}

	t.Run("unknown version", func(t *testing.T) {
		_, o := setup(t)
		_, err := o.VersionContentRaw(7)
		var internal *InternalError
		assert.ErrorAs(t, err, &internal)
	})

	t.Run("empty overview", func(t *testing.T) {
		o := New(blobstore.NewMemoryStore(), "P")
		_, err := o.VersionContentRaw(-1)
		var internal *InternalError
		assert.ErrorAs(t, err, &internal)
	})

	t.Run("missing blob is an internal error", func(t *testing.T) {
		store, o := setup(t)
		require.NoError(t, store.MemoryStore.DeleteDataBlock(PacketKey(2, "P")))
		_, err := o.VersionContentRaw(1)
		var internal *InternalError
		assert.ErrorAs(t, err, &internal)
		assert.NotErrorIs(t, err, ErrDamaged)
	})

	t.Run("damaged blob", func(t *testing.T) {
		store, o := setup(t)
		store.damaged[PacketKey(3, "P")] = true
		_, err := o.VersionContentRaw(1)
		assert.ErrorIs(t, err, ErrDamaged)
	})

	t.Run("complete version holding a delta", func(t *testing.T) {
		store, o := setup(t)
		// As left by an interrupted compaction
		store.Corrupt(PacketKey(3, "P"), makeDelta(pageVersion(4), contents[2]))
		_, err := o.VersionContentRaw(3)
		assert.ErrorIs(t, err, ErrDamaged)
	})

	t.Run("truncated delta", func(t *testing.T) {
		store, o := setup(t)
		require.Equal(t, RevDiff, o.Entries()[1].Differencing)
		data, err := store.MemoryStore.RetrieveDataBlock(PacketKey(2, "P"))
		require.NoError(t, err)
		store.Corrupt(PacketKey(2, "P"), data[:len(data)-3])
		_, err = o.VersionContentRaw(2)
		assert.ErrorIs(t, err, ErrDamaged)
		// The head does not depend on it
		_, err = o.VersionContentRaw(3)
		assert.NoError(t, err)
	})

	t.Run("corrupt compressed snapshot", func(t *testing.T) {
		store, o := setup(t, WithCompression(true))
		assert.Equal(t, EncodingZlib, o.Entries()[2].Encoding)
		store.Corrupt(PacketKey(3, "P"), []byte("not zlib"))
		_, err := o.VersionContentRaw(-1)
		assert.ErrorIs(t, err, ErrDamaged)
	})
}

func TestContentLikeDelta(t *testing.T) {
	contents := [][]byte{
		[]byte("\x00WDPsome binary content"),
		makeDelta(pageVersion(1), pageVersion(2)),
		[]byte("\x00WDP"),
		[]byte("\x00WCSlooks like a snapshot header"),
	}
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			o := New(blobstore.NewMemoryStore(), "P", WithCompression(compress))
			addVersions(t, o, contents)
			for k := 1; k <= len(contents); k++ {
				got, err := o.VersionContentRaw(k)
				require.NoError(t, err, "version %d", k)
				assert.Equal(t, contents[k-1], got)
			}
		})
	}
}

func TestOverviewPersistence(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, [][]byte{pageVersion(1), pageVersion(2)})
		_, err := o.AddVersion(pageVersion(3), "")
		require.NoError(t, err)

		loaded := New(store, "P")
		require.NoError(t, loaded.ReadOverviewFromBytes(o.OverviewBytes()))
		want, got := o.Entries(), loaded.Entries()
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].FormattedCreationTime(), got[i].FormattedCreationTime())
			assert.Equal(t, want[i].Description, got[i].Description)
			assert.Equal(t, want[i].VersionNumber, got[i].VersionNumber)
			assert.Equal(t, want[i].Differencing, got[i].Differencing)
			assert.Equal(t, want[i].Encoding, got[i].Encoding)
		}
		assert.Equal(t, "", got[2].Description)
	})

	t.Run("absent overview", func(t *testing.T) {
		o := New(blobstore.NewMemoryStore(), "P")
		notIn, err := o.IsNotInDatabase()
		require.NoError(t, err)
		assert.True(t, notIn)
		require.NoError(t, o.ReadOverview())
		assert.Empty(t, o.Entries())
	})

	t.Run("damaged overview", func(t *testing.T) {
		store := newFaultyStore()
		store.damaged[OverviewKey("P")] = true
		o := New(store, "P")
		notIn, err := o.IsNotInDatabase()
		require.NoError(t, err)
		assert.False(t, notIn)
		assert.ErrorIs(t, o.ReadOverview(), ErrDamaged)
	})

	t.Run("unparseable overview", func(t *testing.T) {
		o := New(blobstore.NewMemoryStore(), "P")
		assert.ErrorIs(t, o.ReadOverviewFromBytes([]byte{0, 0, 1}), ErrDamaged)

		// Newer writers
		data := encodeOverview(nil)
		data[11] = 1
		assert.ErrorIs(t, o.ReadOverviewFromBytes(data), ErrDamaged)

		// Trailing data
		assert.ErrorIs(t, o.ReadOverviewFromBytes(append(encodeOverview(nil), 0)), ErrDamaged)
	})

	t.Run("empty overview is removed", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, [][]byte{pageVersion(1)})
		require.NoError(t, o.WriteOverview())
		assert.Positive(t, store.Size(OverviewKey("P")))

		require.NoError(t, o.DeleteVersion(1))
		require.NoError(t, o.WriteOverview())
		assert.Equal(t, -1, store.Size(OverviewKey("P")))
	})

	t.Run("store hint", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P", WithStoreHint(blobstore.HintExtern))
		addVersions(t, o, [][]byte{pageVersion(1)})
		require.NoError(t, o.WriteOverview())
		for _, key := range o.DependentDataBlocks(false) {
			hint, ok := store.Hint(key)
			require.True(t, ok, key)
			assert.Equal(t, blobstore.HintExtern, hint)
		}
	})
}

func TestRenameAndDelete(t *testing.T) {
	contents := [][]byte{pageVersion(1), pageVersion(2), pageVersion(3)}

	t.Run("rename", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "Old")
		addVersions(t, o, contents)
		require.NoError(t, o.WriteOverview())
		oldKeys := o.DependentDataBlocks(false)

		require.NoError(t, o.RenameTo("New/Name"))
		for _, key := range oldKeys {
			assert.Equal(t, -1, store.Size(key), key)
		}
		assert.Panics(t, func() { o.Entries() })
		assert.Panics(t, func() { _, _ = o.AddVersion(nil, "") })

		renamed := New(store, "New/Name")
		require.NoError(t, renamed.ReadOverview())
		for k := 1; k <= len(contents); k++ {
			got, err := renamed.VersionContentRaw(k)
			require.NoError(t, err)
			assert.Equal(t, contents[k-1], got)
		}
	})

	t.Run("rename to itself", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		o := New(store, "P")
		addVersions(t, o, contents)
		require.NoError(t, o.WriteOverview())
		blocks := store.Len()

		err := o.RenameTo("P")
		var ierr *InternalError
		assert.ErrorAs(t, err, &ierr)
		assert.Equal(t, blocks, store.Len())
		assert.Len(t, o.Entries(), len(contents))

		reloaded := New(store, "P")
		require.NoError(t, reloaded.ReadOverview())
		require.Len(t, reloaded.Entries(), len(contents))
		got, err := reloaded.VersionContentRaw(1)
		require.NoError(t, err)
		assert.Equal(t, contents[0], got)
	})

	t.Run("delete", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		other := New(store, "Other")
		addVersions(t, other, contents[:1])
		require.NoError(t, other.WriteOverview())
		blocks := store.Len()

		o := New(store, "P")
		addVersions(t, o, contents)
		require.NoError(t, o.WriteOverview())

		require.NoError(t, o.Delete())
		assert.Equal(t, blocks, store.Len())
		assert.Panics(t, func() { _ = o.WriteOverview() })
	})

	t.Run("dependent blocks", func(t *testing.T) {
		o := New(blobstore.NewMemoryStore(), "P")
		addVersions(t, o, contents[:2])
		assert.Equal(t, []string{
			"versioning/packet/versionNo/1/P",
			"versioning/packet/versionNo/2/P",
		}, o.DependentDataBlocks(true))
		assert.Equal(t, "versioning/overview/P", o.DependentDataBlocks(false)[2])
	})
}

func TestDeleteBrokenData(t *testing.T) {
	store := newFaultyStore()
	keys := []string{
		OverviewKey("A"),
		PacketKey(1, "A"),
		PacketKey(12, "A"),
		PacketKey(3, "A"),
		PacketKey(1, "A/B"),
		PacketKey(1, "AB"),
		OverviewKey("AB"),
		"versioning/packet/versionNo/x/A",
	}
	for _, k := range keys {
		require.NoError(t, store.StoreDataBlock(k, []byte("garbage"), blobstore.HintIntern))
	}
	store.failDelete[PacketKey(12, "A")] = true

	err := DeleteBrokenData(store, "A", nil)
	assert.Error(t, err)

	remaining, err := store.DataBlockKeysStartingWith("")
	require.NoError(t, err)
	assert.Equal(t, []string{
		OverviewKey("AB"),
		"versioning/packet/versionNo/1/A/B",
		"versioning/packet/versionNo/1/AB",
		"versioning/packet/versionNo/12/A",
		"versioning/packet/versionNo/x/A",
	}, remaining)
}

func TestVersionText(t *testing.T) {
	o := New(blobstore.NewMemoryStore(), "P")
	_, err := o.AddVersionText("Grüße\n", "")
	require.NoError(t, err)

	raw, err := o.VersionContentRaw(1)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0xEF, 0xBB, 0xBF}, "Grüße\n"...), raw)

	text, err := o.VersionContent(1)
	require.NoError(t, err)
	assert.Equal(t, "Grüße\n", text)

	// Content added as bytes without byte order mark
	_, err = o.AddVersion([]byte("plain"), "")
	require.NoError(t, err)
	text, err = o.VersionContent(-1)
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	// UTF-16 with byte order mark
	_, err = o.AddVersion([]byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "")
	require.NoError(t, err)
	text, err = o.VersionContent(-1)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name         string
		newer, older string
	}{
		{"equal", "a\nb\n", "a\nb\n"},
		{"line changed", "a\nb\nc\n", "a\nX\nc\n"},
		{"both empty", "", ""},
		{"from empty", "", "a\nb"},
		{"to empty", "a\nb", ""},
		{"no line feeds", "abc", "abd"},
		{"lines inserted and removed", "1\n2\n3\n4\n5\n", "0\n1\n3\n4\n4.5\n5\n6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet := makeDelta([]byte(tt.newer), []byte(tt.older))
			assert.Equal(t, []byte{0x00, 'W', 'D', 'P'}, packet[:4])
			got, err := applyDelta([]byte(tt.newer), packet)
			require.NoError(t, err)
			assert.Equal(t, tt.older, string(got))
		})
	}

	t.Run("wrong base", func(t *testing.T) {
		packet := makeDelta([]byte("a\nb\n"), []byte("a\n"))
		_, err := applyDelta([]byte("a\nbc\n"), packet)
		assert.ErrorIs(t, err, ErrDamaged)
	})

	t.Run("not a delta", func(t *testing.T) {
		_, err := applyDelta([]byte("a"), []byte("plain content"))
		assert.ErrorIs(t, err, ErrDamaged)
	})
}

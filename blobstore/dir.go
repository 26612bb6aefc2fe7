package blobstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// DirStore keeps each data block in its own file inside a directory.
// Blocks stored with HintIntern go to the "intern" subdirectory and the ones
// stored with HintExtern to the "extern" subdirectory. Each file starts with
// a CRC-32 checksum of the data, so incomplete writes are detected on read.
//
// The file name is the path escaped key, so it must fit in maxFileName bytes
// once escaped. Longer keys are rejected with ErrKeyTooLong when storing and
// are never found when retrieving.
type DirStore struct {
	root string
}

// OpenDirStore returns a store using the directory root, creating it if needed.
func OpenDirStore(root string) (*DirStore, error) {
	for _, sub := range []string{"intern", "extern"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &DirStore{root: root}, nil
}

// Most file systems do not allow longer file names
const maxFileName = 255

// ErrKeyTooLong is returned when a key does not fit in a file name.
var ErrKeyTooLong = errors.New("key too long for a file name")

func (d *DirStore) fileName(key string, hint StoreHint) string {
	return filepath.Join(d.root, hint.String(), url.PathEscape(key))
}

func fitsFileName(key string) bool {
	return len(url.PathEscape(key)) <= maxFileName
}

func (d *DirStore) RetrieveDataBlock(key string) ([]byte, error) {
	if !fitsFileName(key) {
		return nil, ErrNotFound
	}

	for _, hint := range []StoreHint{HintIntern, HintExtern} {
		raw, err := os.ReadFile(d.fileName(key, hint))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDamaged, key, err)
		}

		// Check the integrity of the data
		if len(raw) < 4 {
			return nil, fmt.Errorf("%w: %s: truncated", ErrDamaged, key)
		}
		sum := binary.BigEndian.Uint32(raw[:4])
		data := raw[4:]
		if crc32.ChecksumIEEE(data) != sum {
			return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrDamaged, key)
		}
		return data, nil
	}

	return nil, ErrNotFound
}

func (d *DirStore) StoreDataBlock(key string, data []byte, hint StoreHint) error {
	if !fitsFileName(key) {
		return fmt.Errorf("storing %q: %w (%d bytes escaped, at most %d)", key, ErrKeyTooLong, len(url.PathEscape(key)), maxFileName)
	}

	raw := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(raw, crc32.ChecksumIEEE(data))
	copy(raw[4:], data)

	// Write to a temporary file and rename, so the block is replaced atomically
	name := d.fileName(key, hint)
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(raw)
	err = multierr.Append(err, tmp.Close())
	if err == nil {
		err = os.Rename(tmp.Name(), name)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storing %s: %w", key, err)
	}

	// The block may have been stored before with the other hint
	other := HintExtern
	if hint == HintExtern {
		other = HintIntern
	}
	if err := os.Remove(d.fileName(key, other)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *DirStore) DeleteDataBlock(key string) error {
	if !fitsFileName(key) {
		return nil
	}
	var err error
	for _, hint := range []StoreHint{HintIntern, HintExtern} {
		if e := os.Remove(d.fileName(key, hint)); e != nil && !errors.Is(e, fs.ErrNotExist) {
			err = multierr.Append(err, e)
		}
	}
	return err
}

func (d *DirStore) DataBlockKeysStartingWith(prefix string) ([]string, error) {
	var keys []string
	for _, hint := range []StoreHint{HintIntern, HintExtern} {
		entries, err := os.ReadDir(filepath.Join(d.root, hint.String()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
				continue
			}
			key, err := url.PathUnescape(e.Name())
			if err != nil {
				continue
			}
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

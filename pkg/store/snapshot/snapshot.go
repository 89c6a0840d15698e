package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sentinel-hq/aegis/pkg/vector"
)

// FormatVersion is the current snapshot file format version.
const FormatVersion = 1

var magic = [4]byte{'A', 'E', 'G', 'S'}

// headerSize is magic + version + count.
const headerSize = 4 + 2 + 4

// ErrNotFound indicates the rule id has no record in the snapshot.
var ErrNotFound = errors.New("rule not found in snapshot")

// FormatError indicates a structurally invalid snapshot file.
type FormatError struct {
	Path    string
	Message string
}

// Error returns the error message.
func (e *FormatError) Error() string {
	return fmt.Sprintf("snapshot %q: %s", e.Path, e.Message)
}

// span locates one record inside the snapshot file.
type span struct {
	offset uint64
	length uint32
}

// Store is the snapshot tier. Reads go through a retained file handle
// that is swapped together with the offset index under one lock, so a
// span is only ever applied to the file generation it was parsed from:
// a rewrite renames a new file into place, but the old handle keeps
// reading the old inode until the swap. Rewrites themselves are
// serialized by a separate mutex so read-modify-write cycles do not
// interleave.
type Store struct {
	path   string
	logger *slog.Logger

	// writeMu serializes rewrites (load, modify, write back).
	writeMu sync.Mutex

	// mu guards file and index, which must only change together.
	mu    sync.RWMutex
	file  *os.File
	index map[string]span
}

// Open opens the snapshot file at path, reading its index into memory
// and retaining the file handle for point lookups. A missing file
// yields an empty store; the file is created on the first write.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.Default().With("component", "store.snapshot"),
		index:  make(map[string]span),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("snapshot file absent, starting empty", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("open snapshot %q: %w", path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open snapshot %q: %w", path, err)
	}
	index, err := parseIndex(path, data)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.file = f
	s.index = index

	s.logger.Info("snapshot opened", "path", path, "entries", len(index))
	return s, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of indexed records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Get performs a point lookup via the offset index. The record bytes
// are read from the retained handle while the index lock is held, so a
// concurrent rewrite can never pair this span with the new file's
// contents.
func (s *Store) Get(id string) (*vector.RuleVector, error) {
	s.mu.RLock()
	sp, ok := s.index[id]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrNotFound
	}
	buf := make([]byte, sp.length)
	_, err := s.file.ReadAt(buf, int64(sp.offset))
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("snapshot read %q at %d: %w", s.path, sp.offset, err)
	}

	rv, err := vector.DecodeRuleVector(buf)
	if err != nil {
		return nil, fmt.Errorf("snapshot record %q: %w", id, err)
	}
	return rv, nil
}

// LoadAll reads every record from the snapshot file. Used for fast-tier
// hydration and refresh.
func (s *Store) LoadAll() (map[string]*vector.RuleVector, error) {
	raw, err := s.loadRaw()
	if err != nil {
		return nil, err
	}

	out := make(map[string]*vector.RuleVector, len(raw))
	for id, payload := range raw {
		rv, err := vector.DecodeRuleVector(payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot record %q: %w", id, err)
		}
		out[id] = rv
	}
	return out, nil
}

// Put writes or replaces the record for a rule id, atomically rewriting
// the snapshot file.
func (s *Store) Put(id string, rv *vector.RuleVector) error {
	if id == "" {
		return fmt.Errorf("snapshot put: rule id cannot be empty")
	}
	payload, err := vector.EncodeRuleVector(rv)
	if err != nil {
		return fmt.Errorf("snapshot put %q: %w", id, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, err := s.loadRaw()
	if err != nil {
		return err
	}
	raw[id] = payload
	return s.writeAll(raw)
}

// PutAll writes or replaces a batch of records in a single atomic
// rewrite. Installs go through this path so an n-rule install costs one
// file rewrite rather than n.
func (s *Store) PutAll(vectors map[string]*vector.RuleVector) error {
	if len(vectors) == 0 {
		return nil
	}
	payloads := make(map[string][]byte, len(vectors))
	for id, rv := range vectors {
		if id == "" {
			return fmt.Errorf("snapshot put: rule id cannot be empty")
		}
		payload, err := vector.EncodeRuleVector(rv)
		if err != nil {
			return fmt.Errorf("snapshot put %q: %w", id, err)
		}
		payloads[id] = payload
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, err := s.loadRaw()
	if err != nil {
		return err
	}
	for id, payload := range payloads {
		raw[id] = payload
	}
	return s.writeAll(raw)
}

// Delete removes the record for a rule id, atomically rewriting the
// snapshot file. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) error {
	return s.DeleteAll([]string{id})
}

// DeleteAll removes a batch of records in a single atomic rewrite.
// Absent ids are skipped; if none of the ids are present the file is
// left untouched.
func (s *Store) DeleteAll(ids []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, err := s.loadRaw()
	if err != nil {
		return err
	}
	removed := 0
	for _, id := range ids {
		if _, ok := raw[id]; ok {
			delete(raw, id)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	return s.writeAll(raw)
}

// Close releases the retained file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// loadRaw reads all record payloads without decoding them, so rewrites
// pass stored bytes through untouched. Reads through the retained
// handle under the index lock, keeping spans and file contents from
// the same generation.
func (s *Store) loadRaw() (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.index) == 0 {
		return make(map[string][]byte), nil
	}

	fi, err := s.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("snapshot stat %q: %w", s.path, err)
	}
	data := make([]byte, fi.Size())
	if n, err := s.file.ReadAt(data, 0); err != nil && !(errors.Is(err, io.EOF) && n == len(data)) {
		return nil, fmt.Errorf("snapshot read %q: %w", s.path, err)
	}

	out := make(map[string][]byte, len(s.index))
	for id, sp := range s.index {
		end := sp.offset + uint64(sp.length)
		if end > uint64(len(data)) {
			return nil, &FormatError{Path: s.path, Message: fmt.Sprintf("record %q spans past end of file", id)}
		}
		out[id] = data[sp.offset:end]
	}
	return out, nil
}

// writeAll serializes the full snapshot to a temp file, renames it over
// the snapshot path, then swaps in the new handle and index together.
// Caller holds writeMu.
func (s *Store) writeAll(raw map[string][]byte) error {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		if len(id) > 0xFFFF {
			return fmt.Errorf("snapshot write: rule id longer than 65535 bytes")
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	indexSize := 0
	for _, id := range ids {
		indexSize += 2 + len(id) + 8 + 4
	}

	buf := make([]byte, 0, headerSize+indexSize)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, FormatVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))

	newIndex := make(map[string]span, len(ids))
	offset := uint64(headerSize + indexSize)
	for _, id := range ids {
		length := uint32(len(raw[id]))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(id)))
		buf = append(buf, id...)
		buf = binary.LittleEndian.AppendUint64(buf, offset)
		buf = binary.LittleEndian.AppendUint32(buf, length)
		newIndex[id] = span{offset: offset, length: length}
		offset += uint64(length)
	}
	for _, id := range ids {
		buf = append(buf, raw[id]...)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot write %q: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot write %q: %w", s.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot write %q: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot sync %q: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot close %q: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot rename %q: %w", s.path, err)
	}

	newFile, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("snapshot reopen %q: %w", s.path, err)
	}

	s.mu.Lock()
	old := s.file
	s.file = newFile
	s.index = newIndex
	s.mu.Unlock()
	// No reader can still hold the old handle: reads finish under the
	// lock released above.
	if old != nil {
		old.Close()
	}

	s.logger.Debug("snapshot rewritten", "path", s.path, "entries", len(newIndex))
	return nil
}

// parseIndex validates the header and reads the offset index.
func parseIndex(path string, data []byte) (map[string]span, error) {
	if len(data) < headerSize {
		return nil, &FormatError{Path: path, Message: fmt.Sprintf("file too short: %d bytes", len(data))}
	}
	if [4]byte(data[:4]) != magic {
		return nil, &FormatError{Path: path, Message: "bad magic"}
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != FormatVersion {
		return nil, &FormatError{Path: path, Message: fmt.Sprintf("unsupported format version %d", version)}
	}
	count := binary.LittleEndian.Uint32(data[6:10])

	index := make(map[string]span, count)
	pos := headerSize
	for i := uint32(0); i < count; i++ {
		if len(data)-pos < 2 {
			return nil, &FormatError{Path: path, Message: "truncated index"}
		}
		idLen := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if len(data)-pos < idLen+12 {
			return nil, &FormatError{Path: path, Message: "truncated index entry"}
		}
		id := string(data[pos : pos+idLen])
		pos += idLen
		offset := binary.LittleEndian.Uint64(data[pos:])
		pos += 8
		length := binary.LittleEndian.Uint32(data[pos:])
		pos += 4

		if offset+uint64(length) > uint64(len(data)) {
			return nil, &FormatError{Path: path, Message: fmt.Sprintf("record %q spans past end of file", id)}
		}
		if _, dup := index[id]; dup {
			return nil, &FormatError{Path: path, Message: fmt.Sprintf("duplicate record id %q", id)}
		}
		index[id] = span{offset: offset, length: length}
	}
	return index, nil
}

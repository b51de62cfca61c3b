package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/matzehuels/mdbook-diagrams/pkg/diagram"
)

// FileStore is the content-addressed artifact directory.
//
// Artifacts are named <prefix><sum>.<ext>. A file is written once and never
// overwritten: when two writers race on the same key the first one wins and
// the second treats the existing file as already cached. Since the content
// is a pure function of the key, both writers hold the same bytes.
type FileStore struct {
	dir    string
	prefix string
}

// NewFileStore opens (and creates, if needed) the artifact directory.
func NewFileStore(dir, prefix string) (*FileStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, prefix: prefix}, nil
}

// Dir returns the artifact directory.
func (s *FileStore) Dir() string { return s.dir }

// Prefix returns the filename prefix.
func (s *FileStore) Prefix() string { return s.prefix }

// Path returns the location of the artifact for key, whether or not it exists.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.dir, s.prefix+key.String())
}

// Exists reports whether a non-empty artifact is stored for key.
func (s *FileStore) Exists(key Key) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Read returns the stored artifact. A missing or zero-length file yields
// [ErrNotFound].
func (s *FileStore) Read(key Key) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// Write stores data under key and returns the artifact path.
//
// The bytes are staged in a temporary file in the same directory and then
// hard-linked into place, so readers never observe a partial artifact. An
// existing artifact is left untouched. Zero-length files left behind by an
// interrupted writer are replaced.
func (s *FileStore) Write(key Key, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyArtifact
	}
	path := s.Path(key)

	tmp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}

	err = os.Link(tmpPath, path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrExist):
		if s.Exists(key) {
			return path, nil
		}
		// Zero-length leftover; replace it.
		if err := os.Rename(tmpPath, path); err != nil {
			return "", fmt.Errorf("store artifact: %w", err)
		}
		return path, nil
	default:
		// Filesystems without hard links fall back to rename, which may
		// replace a concurrently written file with identical bytes.
		if s.Exists(key) {
			return path, nil
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return "", fmt.Errorf("store artifact: %w", err)
		}
		return path, nil
	}
}

// Entry describes one stored artifact.
type Entry struct {
	Name    string
	Path    string
	Sum     string
	Format  diagram.Format
	Size    int64
	ModTime time.Time
}

// List returns the stored artifacts, newest first. Only files that match the
// store's naming scheme are reported; unrelated files in a shared directory
// such as the OS temp dir are ignored.
func (s *FileStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		sum, format, ok := s.parseName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(s.dir, de.Name()),
			Sum:     sum,
			Format:  format,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// Clear removes every stored artifact and returns how many were removed.
func (s *FileStore) Clear() (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", e.Name, err)
		}
		removed++
	}
	return removed, nil
}

// parseName splits an artifact filename into digest and format.
func (s *FileStore) parseName(name string) (string, diagram.Format, bool) {
	rest, ok := strings.CutPrefix(name, s.prefix)
	if !ok {
		return "", "", false
	}
	sum, ext, ok := strings.Cut(rest, ".")
	if !ok || !isHexDigest(sum) {
		return "", "", false
	}
	format := diagram.Format(ext)
	if !format.Valid() {
		return "", "", false
	}
	return sum, format, true
}

func isHexDigest(s string) bool {
	if len(s) != 2*20 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

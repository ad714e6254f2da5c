package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jimger/wizz-aycf-route-finder/pkg/fileutil"
	"github.com/jimger/wizz-aycf-route-finder/pkg/hashutil"
)

const fileStoreExt = ".json"

// FileStore keeps one JSON document per key in a directory. The file name is a
// blake3 digest of the key so arbitrary keys (return keys contain spaces and
// parentheses) map to safe names; the key itself is stored inside the document.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

type fileRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, &CacheError{
			Message: err.Error(),
			Cause:   ErrCauseWriteFailed,
		}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, hashutil.KeyDigest(key)+fileStoreExt)
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &CacheError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadFailed}
	}

	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil || record.Key != key {
		return "", false, &CacheError{
			Message: fmt.Sprintf("entry %q is unreadable", key),
			Cause:   ErrCauseCorruptEntry,
		}
	}
	return record.Value, true, nil
}

func (s *FileStore) Put(key string, value string) error {
	data, err := json.Marshal(fileRecord{Key: key, Value: value})
	if err != nil {
		return &CacheError{Message: err.Error(), Cause: ErrCauseEncodeFailed}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if writeErr := fileutil.WriteFileAtomic(s.path(key), data); writeErr != nil {
		return &CacheError{Message: writeErr.Error(), Cause: ErrCauseWriteFailed}
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &CacheError{Message: err.Error(), Cause: ErrCauseWriteFailed}
	}
	return nil
}

// Keys lists the keys of every readable document. Unreadable files are skipped;
// PurgeCorrupt removes the undecodable ones.
func (s *FileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &CacheError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadFailed}
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileStoreExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var record fileRecord
		if err := json.Unmarshal(data, &record); err != nil || record.Key == "" {
			continue
		}
		keys = append(keys, record.Key)
	}
	return keys, nil
}

// PurgeCorrupt deletes every document that does not decode to a keyed record.
// Files that cannot be read at all are left alone.
func (s *FileStore) PurgeCorrupt() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, &CacheError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadFailed}
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileStoreExt) {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var record fileRecord
		if err := json.Unmarshal(data, &record); err == nil && record.Key != "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, &CacheError{Message: err.Error(), Cause: ErrCauseWriteFailed}
		}
		removed++
	}
	return removed, nil
}

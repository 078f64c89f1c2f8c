package file

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	crerr "github.com/cockroachdb/errors"
)

const (
	valueExt = ".json"
	tmpExt   = ".tmp"
)

// KVStore keeps one file per key under dir. Writes go to a temp file that is
// renamed over the target, so readers never see a partial value.
type KVStore struct {
	mu  sync.Mutex
	dir string
}

func NewKVStore(dir string) (*KVStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, crerr.New("kv directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, crerr.Wrapf(err, "create kv directory %q", dir)
	}
	return &KVStore{dir: dir}, nil
}

func (s *KVStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+valueExt)
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, crerr.Wrapf(err, "read kv key %q", key)
	}
	return string(raw), true, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp := target + tmpExt
	_ = os.Remove(tmp)
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return crerr.Wrapf(err, "write kv key %q", key)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return crerr.Wrapf(err, "commit kv key %q", key)
	}
	return nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return crerr.Wrapf(err, "delete kv key %q", key)
	}
	return nil
}

func (s *KVStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, crerr.Wrapf(err, "list kv directory %q", s.dir)
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, valueExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, valueExt))
		if err != nil {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

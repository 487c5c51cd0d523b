package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore lays submission uploads out as plain files under a base directory.
// Suits offline single-node deployments; online deployments swap in an object
// store behind the same interface.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", base, err)
	}
	return &FSStore{base: base}, nil
}

// resolve maps a key to its path under base. Keys must stay inside the base
// directory: absolute paths and ".." segments are rejected, not cleaned.
func (s *FSStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	if filepath.IsAbs(key) || strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: bad key %q", key)
	}
	return filepath.Join(s.base, filepath.FromSlash(key)), nil
}

func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", err
	}
	return key, f.Close()
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

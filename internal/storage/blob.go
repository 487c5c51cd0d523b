package storage

import "io"

// BlobStore keeps assignment submission uploads. Keys are store-relative,
// "submissions/<submission uuid>/<filename>"; the store owns the layout below
// that.
type BlobStore interface {
	// Put writes the object and returns the canonical key.
	Put(key string, r io.Reader) (string, error)
	Get(key string) (io.ReadCloser, error)
}

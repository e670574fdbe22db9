// Package objstore provides path-addressed blob storage for the raw and refined zones.
// A Store is bound to one container (namespace); paths are slash-separated and
// relative to it.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// Store writes and reads objects inside one container.
type Store interface {
	// Put writes data at path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte) error
	// Get reads the object at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// List returns every object path under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Location describes the store for logs (e.g. azure://raw-data).
	Location() string
}

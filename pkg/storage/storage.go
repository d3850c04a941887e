// Package storage defines the FileStore interface for reading and writing
// files. deskmate's file transcript sink writes one JSON document per
// conversation through a FileStore, so the same code path targets a local
// directory or an S3-compatible bucket.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is replaced.
	// The caller must close the returned WriteCloser to commit the data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// List returns the paths of all files under dir, sorted.
	// A missing dir yields an empty list.
	List(ctx context.Context, dir string) ([]string, error)
}

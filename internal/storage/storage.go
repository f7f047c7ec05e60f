// Package storage defines the object storage collaborator used for uploaded
// attachments.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound indicates the stored path does not exist.
	ErrObjectNotFound = errors.New("storage object not found")
	// ErrPathTraversal indicates a stored path attempted directory traversal.
	ErrPathTraversal = errors.New("path traversal is forbidden")
)

// Object describes where an uploaded payload was written.
type Object struct {
	// URL is the consumer-accessible address of the object.
	URL string `json:"url"`
	// StoredPath is the provider key used for Download and Delete.
	StoredPath string `json:"stored_path"`
}

// Provider abstracts object storage operations.
type Provider interface {
	// Upload writes the payload under name and reports where it landed.
	Upload(ctx context.Context, name string, reader io.Reader) (Object, error)
	// Download returns a reader for a previously uploaded object.
	Download(ctx context.Context, storedPath string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, storedPath string) error
}

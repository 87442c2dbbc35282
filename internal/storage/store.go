package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrWrite wraps any durable-storage I/O failure (disk full, permissions).
// Absence of a file on Delete is not an ErrWrite.
var ErrWrite = errors.New("storage write failed")

// StoredFile pairs the server-generated name with the user-supplied one.
type StoredFile struct {
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName"`
}

// Store owns binary attachment files. Stored names are generated fresh per
// Save and never reused, even after deletion.
type Store interface {
	Save(ctx context.Context, r io.Reader, originalName string) (StoredFile, error)
	// Delete is idempotent: a missing file is success.
	Delete(ctx context.Context, storedName string) error
	// Resolve returns the absolute location of a stored file without touching it.
	Resolve(storedName string) (string, error)
	// List returns stored names whose last modification is at least minAge old.
	List(ctx context.Context, minAge time.Duration) ([]string, error)
}

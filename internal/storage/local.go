package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore keeps attachments in a flat directory on local disk.
type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("%w: base path is empty", ErrWrite)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage directory: %v", ErrWrite, err)
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve storage directory: %v", ErrWrite, err)
	}

	return &LocalStore{basePath: abs}, nil
}

var _ Store = (*LocalStore)(nil)

func (s *LocalStore) Save(ctx context.Context, r io.Reader, originalName string) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}

	originalName = strings.TrimSpace(originalName)
	storedName := uuid.NewString() + sanitizeExt(originalName)

	fullPath := filepath.Join(s.basePath, storedName)
	// O_EXCL: a generated name must never land on an existing object.
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("%w: create %s: %v", ErrWrite, storedName, err)
	}

	if err := copyWithContext(ctx, f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fullPath)
		if ctx.Err() != nil {
			return StoredFile{}, ctx.Err()
		}
		return StoredFile{}, fmt.Errorf("%w: write %s: %v", ErrWrite, storedName, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(fullPath)
		return StoredFile{}, fmt.Errorf("%w: sync %s: %v", ErrWrite, storedName, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(fullPath)
		return StoredFile{}, fmt.Errorf("%w: close %s: %v", ErrWrite, storedName, err)
	}

	return StoredFile{
		StoredName:   storedName,
		OriginalName: originalName,
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, storedName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.Resolve(storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", ErrWrite, storedName, err)
	}
	return nil
}

func (s *LocalStore) Resolve(storedName string) (string, error) {
	name := strings.TrimSpace(storedName)
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: invalid stored name %q", ErrWrite, storedName)
	}
	return filepath.Join(s.basePath, name), nil
}

func (s *LocalStore) List(ctx context.Context, minAge time.Duration) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read storage directory: %v", ErrWrite, err)
	}

	cutoff := time.Now().Add(-minAge)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// copyWithContext copies in chunks and checks the context between them, so a
// deadline on Save bounds the whole upload instead of just its start.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// sanitizeExt keeps only a plain extension from the user-supplied name so the
// stored name stays a single path element.
func sanitizeExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if ext == "" || ext == "." || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

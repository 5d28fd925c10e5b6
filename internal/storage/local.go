package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/bookbonus/bonus-backend/errors"
)

// LocalFileStorage stores files on the local filesystem. Development only;
// config validation refuses it in production.
type LocalFileStorage struct {
	basePath string
}

// NewLocalFileStorage creates a new local file storage instance.
func NewLocalFileStorage(basePath string) *LocalFileStorage {
	_ = os.MkdirAll(basePath, 0755)
	return &LocalFileStorage{basePath: basePath}
}

// containedPath resolves the full path and verifies it stays within basePath.
// Returns an error if the path escapes the storage directory.
func (s *LocalFileStorage) containedPath(key string) (string, error) {
	fullPath := filepath.Join(s.basePath, key)
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve full path: %w", err)
	}
	if !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) && absFull != absBase {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

// Save writes the file to disk, creating parent directories as needed.
func (s *LocalFileStorage) Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	fullPath, err := s.containedPath(key)
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return apperrors.NewStorageError(fmt.Errorf("failed to create directory: %w", err))
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return apperrors.NewStorageError(fmt.Errorf("failed to create file: %w", err))
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return apperrors.NewStorageError(fmt.Errorf("failed to write file: %w", err))
	}
	return nil
}

// Load opens the file for reading.
func (s *LocalFileStorage) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.containedPath(key)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return f, nil
}

// Delete removes the file. Missing files are not an error.
func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.containedPath(key)
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return apperrors.NewStorageError(fmt.Errorf("failed to delete file: %w", err))
	}
	return nil
}

// Exists reports whether the file is present on disk.
func (s *LocalFileStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.containedPath(key)
	if err != nil {
		return false, apperrors.NewStorageError(err)
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, apperrors.NewStorageError(err)
	}
	return true, nil
}

// GetURL returns a file:// reference. Local storage has no presigning.
func (s *LocalFileStorage) GetURL(ctx context.Context, key string) (string, error) {
	fullPath, err := s.containedPath(key)
	if err != nil {
		return "", apperrors.NewStorageError(err)
	}
	return "file://" + fullPath, nil
}

// Package storage abstracts the durable blob backend that holds uploaded
// receipt documents and bonus asset content.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FileStorage provides an abstraction over blob storage backends.
type FileStorage interface {
	Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Load opens the stored object for reading. The caller closes it.
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetURL returns a short-lived retrieval reference for the stored object.
	GetURL(ctx context.Context, key string) (string, error)
}

var safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// SanitizeFilename removes path separators and dangerous characters from a
// filename. Preserves the file extension when truncating long names.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	if len(name) > 255 {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		maxStem := 255 - len(ext)
		if maxStem < 1 {
			maxStem = 1
		}
		if len(stem) > maxStem {
			stem = stem[:maxStem]
		}
		name = stem + ext
	}
	return name
}

// ReceiptKey derives a collision-resistant storage key for an uploaded
// receipt. The user-supplied filename never appears verbatim: the key is a
// digest of submitter identity, original name, and submission time, plus the
// canonical extension for the detected content type.
func ReceiptKey(userID, originalName string, submittedAt time.Time, ext string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", userID, SanitizeFilename(originalName), submittedAt.UnixNano())))
	return fmt.Sprintf("receipts/%s/%s%s", userID, hex.EncodeToString(sum[:])[:32], ext)
}

// validateKey rejects storage keys containing path traversal segments.
func validateKey(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected in storage key")
		}
	}
	return nil
}

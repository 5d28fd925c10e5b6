// Package upload implements the ingestion and validation gateway for receipt
// submissions: size and content-type constraints, magic-byte sniffing, and
// content fingerprinting.
package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the maximum allowed upload size (10 MiB).
const MaxFileSize = 10 * 1024 * 1024

// Allowed MIME types for receipt uploads. The detected type, never the
// declared one, is checked against this list.
var allowedMimeTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// mimeAliases maps commonly mis-declared MIME types onto their canonical form
// so a declared "image/jpg" matches detected "image/jpeg".
var mimeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
	"application/x-pdf": "application/pdf",
}

// ValidatedUpload is the result of a successful gateway pass.
type ValidatedUpload struct {
	// DetectedMime is the content type sniffed from the payload bytes.
	DetectedMime string
	// Extension is the canonical file extension for the detected type.
	Extension string
	Size      int64
	// Fingerprint is the SHA-256 hex digest of the raw bytes; the dedup key.
	Fingerprint string
}

// normalizeMime lowercases a MIME type, strips parameters (e.g. "; charset"),
// and resolves known aliases.
func normalizeMime(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(m, ";"); idx >= 0 {
		m = strings.TrimSpace(m[:idx])
	}
	if canonical, ok := mimeAliases[m]; ok {
		return canonical
	}
	return m
}

// Validate enforces the gateway constraints over a raw payload and its
// declared metadata. The declared MIME type is never trusted for content
// decisions; it is only cross-checked against the detected type to reject
// extension/MIME spoofing. All failures are typed AppErrors.
func Validate(payload []byte, declaredMime string) (*ValidatedUpload, error) {
	if len(payload) == 0 {
		return nil, apperrors.ValidationFailed("empty_file", "uploaded file is empty")
	}
	if int64(len(payload)) > MaxFileSize {
		return nil, apperrors.TooLarge(int64(len(payload)), MaxFileSize)
	}

	detected := normalizeMime(mimetype.Detect(payload).String())
	ext, ok := allowedMimeTypes[detected]
	if !ok {
		return nil, apperrors.ValidationFailed("invalid_mime_type",
			fmt.Sprintf("content type %s is not allowed. Allowed: jpeg, png, pdf", detected))
	}

	// A missing declared type is tolerated (some clients omit it); a wrong
	// one is not.
	if declaredMime != "" && normalizeMime(declaredMime) != detected {
		return nil, apperrors.TypeMismatch(declaredMime, detected)
	}

	sum := sha256.Sum256(payload)

	return &ValidatedUpload{
		DetectedMime: detected,
		Extension:    ext,
		Size:         int64(len(payload)),
		Fingerprint:  hex.EncodeToString(sum[:]),
	}, nil
}

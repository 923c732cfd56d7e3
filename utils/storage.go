package utils

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploader stores an uploaded file under key and returns its public URL.
// Delete removes a stored object; a missing object is not an error.
type Uploader interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "prefix/<uuid><ext>", defaulting to .jpg when the upload
// has no extension.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return prefix + "/" + uuid.NewString() + ext
}

// IsImage checks the declared content type of an upload.
func IsImage(fileHeader *multipart.FileHeader) bool {
	if fileHeader == nil {
		return false
	}
	return strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "image/")
}

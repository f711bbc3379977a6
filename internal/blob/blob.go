// Package blob stores uploaded images under relative keys such as
// "posts/<uuid>.png".
package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("blob: invalid key")

type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh key under dir with the given extension.
func NewKey(dir, ext string) string {
	return dir + "/" + uuid.NewString() + "." + strings.TrimPrefix(ext, ".")
}

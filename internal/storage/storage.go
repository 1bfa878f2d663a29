// Package storage keeps attachment blobs and hands out URLs for them.
package storage

import (
	"context"
	"errors"
)

// BlobStore is where attachment bytes live.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

var errBadKey = errors.New("storage: invalid key")

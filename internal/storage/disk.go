package storage

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PublicPrefix is where the HTTP server mounts a DiskStore.
const PublicPrefix = "/uploads"

// DiskStore keeps blobs under a local directory. Used for development
// and single node deployments without a bucket.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

func (d *DiskStore) Dir() string { return d.dir }

func (d *DiskStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", errBadKey
	}
	return filepath.Join(d.dir, filepath.FromSlash(clean)), nil
}

func (d *DiskStore) Put(_ context.Context, key, _ string, data []byte) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (d *DiskStore) URL(_ context.Context, key string) (string, error) {
	if _, err := d.path(key); err != nil {
		return "", err
	}
	return PublicPrefix + path.Clean("/"+key), nil
}

func (d *DiskStore) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

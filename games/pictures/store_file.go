/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"

	"github.com/spf13/afero"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FileStore writes one JSON file per game into a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &FileStore{fs: fs, dir: dir}, nil
}

func (f *FileStore) file(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid game id %q", key)
	}
	return path.Join(f.dir, key+".json"), nil
}

func (f *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	name, err := f.file(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(f.fs, name)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// Save writes to a temporary file and renames it over the record.
func (f *FileStore) Save(_ context.Context, key string, data []byte) error {
	name, err := f.file(key)
	if err != nil {
		return err
	}

	tmp := name + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.fs.Rename(tmp, name); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	name, err := f.file(key)
	if err != nil {
		return err
	}

	err = f.fs.Remove(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}

	return nil
}

func (f *FileStore) Close() error {
	return nil
}

package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// File stores each namespace as <dir>/<namespace>.json
type File struct {
	dir string
}

// NewFile creates a file repository, creating dir if needed
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, goerr.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", dir))
	}
	return &File{dir: dir}, nil
}

func (f *File) path(namespace string) string {
	return filepath.Join(f.dir, namespace+".json")
}

func (f *File) Get(ctx context.Context, namespace string) ([]byte, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(ErrNotFound, "namespace file does not exist", goerr.V("namespace", namespace))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read namespace file", goerr.V("path", f.path(namespace)))
	}
	return data, nil
}

// Put writes to a temporary file and renames it so that a crash never leaves
// a truncated projection behind.
func (f *File) Put(ctx context.Context, namespace string, data []byte) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+namespace+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("dir", f.dir))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write temporary file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temporary file", goerr.V("path", tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), f.path(namespace)); err != nil {
		return goerr.Wrap(err, "failed to replace namespace file", goerr.V("path", f.path(namespace)))
	}
	return nil
}

func (f *File) Delete(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	if err := os.Remove(f.path(namespace)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to remove namespace file", goerr.V("path", f.path(namespace)))
	}
	return nil
}

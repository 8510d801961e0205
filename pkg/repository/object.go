package repository

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/adapter"
)

// Object stores each namespace as <prefix>/<namespace>.json in an object store
type Object struct {
	storage adapter.Storage
	prefix  string
}

// NewObject creates a repository on top of the object storage adapter
func NewObject(storage adapter.Storage, prefix string) *Object {
	return &Object{
		storage: storage,
		prefix:  prefix,
	}
}

func (o *Object) key(namespace string) string {
	return path.Join(o.prefix, namespace+".json")
}

func (o *Object) Get(ctx context.Context, namespace string) ([]byte, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	reader, err := o.storage.Get(ctx, o.key(namespace))
	if errors.Is(err, adapter.ErrObjectNotFound) {
		return nil, goerr.Wrap(ErrNotFound, "namespace object does not exist", goerr.V("namespace", namespace))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open namespace object", goerr.V("key", o.key(namespace)))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read namespace object", goerr.V("key", o.key(namespace)))
	}
	return data, nil
}

func (o *Object) Put(ctx context.Context, namespace string, data []byte) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	writer, err := o.storage.Put(ctx, o.key(namespace))
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("key", o.key(namespace)))
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return goerr.Wrap(err, "failed to write namespace object", goerr.V("key", o.key(namespace)))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", o.key(namespace)))
	}
	return nil
}

func (o *Object) Delete(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	err := o.storage.Delete(ctx, o.key(namespace))
	if err != nil && !errors.Is(err, adapter.ErrObjectNotFound) {
		return goerr.Wrap(err, "failed to delete namespace object", goerr.V("key", o.key(namespace)))
	}
	return nil
}

// Close releases the storage adapter
func (o *Object) Close() error {
	return o.storage.Close()
}

package repository

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Namespaces used by the client. Each holds one JSON projection.
const (
	NamespaceAuth = "kristal-agent-auth"
	NamespaceChat = "kristal-agent-chat"
)

var (
	ErrNotFound         = goerr.New("namespace not found")
	ErrInvalidNamespace = goerr.New("invalid namespace")
)

// Repository defines the key-value persistence port used by the stores
type Repository interface {
	// Get returns the data stored under namespace, or ErrNotFound
	Get(ctx context.Context, namespace string) ([]byte, error)

	// Put replaces the data stored under namespace
	Put(ctx context.Context, namespace string, data []byte) error

	// Delete removes namespace. Deleting a missing namespace is not an error.
	Delete(ctx context.Context, namespace string) error
}

// validateNamespace rejects names that can not be used as file or document keys
func validateNamespace(namespace string) error {
	if namespace == "" {
		return goerr.Wrap(ErrInvalidNamespace, "namespace is empty")
	}
	if strings.ContainsAny(namespace, `/\`) || strings.HasPrefix(namespace, ".") {
		return goerr.Wrap(ErrInvalidNamespace, "namespace contains path elements", goerr.V("namespace", namespace))
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCollection = "kristal_state"

type kvDocument struct {
	Data      []byte    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Firestore stores each namespace as a document of one collection
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore creates a Firestore repository for the given project and database
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		return nil, goerr.New("database is required")
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{
		client:     client,
		collection: firestoreCollection,
	}, nil
}

func (r *Firestore) Get(ctx context.Context, namespace string) ([]byte, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	snap, err := r.client.Collection(r.collection).Doc(namespace).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(ErrNotFound, "namespace document does not exist", goerr.V("namespace", namespace))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get namespace document", goerr.V("namespace", namespace))
	}

	var doc kvDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode namespace document", goerr.V("namespace", namespace))
	}
	return doc.Data, nil
}

func (r *Firestore) Put(ctx context.Context, namespace string, data []byte) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	doc := kvDocument{
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := r.client.Collection(r.collection).Doc(namespace).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to set namespace document", goerr.V("namespace", namespace))
	}
	return nil
}

func (r *Firestore) Delete(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	if _, err := r.client.Collection(r.collection).Doc(namespace).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete namespace document", goerr.V("namespace", namespace))
	}
	return nil
}

// Close releases the Firestore client
func (r *Firestore) Close() error {
	return r.client.Close()
}

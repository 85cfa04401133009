// Package remote defines the contract with the festival's hosted document
// store. The scanner treats the store as an opaque at-least-once service:
// get/query/create/update/delete by collection and id, with timestamps
// assigned server-side. It is never a transactional resource the scan
// pipeline can lock.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no document exists under the id.
var ErrNotFound = errors.New("remote: document not found")

// Document is one record in a collection. Data is the schemaless body;
// CreatedAt/UpdatedAt are assigned by the store.
type Document struct {
	ID        string
	Data      map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the remote document-store port.
//
// Query performs equality matching of every filter key against top-level
// document fields; an empty filter returns the whole collection. Ping is
// the connectivity probe used to drive online/offline transitions.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, filter map[string]interface{}) ([]Document, error)
	Create(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	Update(ctx context.Context, collection, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

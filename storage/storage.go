// Package storage is the persistence layer: a generic collection contract with a
// MongoDB implementation, a JSON-file implementation and a Fallback that routes
// each call to the first one that works.
package storage

import (
	"context"
	"errors"
	"time"

	"go-storefront/models"
)

var (
	// ErrNotFound is returned when no record has the requested id
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique field already exists
	ErrDuplicate = errors.New("duplicate record")

	// ErrForeignID is returned by a backend asked for an id it could never have
	// issued, such as a file-store id sent to Mongo. Fallback routes the call to
	// the secondary without counting it as a failure.
	ErrForeignID = errors.New("id not issued by this store")

	// ErrInsufficient is returned by Increment when the result would drop below zero
	ErrInsufficient = errors.New("insufficient quantity")
)

// Query maps field names to the exact value a record must hold.
// An empty query matches every record.
type Query map[string]any

// Patch holds the fields to overwrite on an existing record
type Patch map[string]any

// Record is implemented by every stored model through its pointer type
type Record interface {
	GetID() string
	SetID(id string)
	Prepare(count int, now time.Time)
	Validate() error
}

// RecordPtr constrains PT to be *T implementing Record
type RecordPtr[T any] interface {
	*T
	Record
}

// Collection is the CRUD surface shared by every backend
type Collection[T any] interface {
	Find(ctx context.Context, q Query) ([]T, error)
	FindOne(ctx context.Context, q Query) (*T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, rec T) (*T, error)
	FindByIDAndUpdate(ctx context.Context, id string, patch Patch) (*T, error)
	FindByIDAndDelete(ctx context.Context, id string) (*T, error)
	Count(ctx context.Context) (int, error)

	// Increment adds delta to a numeric field in one atomic step and returns the
	// updated record. The value never goes below zero: a change that would do so
	// leaves the record untouched and fails with ErrInsufficient.
	Increment(ctx context.Context, id, field string, delta int) (*T, error)
}

// Stores groups the collections the HTTP layer works with
type Stores struct {
	Users    Collection[models.User]
	Products Collection[models.Product]
	Orders   Collection[models.Order]
}

// IsStorageFailure reports whether err came from the backend itself rather than
// from the request (missing record, duplicate key, invalid data).
func IsStorageFailure(err error) bool {
	if err == nil {
		return false
	}
	var verr *models.ValidationError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate), errors.Is(err, ErrForeignID), errors.Is(err, ErrInsufficient), errors.As(err, &verr):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

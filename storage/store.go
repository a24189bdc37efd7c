//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_storage.go -package=mocks
package storage

import (
	"context"

	"msgboard/domain"
)

// Conn is a single logical connection to the document store. A Conn is
// never shared: the pool hands it to exactly one holder at a time, so
// implementations do not need to be safe for concurrent use.
type Conn interface {
	// Insert appends one document to the store.
	Insert(ctx context.Context, doc domain.Document) error
	// Ping verifies the connection is still able to reach the store.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close(ctx context.Context) error
}

// Dialer opens new store connections on behalf of the pool.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DocumentWriter is the persistence surface the relay workers depend on.
type DocumentWriter interface {
	Write(ctx context.Context, doc domain.Document) error
}

package storage

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"msgboard/domain"
)

// MessageKeyPrefix namespaces message documents inside the badger
// keyspace. Keys sort by insertion time thanks to the zero-padded
// nanosecond component.
const MessageKeyPrefix = "msg:"

var _ Dialer = (*BadgerDialer)(nil)

// BadgerDialer hands out connections backed by a single embedded
// badger database. Badger has no network round trip, so every Conn is
// a thin view over the shared handle; the pool semantics stay
// identical to the mongo backend.
type BadgerDialer struct {
	db *badger.DB
}

func NewBadgerDialer(db *badger.DB) *BadgerDialer {
	return &BadgerDialer{db: db}
}

func (d *BadgerDialer) Dial(_ context.Context) (Conn, error) {
	if d.db.IsClosed() {
		return nil, badger.ErrDBClosed
	}
	return &badgerConn{db: d.db}, nil
}

type badgerConn struct {
	db *badger.DB
}

func (c *badgerConn) Insert(_ context.Context, doc domain.Document) error {
	payload, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	key := fmt.Sprintf("%s%019d:%s", MessageKeyPrefix, time.Now().UTC().UnixNano(), uuid.New())
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
}

func (c *badgerConn) Ping(_ context.Context) error {
	if c.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return nil
}

// Close is a no-op: the process owns the database handle and closes it
// once on shutdown.
func (c *badgerConn) Close(_ context.Context) error {
	return nil
}

// DecodeDocument turns a stored value back into a document.
func DecodeDocument(val []byte) (domain.Document, error) {
	var doc domain.Document
	if err := bson.Unmarshal(val, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// Documents loads stored messages in key order. A nil limit loads
// everything.
func Documents(db *badger.DB, limit *int) ([]domain.Document, error) {
	var docs []domain.Document
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(MessageKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit != nil && len(docs) >= *limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				doc, err := DecodeDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}
	return docs, nil
}

package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"msgboard/domain"
)

var _ Dialer = (*MongoDialer)(nil)

// MongoDialer opens one driver client per pooled connection. The
// driver's own pool is pinned to a single socket so that pool sizing
// and the wait queue are governed in exactly one place.
type MongoDialer struct {
	uri        string
	database   string
	collection string
}

func NewMongoDialer(uri, database, collection string) *MongoDialer {
	return &MongoDialer{uri: uri, database: database, collection: collection}
}

func (d *MongoDialer) Dial(ctx context.Context) (Conn, error) {
	opts := options.Client().ApplyURI(d.uri).SetMaxPoolSize(1)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	conn := &mongoConn{
		client: client,
		coll:   client.Database(d.database).Collection(d.collection),
	}
	if err := conn.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return conn, nil
}

type mongoConn struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (c *mongoConn) Insert(ctx context.Context, doc domain.Document) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *mongoConn) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("pinging mongo: %w", err)
	}
	return nil
}

func (c *mongoConn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

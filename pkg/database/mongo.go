package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// NewMongoDB connect and ping mongo; the thread store relies on majority writes
// so a message acked to the sender survives a primary failover.
func NewMongoDB(ctx context.Context, c Connection, dbName string) (*MongoDB, error) {
	opts := options.Client().
		ApplyURI(c.ConnectStr).
		SetWriteConcern(writeconcern.Majority())
	if c.MaxConns > 0 {
		opts.SetMaxPoolSize(uint64(c.MaxConns))
	}

	client, err := dialWithRetry("mongo", c.policy(), func() (*mongo.Client, error) {
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
}

// Close disconnect mongo client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

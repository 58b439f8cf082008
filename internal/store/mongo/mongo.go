// Package mongo implements the persistence interfaces on MongoDB. All
// counter mutations (stock, discount usage) are single conditional updates
// so concurrent writers can never observe or produce a torn state.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	collOrders         = "orders"
	collProducts       = "products"
	collDiscountCodes  = "discount_codes"
	collReconciliation = "stock_reconciliation"
)

const connectTimeout = 10 * time.Second

// Connect opens a client, pings the primary and returns a handle to the
// named database. The caller owns disconnecting the client.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, client.Database(database), nil
}

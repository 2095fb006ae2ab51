// Package mongodb provides MongoDB-backed repository implementations for
// deployments that want durable clients, users and codes.
package mongodb

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	ClientsCollection = "clients"
	UsersCollection   = "users"
	CodesCollection   = "auth_codes"
)

var (
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
	initOnce    sync.Once
)

// Connect establishes the MongoDB connection and selects the database. It is
// safe to call once at startup.
func Connect(ctx context.Context, uri, dbName string) error {
	var err error
	initOnce.Do(func() {
		client, cerr := mongo.Connect(options.Client().ApplyURI(uri))
		if cerr != nil {
			err = fmt.Errorf("failed to connect to MongoDB: %w", cerr)
			return
		}

		if perr := client.Ping(ctx, nil); perr != nil {
			err = fmt.Errorf("failed to ping MongoDB: %w", perr)
			return
		}

		mongoClient = client
		mongoDB = client.Database(dbName)
		log.Info().Str("db", dbName).Msg("Connected to MongoDB")
	})
	return err
}

// DB returns the selected database. Connect must have succeeded first.
func DB() *mongo.Database {
	return mongoDB
}

// Disconnect closes the MongoDB connection.
func Disconnect(ctx context.Context) error {
	if mongoClient == nil {
		return nil
	}
	return mongoClient.Disconnect(ctx)
}

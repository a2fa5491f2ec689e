// Package mongostore keeps patients and appointments in MongoDB. Uniqueness
// rules are enforced by indexes so concurrent writers cannot break them.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	backendMongo = "mongo"

	PatientsCollection     = "patients"
	AppointmentsCollection = "appointments"
)

// Client wraps a connected driver client and the target database
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client against uri and pings the primary
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetTimeout(45 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Info().Str("database", database).Msg("MongoDB connected")
	return &Client{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Ping checks the primary answers
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique indexes the stores rely on
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for collection, models := range indexModels() {
		names, err := c.db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
		log.Info().Str("collection", collection).Strs("indexes", names).Msg("Indexes ready")
	}
	return nil
}

func (c *Client) Patients() *PatientStore {
	return &PatientStore{coll: c.db.Collection(PatientsCollection), now: time.Now}
}

func (c *Client) Appointments() *AppointmentStore {
	return &AppointmentStore{coll: c.db.Collection(AppointmentsCollection), now: time.Now}
}

package dal

import (
	"context"
	"fmt"

	"stealthcompany.com/appointmentbot/internal/config"
	"stealthcompany.com/appointmentbot/internal/couchbase"
	"stealthcompany.com/appointmentbot/internal/dal/memory"
	"stealthcompany.com/appointmentbot/internal/dal/mongostore"
	"stealthcompany.com/appointmentbot/internal/metrics"
)

// Connector picks the backend named by cfg.StoreDriver
func Connector(cfg *config.Config) (ConnectFunc, error) {
	switch cfg.StoreDriver {
	case config.DriverCouchbase:
		return ConnectCouchbase(couchbase.Options{
			URL:      cfg.CouchbaseURL,
			Username: cfg.CouchbaseUsername,
			Password: cfg.CouchbasePassword,
			Bucket:   cfg.CouchbaseBucket,
			Scope:    cfg.CouchbaseScope,
		}), nil
	case config.DriverMongo:
		return ConnectMongo(cfg.MongoURI, cfg.MongoDatabase), nil
	case config.DriverMemory:
		return ConnectMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// ConnectCouchbase opens a cluster connection and serves the document stores
func ConnectCouchbase(opts couchbase.Options) ConnectFunc {
	return func(ctx context.Context) (*Stores, error) {
		client, err := couchbase.NewClient(ctx, opts)
		metrics.RecordStoreConnect(backendCouchbase, err)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Backend:      backendCouchbase,
			Patients:     NewPatientModel(client),
			Appointments: NewAppointmentModel(client),
			ping:         client.Ping,
			ensureSchema: func(ctx context.Context) error {
				return EnsureCouchbaseSchema(ctx, client)
			},
			close: func(ctx context.Context) error {
				return client.Close()
			},
		}, nil
	}
}

// ConnectMongo opens a MongoDB client
func ConnectMongo(uri, database string) ConnectFunc {
	return func(ctx context.Context) (*Stores, error) {
		client, err := mongostore.Connect(ctx, uri, database)
		metrics.RecordStoreConnect(backendMongo, err)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Backend:      backendMongo,
			Patients:     client.Patients(),
			Appointments: client.Appointments(),
			ensureSchema: client.EnsureIndexes,
			ping:         client.Ping,
			close:        client.Close,
		}, nil
	}
}

// ConnectMemory serves process-local stores
func ConnectMemory() ConnectFunc {
	return func(ctx context.Context) (*Stores, error) {
		metrics.RecordStoreConnect(backendMemory, nil)
		return &Stores{
			Backend:      backendMemory,
			Patients:     memory.NewPatientStore(),
			Appointments: memory.NewAppointmentStore(),
		}, nil
	}
}

package couchbase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// Options configures a cluster connection
type Options struct {
	URL      string
	Username string
	Password string
	Bucket   string
	Scope    string

	// ReadyTimeout bounds the wait for KV and query services
	ReadyTimeout time.Duration
}

// ConnectionManager handles Couchbase cluster, bucket and scope handles
type ConnectionManager struct {
	cluster *gocb.Cluster
	bucket  *gocb.Bucket
	scope   *gocb.Scope

	bucketName string
	scopeName  string
}

// ConnectionString normalizes a configured URL into a gocb connection string.
// http(s) URLs from local compose files are mapped to their couchbase(s) equivalent
// and a bare host gets the plain couchbase:// scheme.
func ConnectionString(url string) string {
	url = strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	default:
		return "couchbase://" + url
	}
}

// NewConnectionManager connects to the cluster and waits for the bucket
func NewConnectionManager(ctx context.Context, opts Options) (*ConnectionManager, error) {
	if opts.Scope == "" {
		opts.Scope = "_default"
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = 30 * time.Second
	}
	connStr := ConnectionString(opts.URL)

	log.Info().
		Str("url", connStr).
		Str("bucket", opts.Bucket).
		Str("scope", opts.Scope).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(connStr, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout:    opts.ReadyTimeout,
			KVTimeout:         5 * time.Second,
			QueryTimeout:      30 * time.Second,
			ManagementTimeout: 30 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect cluster: %w", err)
	}

	bucket := cluster.Bucket(opts.Bucket)
	err = bucket.WaitUntilReady(opts.ReadyTimeout, &gocb.WaitUntilReadyOptions{
		Context:      ctx,
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("bucket %q not ready: %w", opts.Bucket, err)
	}

	log.Info().Msg("Couchbase connection created successfully")
	return &ConnectionManager{
		cluster:    cluster,
		bucket:     bucket,
		scope:      bucket.Scope(opts.Scope),
		bucketName: opts.Bucket,
		scopeName:  opts.Scope,
	}, nil
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	if cm.cluster == nil {
		return nil
	}
	return cm.cluster.Close(nil)
}

// Ping checks that the KV and query services answer
func (cm *ConnectionManager) Ping(ctx context.Context) error {
	_, err := cm.bucket.Ping(&gocb.PingOptions{
		Context:      ctx,
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	return err
}

func (cm *ConnectionManager) GetCluster() *gocb.Cluster {
	return cm.cluster
}

func (cm *ConnectionManager) GetScope() *gocb.Scope {
	return cm.scope
}

// Keyspace returns the fully qualified, escaped path of a collection
func (cm *ConnectionManager) Keyspace(collection string) string {
	return Keyspace(cm.bucketName, cm.scopeName, collection)
}

// Keyspace builds `bucket`.`scope`.`collection`
func Keyspace(bucket, scope, collection string) string {
	return fmt.Sprintf("`%s`.`%s`.`%s`", bucket, scope, collection)
}

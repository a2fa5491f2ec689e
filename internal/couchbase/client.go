package couchbase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// Client ties together the connection, document and claim managers
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
	claims      *ClaimManager
}

// Index describes a secondary index on one collection
type Index struct {
	Name       string
	Collection string
	Keys       string
	Where      string
}

// NewClient creates a new Couchbase client
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	connManager, err := NewConnectionManager(ctx, opts)
	if err != nil {
		return nil, err
	}
	docManager := NewDocumentManager(connManager)

	return &Client{
		connManager: connManager,
		docManager:  docManager,
		claims:      NewClaimManager(docManager),
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.connManager.Ping(ctx)
}

func (c *Client) Documents() *DocumentManager {
	return c.docManager
}

func (c *Client) Claims() *ClaimManager {
	return c.claims
}

func (c *Client) Keyspace(collection string) string {
	return c.connManager.Keyspace(collection)
}

// EnsureCollections creates the given collections in the client's scope,
// skipping the ones that already exist
func (c *Client) EnsureCollections(ctx context.Context, names ...string) error {
	for _, name := range names {
		statement := fmt.Sprintf("CREATE COLLECTION %s", c.Keyspace(name))
		err := c.docManager.Exec(ctx, statement)
		if err != nil && !isCollectionExistsError(err) {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		log.Info().Str("collection", name).Bool("existed", err != nil).Msg("Collection ready")
	}
	return nil
}

// EnsureIndexes creates the given indexes if they are missing
func (c *Client) EnsureIndexes(ctx context.Context, indexes ...Index) error {
	for _, idx := range indexes {
		statement := IndexStatement(c.Keyspace(idx.Collection), idx)
		if err := c.docManager.Exec(ctx, statement); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
		log.Info().
			Str("collection", idx.Collection).
			Str("index", idx.Name).
			Msg("Index ready")
	}
	return nil
}

// IndexStatement renders the DDL for idx on keyspace
func IndexStatement(keyspace string, idx Index) string {
	statement := fmt.Sprintf("CREATE INDEX IF NOT EXISTS `%s` ON %s(%s)", idx.Name, keyspace, idx.Keys)
	if idx.Where != "" {
		statement += " WHERE " + idx.Where
	}
	return statement
}

// isCollectionExistsError matches both the typed SDK error and the query
// service's textual variant
func isCollectionExistsError(err error) bool {
	if errors.Is(err, gocb.ErrCollectionExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}

package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// KeyValue is the key-value access the claim and model code is written against.
// DocumentManager implements it over a live scope.
type KeyValue interface {
	Insert(ctx context.Context, collection, docID string, data interface{}) error
	Get(ctx context.Context, collection, docID string, result interface{}) (gocb.Cas, error)
	Replace(ctx context.Context, collection, docID string, data interface{}, cas gocb.Cas) error
	Remove(ctx context.Context, collection, docID string, cas gocb.Cas) error
}

var _ KeyValue = (*DocumentManager)(nil)

// DocumentManager handles document CRUD operations within one scope
type DocumentManager struct {
	conn *ConnectionManager
}

// NewDocumentManager creates a new document manager
func NewDocumentManager(conn *ConnectionManager) *DocumentManager {
	return &DocumentManager{conn: conn}
}

func (dm *DocumentManager) collection(name string) *gocb.Collection {
	return dm.conn.GetScope().Collection(name)
}

// Insert stores a document, failing with gocb.ErrDocumentExists when the key is taken
func (dm *DocumentManager) Insert(ctx context.Context, collection, docID string, data interface{}) error {
	_, err := dm.collection(collection).Insert(docID, data, &gocb.InsertOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("insert document %s: %w", docID, err)
	}
	return nil
}

// Get reads a document into result and returns its CAS
func (dm *DocumentManager) Get(ctx context.Context, collection, docID string, result interface{}) (gocb.Cas, error) {
	doc, err := dm.collection(collection).Get(docID, &gocb.GetOptions{Context: ctx})
	if err != nil {
		return 0, fmt.Errorf("get document %s: %w", docID, err)
	}
	if err := doc.Content(result); err != nil {
		return 0, fmt.Errorf("decode document %s: %w", docID, err)
	}
	return doc.Cas(), nil
}

// Replace overwrites a document only if its CAS still matches
func (dm *DocumentManager) Replace(ctx context.Context, collection, docID string, data interface{}, cas gocb.Cas) error {
	_, err := dm.collection(collection).Replace(docID, data, &gocb.ReplaceOptions{Context: ctx, Cas: cas})
	if err != nil {
		return fmt.Errorf("replace document %s: %w", docID, err)
	}
	return nil
}

// Remove deletes a document. A zero CAS removes unconditionally.
func (dm *DocumentManager) Remove(ctx context.Context, collection, docID string, cas gocb.Cas) error {
	_, err := dm.collection(collection).Remove(docID, &gocb.RemoveOptions{Context: ctx, Cas: cas})
	if err != nil {
		return fmt.Errorf("remove document %s: %w", docID, err)
	}
	return nil
}

// Query runs a N1QL statement scoped to this connection's scope. Reads use
// request_plus consistency so they observe every mutation acknowledged before them.
func (dm *DocumentManager) Query(ctx context.Context, statement string, params map[string]interface{}) (*gocb.QueryResult, error) {
	rows, err := dm.conn.GetScope().Query(statement, &gocb.QueryOptions{
		Context:         ctx,
		NamedParameters: params,
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// Exec runs a management statement (DDL) against the cluster
func (dm *DocumentManager) Exec(ctx context.Context, statement string) error {
	rows, err := dm.conn.GetCluster().Query(statement, &gocb.QueryOptions{Context: ctx, Adhoc: true})
	if err != nil {
		return err
	}
	return rows.Close()
}

// QueryOne decodes the first row of a query into T, returning ErrNoRows when empty
func QueryOne[T any](ctx context.Context, dm *DocumentManager, statement string, params map[string]interface{}) (*T, error) {
	rows, err := dm.Query(ctx, statement, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return nil, ErrNoRows
	}
	var row T
	if err := rows.Row(&row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return &row, nil
}

// ErrNoRows is returned by QueryOne when the statement matched nothing
var ErrNoRows = errors.New("query returned no rows")

// IsNotFound reports a missing document or an empty query result
func IsNotFound(err error) bool {
	return errors.Is(err, gocb.ErrDocumentNotFound) || errors.Is(err, ErrNoRows)
}

// IsExists reports an insert that lost to an existing key
func IsExists(err error) bool {
	return errors.Is(err, gocb.ErrDocumentExists)
}

// IsCasMismatch reports a write that lost to a concurrent mutation
func IsCasMismatch(err error) bool {
	return errors.Is(err, gocb.ErrCasMismatch)
}

// Package couchbasetest provides an in-memory couchbase.KeyValue that follows
// the SDK's CAS rules and error values, for tests of code built on claims.
package couchbasetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/couchbase/gocb/v2"

	"stealthcompany.com/appointmentbot/internal/couchbase"
)

// Op names a key-value operation
type Op string

const (
	OpInsert  Op = "insert"
	OpGet     Op = "get"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Hook runs before every operation. A non-nil error fails the operation
// without touching the store. Hooks may call Put to play a concurrent writer.
type Hook func(op Op, collection, docID string) error

type document struct {
	body []byte
	cas  gocb.Cas
}

// KeyValue keeps documents in memory. Every mutation gets a fresh CAS.
type KeyValue struct {
	mu      sync.Mutex
	docs    map[string]document
	lastCas gocb.Cas
	hook    Hook
}

var _ couchbase.KeyValue = (*KeyValue)(nil)

func NewKeyValue() *KeyValue {
	return &KeyValue{docs: make(map[string]document)}
}

// OnOperation installs h, replacing any previous hook
func (kv *KeyValue) OnOperation(h Hook) {
	kv.mu.Lock()
	kv.hook = h
	kv.mu.Unlock()
}

// Put stores data unconditionally, bypassing the hook, and returns the new CAS
func (kv *KeyValue) Put(collection, docID string, data interface{}) gocb.Cas {
	body, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("couchbasetest: encode %s: %v", docID, err))
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.store(collection, docID, body)
}

// Delete drops a document, bypassing the hook
func (kv *KeyValue) Delete(collection, docID string) {
	kv.mu.Lock()
	delete(kv.docs, path(collection, docID))
	kv.mu.Unlock()
}

// Load decodes a stored document into result and reports whether it exists
func (kv *KeyValue) Load(collection, docID string, result interface{}) bool {
	kv.mu.Lock()
	doc, ok := kv.docs[path(collection, docID)]
	kv.mu.Unlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(doc.body, result); err != nil {
		panic(fmt.Sprintf("couchbasetest: decode %s: %v", docID, err))
	}
	return true
}

// Exists reports whether a document is stored
func (kv *KeyValue) Exists(collection, docID string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.docs[path(collection, docID)]
	return ok
}

func (kv *KeyValue) Insert(ctx context.Context, collection, docID string, data interface{}) error {
	if err := kv.before(OpInsert, collection, docID); err != nil {
		return fmt.Errorf("insert document %s: %w", docID, err)
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", docID, err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.docs[path(collection, docID)]; ok {
		return fmt.Errorf("insert document %s: %w", docID, gocb.ErrDocumentExists)
	}
	kv.store(collection, docID, body)
	return nil
}

func (kv *KeyValue) Get(ctx context.Context, collection, docID string, result interface{}) (gocb.Cas, error) {
	if err := kv.before(OpGet, collection, docID); err != nil {
		return 0, fmt.Errorf("get document %s: %w", docID, err)
	}

	kv.mu.Lock()
	doc, ok := kv.docs[path(collection, docID)]
	kv.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("get document %s: %w", docID, gocb.ErrDocumentNotFound)
	}
	if err := json.Unmarshal(doc.body, result); err != nil {
		return 0, fmt.Errorf("decode document %s: %w", docID, err)
	}
	return doc.cas, nil
}

func (kv *KeyValue) Replace(ctx context.Context, collection, docID string, data interface{}, cas gocb.Cas) error {
	if err := kv.before(OpReplace, collection, docID); err != nil {
		return fmt.Errorf("replace document %s: %w", docID, err)
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("replace document %s: %w", docID, err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if err := kv.check(collection, docID, cas); err != nil {
		return fmt.Errorf("replace document %s: %w", docID, err)
	}
	kv.store(collection, docID, body)
	return nil
}

func (kv *KeyValue) Remove(ctx context.Context, collection, docID string, cas gocb.Cas) error {
	if err := kv.before(OpRemove, collection, docID); err != nil {
		return fmt.Errorf("remove document %s: %w", docID, err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	if err := kv.check(collection, docID, cas); err != nil {
		return fmt.Errorf("remove document %s: %w", docID, err)
	}
	delete(kv.docs, path(collection, docID))
	return nil
}

func (kv *KeyValue) before(op Op, collection, docID string) error {
	kv.mu.Lock()
	h := kv.hook
	kv.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(op, collection, docID)
}

// check applies the SDK's rules for CAS-guarded writes; zero CAS skips the comparison
func (kv *KeyValue) check(collection, docID string, cas gocb.Cas) error {
	doc, ok := kv.docs[path(collection, docID)]
	if !ok {
		return gocb.ErrDocumentNotFound
	}
	if cas != 0 && cas != doc.cas {
		return gocb.ErrCasMismatch
	}
	return nil
}

func (kv *KeyValue) store(collection, docID string, body []byte) gocb.Cas {
	kv.lastCas++
	kv.docs[path(collection, docID)] = document{body: body, cas: kv.lastCas}
	return kv.lastCas
}

func path(collection, docID string) string {
	return collection + "/" + docID
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

type couchDoc struct {
	Rev       string    `json:"_rev,omitempty"`
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CouchStore keeps one CouchDB document per key, with id "<namespace>:<key>".
type CouchStore struct {
	client    *kivik.Client
	dbName    string
	namespace string
}

func NewCouchStore(ctx context.Context, url, dbName, namespace string) (*CouchStore, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return newCouchStore(client, dbName, namespace), nil
}

func newCouchStore(client *kivik.Client, dbName, namespace string) *CouchStore {
	return &CouchStore{
		client:    client,
		dbName:    dbName,
		namespace: namespace,
	}
}

func (s *CouchStore) docID(key string) string {
	return fmt.Sprintf("%s:%s", s.namespace, key)
}

func (s *CouchStore) fetch(ctx context.Context, key string) (*couchDoc, error) {
	row := s.client.DB(s.dbName).Get(ctx, s.docID(key))

	var doc couchDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *CouchStore) Get(ctx context.Context, key string) (string, bool, error) {
	doc, err := s.fetch(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if doc == nil {
		return "", false, nil
	}
	return doc.Value, true, nil
}

func (s *CouchStore) Set(ctx context.Context, key, value string) error {
	existing, err := s.fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch %s for update: %w", key, err)
	}

	doc := couchDoc{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if existing != nil {
		doc.Rev = existing.Rev
	}

	if _, err := s.client.DB(s.dbName).Put(ctx, s.docID(key), doc); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *CouchStore) Remove(ctx context.Context, key string) error {
	existing, err := s.fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch %s for removal: %w", key, err)
	}
	if existing == nil {
		return nil
	}

	if _, err := s.client.DB(s.dbName).Delete(ctx, s.docID(key), existing.Rev); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Clear deletes the namespace with a single _bulk_docs request. Any entry
// that could not be listed or deleted fails the whole call.
func (s *CouchStore) Clear(ctx context.Context) error {
	db := s.client.DB(s.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"namespace": s.namespace,
		},
		"fields": []string{"_id", "_rev"},
	}

	rows := db.Find(ctx, query)
	defer rows.Close()

	type ref struct {
		ID  string `json:"_id"`
		Rev string `json:"_rev"`
	}
	var tombstones []interface{}
	for rows.Next() {
		var r ref
		if err := rows.ScanDoc(&r); err != nil {
			return fmt.Errorf("failed to read namespace %s entry: %w", s.namespace, err)
		}
		tombstones = append(tombstones, map[string]interface{}{
			"_id":      r.ID,
			"_rev":     r.Rev,
			"_deleted": true,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list namespace %s: %w", s.namespace, err)
	}
	if len(tombstones) == 0 {
		return nil
	}

	results, err := db.BulkDocs(ctx, tombstones)
	if err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", s.namespace, err)
	}

	var failed []error
	for _, res := range results {
		if res.Error != nil && kivik.HTTPStatus(res.Error) != http.StatusNotFound {
			failed = append(failed, fmt.Errorf("%s: %w", res.ID, res.Error))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to clear namespace %s: %w", s.namespace, errors.Join(failed...))
	}
	return nil
}

func (s *CouchStore) Close() error {
	return s.client.Close()
}

package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStore implements Store over a single MySQL table holding JSON
// documents:
//
//	CREATE TABLE documents (
//	    collection VARCHAR(64)  NOT NULL,
//	    id         CHAR(36)     NOT NULL,
//	    doc        JSON         NOT NULL,
//	    created_at DATETIME(3)  NOT NULL,
//	    updated_at DATETIME(3)  NOT NULL,
//	    PRIMARY KEY (collection, id)
//	);
//
// There is intentionally no unique index on document fields: the
// attendance writer's check-then-write stays optimistic and duplicate
// admissions from the cross-volunteer race are reconciled by the admin
// dedup sweep, not by the storage layer.
type MySQLStore struct {
	db *sql.DB
}

// Open connects to MySQL, verifies the connection and returns a store.
func Open(user, pass, host, port, name string) (*MySQLStore, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

// NewMySQLStore wraps an existing connection, mainly for tests.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

func (s *MySQLStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	const q = `SELECT doc, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`
	var raw []byte
	doc := Document{ID: id}
	err := s.db.QueryRowContext(ctx, q, collection, id).Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("remote: decode document %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *MySQLStore) Query(ctx context.Context, collection string, filter map[string]interface{}) ([]Document, error) {
	// Fetch the collection and filter in Go: the store exposes document
	// semantics, not SQL semantics, and collections touched by the scanner
	// are small (one festival's attendance per day).
	const q = `SELECT id, doc, created_at, updated_at FROM documents WHERE collection = ? ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw []byte
		var doc Document
		if err := rows.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("remote: decode document %s/%s: %w", collection, doc.ID, err)
		}
		if matches(doc.Data, filter) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MySQLStore) Create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	const q = `INSERT INTO documents (collection, id, doc, created_at, updated_at) VALUES (?, ?, ?, NOW(3), NOW(3))`
	if _, err := s.db.ExecContext(ctx, q, collection, id, raw); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MySQLStore) Update(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	// Read-modify-write merge: document stores patch at field granularity.
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range patch {
		doc.Data[k] = v
	}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return err
	}
	const q = `UPDATE documents SET doc = ?, updated_at = NOW(3) WHERE collection = ? AND id = ?`
	res, err := s.db.ExecContext(ctx, q, raw, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, collection, id string) error {
	const q = `DELETE FROM documents WHERE collection = ? AND id = ?`
	res, err := s.db.ExecContext(ctx, q, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// matches reports whether every filter key equals the corresponding
// top-level document field. JSON round-tripping normalizes numbers to
// float64, so numeric filter values are compared after conversion.
func matches(data, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := data[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// Package modelstore persists named topology model snapshots to PostgreSQL,
// backing the kernel's createModel/saveModel/loadModel/removeModel
// operations (spec §4.6).
package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tidwall/gjson"

	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/metrics"
)

// Store is a PostgreSQL-backed store of serialized model snapshots, keyed by
// model name.
type Store struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

// Open connects to dsn, verifies connectivity, and returns a Store. The
// caller must call Close when done.
func Open(ctx context.Context, dsn string, m *metrics.Metrics) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping model store: %w", err)
	}
	return &Store{db: db, metrics: m}, nil
}

// Close releases the store's database connections.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordModelStoreQuery(operation, status, time.Since(start))
	s.metrics.SetModelStoreConnections(s.db.Stats().OpenConnections)
}

// CreateModel inserts a new, empty model snapshot named name. It fails with
// kernelerr.ObjectExists if a model by that name already exists.
func (s *Store) CreateModel(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.record("create_model", start, err) }()

	_, execErr := s.db.ExecContext(ctx, `INSERT INTO models (name, data) VALUES ($1, $2)`, name, []byte("{}"))
	if execErr == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(execErr, &pqErr) && pqErr.Code == "23505" {
		err = kernelerr.ObjectExists(name)
		return err
	}
	err = kernelerr.IO("create_model", execErr)
	return err
}

// SaveModel upserts the serialized snapshot data under name.
func (s *Store) SaveModel(ctx context.Context, name string, data []byte) (err error) {
	start := time.Now()
	defer func() { s.record("save_model", start, err) }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, name, data)
	if err != nil {
		err = kernelerr.IO("save_model", err)
	}
	return err
}

// LoadModel returns the serialized snapshot stored under name.
func (s *Store) LoadModel(ctx context.Context, name string) (data []byte, err error) {
	start := time.Now()
	defer func() { s.record("load_model", start, err) }()

	err = s.db.GetContext(ctx, &data, `SELECT data FROM models WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kernelerr.ObjectUnknown(name)
	}
	if err != nil {
		return nil, kernelerr.IO("load_model", err)
	}
	return data, nil
}

// RemoveModel deletes the model snapshot named name.
func (s *Store) RemoveModel(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.record("remove_model", start, err) }()

	res, execErr := s.db.ExecContext(ctx, `DELETE FROM models WHERE name = $1`, name)
	if execErr != nil {
		err = kernelerr.IO("remove_model", execErr)
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		err = kernelerr.ObjectUnknown(name)
		return err
	}
	return nil
}

// QueryField reads a single field out of the JSON snapshot stored under
// name using a gjson path expression, without unmarshaling the whole
// snapshot into memory.
func (s *Store) QueryField(ctx context.Context, name, path string) (val string, err error) {
	start := time.Now()
	defer func() { s.record("query_field", start, err) }()

	data, loadErr := s.LoadModel(ctx, name)
	if loadErr != nil {
		return "", loadErr
	}
	result := gjson.GetBytes(data, path)
	if !result.Exists() {
		return "", kernelerr.ObjectUnknown(path)
	}
	return result.String(), nil
}

// ListModels returns the names of every stored model snapshot.
func (s *Store) ListModels(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { s.record("list_models", start, err) }()

	err = s.db.SelectContext(ctx, &names, `SELECT name FROM models ORDER BY name`)
	if err != nil {
		return nil, kernelerr.IO("list_models", err)
	}
	return names, nil
}

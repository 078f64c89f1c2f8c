package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

const defaultNamespace = "default"

type kvEntryTableModel struct {
	Namespace string `db:"namespace"`
	Key       string `db:"entry_key"`
	Value     string `db:"entry_value"`
}

// KVStore persists profile state in the kv_entries table. Each profile gets
// its own namespace.
type KVStore struct {
	db        *sqlx.DB
	namespace string
}

func NewKVStore(db *sqlx.DB, namespace string) *KVStore {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &KVStore{db: db, namespace: namespace}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT namespace, entry_key, entry_value FROM kv_entries WHERE namespace = $1 AND entry_key = $2`

	var row kvEntryTableModel
	if err := s.db.GetContext(ctx, &row, query, s.namespace, key); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, crerr.Wrapf(err, "select kv entry key=%s", key)
	}
	return row.Value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO kv_entries (namespace, entry_key, entry_value, updated_at)
VALUES (:namespace, :entry_key, :entry_value, NOW())
ON CONFLICT (namespace, entry_key)
DO UPDATE SET entry_value = EXCLUDED.entry_value, updated_at = NOW()`

	row := kvEntryTableModel{Namespace: s.namespace, Key: key, Value: value}
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return crerr.Wrapf(err, "upsert kv entry key=%s", key)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE namespace = $1 AND entry_key = $2`

	if _, err := s.db.ExecContext(ctx, query, s.namespace, key); err != nil {
		return crerr.Wrapf(err, "delete kv entry key=%s", key)
	}
	return nil
}

func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	const query = `SELECT entry_key FROM kv_entries WHERE namespace = $1 ORDER BY entry_key`

	var keys []string
	if err := s.db.SelectContext(ctx, &keys, query, s.namespace); err != nil {
		return nil, crerr.Wrap(err, "select kv keys")
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

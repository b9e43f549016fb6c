package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/netshell/internal/model"
)

// SQLite stores every entity in one versioned table
type SQLite struct {
	db     *sql.DB
	dbPath string
	retry  retryConfig
}

// OpenSQLite opens or creates the database at dbPath and migrates its schema
func OpenSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{db: db, dbPath: dbPath, retry: defaultRetryConfig}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		parent_kind TEXT NOT NULL DEFAULT '',
		parent_key TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, key)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(kind, parent_kind, parent_key);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UnitOfWork starts a unit of work
func (s *SQLite) UnitOfWork() Store {
	return newUnit(s)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadRow(ctx context.Context, q queryer, key model.Key) (row, bool, error) {
	r := row{key: key}
	var parentKind, data string
	err := q.QueryRowContext(ctx,
		`SELECT parent_kind, parent_key, version, data FROM entities WHERE kind = ? AND key = ?`,
		string(key.Kind), key.ID,
	).Scan(&parentKind, &r.parent.ID, &r.version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return row{}, false, nil
	}
	if err != nil {
		return row{}, false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	r.parent.Kind = model.Kind(parentKind)
	r.data = []byte(data)
	return r, true, nil
}

func (s *SQLite) load(ctx context.Context, key model.Key) (row, error) {
	var (
		r      row
		exists bool
	)
	err := retryOp(ctx, s.retry, func() error {
		var err error
		r, exists, err = loadRow(ctx, s.db, key)
		return err
	})
	if err != nil {
		return row{}, err
	}
	if !exists {
		return row{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return r, nil
}

func (s *SQLite) query(ctx context.Context, kind model.Kind, parent model.Key) ([]row, error) {
	var out []row
	err := retryOp(ctx, s.retry, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT key, version, data FROM entities
			 WHERE kind = ? AND parent_kind = ? AND parent_key = ?
			 ORDER BY key`,
			string(kind), string(parent.Kind), parent.ID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r := row{key: model.Key{Kind: kind}, parent: parent}
			var data string
			if err := rows.Scan(&r.key.ID, &r.version, &data); err != nil {
				return err
			}
			r.data = []byte(data)
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s under %s: %w", kind, parent, err)
	}
	return out, nil
}

func (s *SQLite) commit(ctx context.Context, ops []op) (map[model.Key]int64, error) {
	var versions map[model.Key]int64
	err := retryOp(ctx, s.retry, func() error {
		var err error
		versions, err = s.commitOnce(ctx, ops)
		return err
	})
	return versions, err
}

func (s *SQLite) commitOnce(ctx context.Context, ops []op) (map[model.Key]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	versions := make(map[model.Key]int64, len(ops))
	for _, o := range ops {
		current, exists, err := loadRow(ctx, tx, o.row.key)
		if err != nil {
			return nil, err
		}
		if err := checkOp(o, current, exists); err != nil {
			return nil, err
		}

		k := o.row.key
		switch o.kind {
		case opAdd:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entities (kind, key, parent_kind, parent_key, version, data) VALUES (?, ?, ?, ?, 1, ?)`,
				string(k.Kind), k.ID, string(o.row.parent.Kind), o.row.parent.ID, string(o.row.data),
			)
			versions[k] = 1
		case opUpdate:
			var res sql.Result
			res, err = tx.ExecContext(ctx,
				`UPDATE entities SET parent_kind = ?, parent_key = ?, version = version + 1, data = ?, updated_at = CURRENT_TIMESTAMP
				 WHERE kind = ? AND key = ? AND version = ?`,
				string(o.row.parent.Kind), o.row.parent.ID, string(o.row.data), string(k.Kind), k.ID, current.version,
			)
			if err == nil {
				err = expectOneRow(res, o)
			}
			versions[k] = current.version + 1
		case opDelete:
			if exists {
				_, err = tx.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND key = ?`, string(k.Kind), k.ID)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to %s %s: %w", o.kind, k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return versions, nil
}

func expectOneRow(res sql.Result, o op) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return &ConflictError{Op: o.kind.String(), Key: o.row.key, Reason: "row changed during commit"}
	}
	return nil
}

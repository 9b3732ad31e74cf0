// Package procstore persists collected process listings between runs,
// so repeated collections can be diffed, exported and re-driven
// without hitting the portal again.
package procstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"seiassist/lib/scrapers/sei"
	"seiassist/lib/sqliteutil"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var ErrNotFound = errors.New("process not found")

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens (creating if necessary) a store at the given sqlite path.
func Open(path string) (Store, error) {
	database, err := sqliteutil.OpenDB(Schema, path)
	if err != nil {
		return Store{}, err
	}
	return NewStore(database), nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Put upserts a snapshot of each process, keyed by its portal
// identity. The full record goes into the payload, a few columns are
// lifted out for querying.
func (s Store) Put(ctx context.Context, processes ...*sei.Process) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, proc := range processes {
		payload, err := json.Marshal(proc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
insert into processes (key, number, category, seen, confidential, payload, updated_at)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (key) do update set
    number = excluded.number,
    category = excluded.category,
    seen = excluded.seen,
    confidential = excluded.confidential,
    payload = excluded.payload,
    updated_at = excluded.updated_at
`,
			proc.Key(), proc.Number, string(proc.Category),
			proc.Seen, proc.Confidential, string(payload), now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) Get(ctx context.Context, key string) (*sei.Process, error) {
	row := s.db.QueryRowContext(ctx, `select payload from processes where key = ?`, key)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var proc sei.Process
	if err := json.Unmarshal([]byte(payload), &proc); err != nil {
		return nil, err
	}
	return &proc, nil
}

// List returns every stored process, most recently updated first.
func (s Store) List(ctx context.Context) ([]*sei.Process, error) {
	rows, err := s.db.QueryContext(ctx,
		`select payload from processes order by updated_at desc, key asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var processes []*sei.Process
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var proc sei.Process
		if err := json.Unmarshal([]byte(payload), &proc); err != nil {
			return nil, err
		}
		processes = append(processes, &proc)
	}
	return processes, rows.Err()
}

package border

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Registry is a persistent store mapping identifiers to human labels,
// so decoded borders can be resolved back to whatever they were
// stamped on.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens or creates the registry database at file.
func OpenRegistry(file string) (*Registry, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS identifier (id INTEGER PRIMARY KEY NOT NULL, uuid TEXT NOT NULL UNIQUE, label TEXT NOT NULL, created INTEGER NOT NULL)"); err != nil {
		return nil, err
	}

	return &Registry{
		db: db,
	}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Tag associates a label with an identifier, replacing any previous
// label.
func (r *Registry) Tag(id uuid.UUID, label string) error {
	_, err := r.db.Exec("INSERT INTO identifier (uuid, label, created) VALUES (?, ?, ?) ON CONFLICT(uuid) DO UPDATE SET label = excluded.label", id.String(), label, time.Now().Unix())
	return err
}

// Lookup returns the label for an identifier, or the empty string when
// it has never been tagged.
func (r *Registry) Lookup(id uuid.UUID) (string, error) {
	var label string
	switch err := r.db.QueryRow("SELECT label FROM identifier WHERE uuid = ?", id.String()).Scan(&label); err {
	case sql.ErrNoRows:
		return "", nil
	case nil:
		return label, nil
	default:
		return "", err
	}
}

// Entry is one tagged identifier.
type Entry struct {
	ID      uuid.UUID
	Label   string
	Created time.Time
}

// Entries returns every tagged identifier, oldest first.
func (r *Registry) Entries() ([]Entry, error) {
	rows, err := r.db.Query("SELECT uuid, label, created FROM identifier ORDER BY created, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			raw     string
			label   string
			created int64
		)
		if err := rows.Scan(&raw, &label, &created); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{ID: id, Label: label, Created: time.Unix(created, 0)})
	}

	return entries, rows.Err()
}

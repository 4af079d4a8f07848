package posterkit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/eringen/posterkit/poster"
)

// Store wraps a SQLite database holding the template catalog.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the cache reload while a seed is writing; writers wait on
	// busy_timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS templates (
    name TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    thumbnail TEXT NOT NULL DEFAULT '',
    overlay TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    price_x REAL NOT NULL DEFAULT 0,
    price_y REAL NOT NULL DEFAULT 0,
    price_font_size INTEGER NOT NULL DEFAULT 0,
    logo TEXT NOT NULL DEFAULT ''
);
`)
	return err
}

const templateColumns = `name, thumbnail, overlay, width, height, price_x, price_y, price_font_size, logo`

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row scanner) (poster.Template, error) {
	var t poster.Template
	err := row.Scan(&t.Name, &t.Thumbnail, &t.Overlay, &t.Width, &t.Height,
		&t.PriceArea.X, &t.PriceArea.Y, &t.PriceArea.FontSize, &t.Logo)
	return t, err
}

// ListTemplates returns the catalog in display order.
func (s *Store) ListTemplates() ([]poster.Template, error) {
	rows, err := s.db.Query(`SELECT ` + templateColumns + ` FROM templates ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []poster.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTemplate returns a template by name, or ErrNotFound.
func (s *Store) GetTemplate(name string) (poster.Template, error) {
	t, err := scanTemplate(s.db.QueryRow(`SELECT `+templateColumns+` FROM templates WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return poster.Template{}, ErrNotFound
	}
	return t, err
}

// SaveTemplate upserts a template at the given display position.
func (s *Store) SaveTemplate(t poster.Template, position int) error {
	return saveTemplate(s.db, t, position)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveTemplate(db execer, t poster.Template, position int) error {
	if !t.Valid() {
		return fmt.Errorf("posterkit: invalid template %q", t.Name)
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO templates (position, `+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		position, t.Name, t.Thumbnail, t.Overlay, t.Width, t.Height,
		t.PriceArea.X, t.PriceArea.Y, t.PriceArea.FontSize, t.Logo)
	return err
}

// DeleteTemplate removes a template by name.
func (s *Store) DeleteTemplate(name string) error {
	_, err := s.db.Exec(`DELETE FROM templates WHERE name = ?`, name)
	return err
}

// Seed replaces the catalog with templates, keeping their order.
func (s *Store) Seed(templates []poster.Template) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM templates`); err != nil {
		return err
	}
	for i, t := range templates {
		if err := saveTemplate(tx, t, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/haeki/devserve/internal/project"
)

// DB implements project.Store for SQLite (modernc.org/sqlite driver,
// CGO-free). DSN is a filesystem path; use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects(
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			frontend_port INTEGER NOT NULL DEFAULT 0,
			backend_port INTEGER NOT NULL DEFAULT 0,
			frontend_framework TEXT NOT NULL DEFAULT '',
			backend_framework TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Save(ctx context.Context, p project.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects(id, name, path, frontend_port, backend_port, frontend_framework, backend_framework, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			path=excluded.path,
			frontend_port=excluded.frontend_port,
			backend_port=excluded.backend_port,
			frontend_framework=excluded.frontend_framework,
			backend_framework=excluded.backend_framework,
			updated_at=excluded.updated_at;`,
		p.ID, p.Name, p.Path, p.FrontendPort, p.BackendPort,
		p.Frameworks.Frontend, p.Frameworks.Backend, time.Now().UTC())
	return err
}

func (s *DB) Get(ctx context.Context, id string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, path, frontend_port, backend_port, frontend_framework, backend_framework
		FROM projects WHERE id=?;`, id)
	var p project.Project
	err := row.Scan(&p.ID, &p.Name, &p.Path, &p.FrontendPort, &p.BackendPort,
		&p.Frameworks.Frontend, &p.Frameworks.Backend)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, project.ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *DB) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=?;`, id)
	return err
}

func (s *DB) List(ctx context.Context) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path, frontend_port, backend_port, frontend_framework, backend_framework
		FROM projects ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]project.Project, 0)
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.FrontendPort, &p.BackendPort,
			&p.Frameworks.Frontend, &p.Frameworks.Backend); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/haeki/devserve/internal/project"
)

// DB implements project.Store for PostgreSQL via the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects(
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			frontend_port INTEGER NOT NULL DEFAULT 0,
			backend_port INTEGER NOT NULL DEFAULT 0,
			frontend_framework TEXT NOT NULL DEFAULT '',
			backend_framework TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Save(ctx context.Context, pr project.Project) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO projects(id, name, path, frontend_port, backend_port, frontend_framework, backend_framework, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT(id) DO UPDATE SET
			name=EXCLUDED.name,
			path=EXCLUDED.path,
			frontend_port=EXCLUDED.frontend_port,
			backend_port=EXCLUDED.backend_port,
			frontend_framework=EXCLUDED.frontend_framework,
			backend_framework=EXCLUDED.backend_framework,
			updated_at=EXCLUDED.updated_at;`,
		pr.ID, pr.Name, pr.Path, pr.FrontendPort, pr.BackendPort,
		pr.Frameworks.Frontend, pr.Frameworks.Backend, time.Now().UTC())
	return err
}

func (p *DB) Get(ctx context.Context, id string) (project.Project, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, path, frontend_port, backend_port, frontend_framework, backend_framework
		FROM projects WHERE id=$1;`, id)
	var pr project.Project
	err := row.Scan(&pr.ID, &pr.Name, &pr.Path, &pr.FrontendPort, &pr.BackendPort,
		&pr.Frameworks.Frontend, &pr.Frameworks.Backend)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, project.ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}
	return pr, nil
}

func (p *DB) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1;`, id)
	return err
}

func (p *DB) List(ctx context.Context) ([]project.Project, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, path, frontend_port, backend_port, frontend_framework, backend_framework
		FROM projects ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]project.Project, 0)
	for rows.Next() {
		var pr project.Project
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Path, &pr.FrontendPort, &pr.BackendPort,
			&pr.Frameworks.Frontend, &pr.Frameworks.Backend); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

package sqlite

import (
	"context"
	"testing"

	"github.com/haeki/devserve/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestSaveGetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := project.Project{
		ID:           "42",
		Name:         "demo",
		Path:         "/srv/projects/demo",
		FrontendPort: 5173,
		BackendPort:  8000,
		Frameworks:   project.Frameworks{Frontend: "vite", Backend: "fastapi"},
	}
	require.NoError(t, db.Save(ctx, p))

	got, err := db.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// upsert replaces
	p.BackendPort = 8100
	require.NoError(t, db.Save(ctx, p))
	got, err = db.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 8100, got.BackendPort)
}

func TestGetNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestDeleteAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, project.Project{ID: "1", Name: "beta", Path: "/b"}))
	require.NoError(t, db.Save(ctx, project.Project{ID: "2", Name: "alpha", Path: "/a"}))

	list, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)

	require.NoError(t, db.Delete(ctx, "1"))
	list, err = db.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// deleting a missing id is not an error
	assert.NoError(t, db.Delete(ctx, "1"))
}

package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/athena/internal/bitset"
	"github.com/roach88/athena/internal/testutil"
)

// createTestDB creates a database with a discarded log and a seeded
// random source.
func createTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRand(testutil.NewRand(testutil.Seed)),
	}
	return New(append(base, opts...)...)
}

// registerScalars registers one scalar per value in order.
func registerScalars(t *testing.T, sc *Scope, vals ...uint64) []ID {
	t.Helper()
	ids := make([]ID, 0, len(vals))
	for _, v := range vals {
		id, err := sc.Register(NewScalar(v))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// registerSet registers the scalars and then the set holding them.
func registerSet(t *testing.T, sc *Scope, vals ...uint64) ID {
	t.Helper()
	ids := registerScalars(t, sc, vals...)
	id, err := sc.Register(NewSet(bitset.Of(ids...)))
	require.NoError(t, err)
	return id
}

// bindSet binds name to a set of scalars and releases the scratch scope.
func bindSet(t *testing.T, db *DB, name string, vals ...uint64) ID {
	t.Helper()
	sc := db.NewScope()
	defer sc.Release()
	require.NoError(t, db.Bind(name, registerSet(t, sc, vals...)))
	id, err := db.Lookup(name)
	require.NoError(t, err)
	return id
}

func render(t *testing.T, db *DB, id ID) string {
	t.Helper()
	s, err := db.Render(id)
	require.NoError(t, err)
	return s
}

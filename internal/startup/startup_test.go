package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/dbtest"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
)

func resolve(t *testing.T, d *db.DB) Context {
	t.Helper()
	c, err := Resolve(context.Background(), d, query.NewBuilder(d.Dialect()))
	require.NoError(t, err)
	return c
}

func TestResolveHistoricalWithoutOperations(t *testing.T) {
	d := dbtest.Open(t)
	c := resolve(t, d)

	assert.Equal(t, Historical, c.Mode)
	assert.Equal(t, query.ViewAll, c.View)
	assert.Nil(t, c.OperationID)
	assert.Contains(t, c.Message, "Elige un rango")

	_, err := DefaultScope(c)
	assert.ErrorIs(t, err, ErrNoRange)
}

func TestResolveHistoricalLastClosed(t *testing.T) {
	d := dbtest.Open(t)
	dbtest.InsertOperation(t, d, 119, query.OperationClosed, "2024-05-31")
	dbtest.InsertOperation(t, d, 120, query.OperationClosed, "2024-06-01")
	c := resolve(t, d)

	assert.Equal(t, Historical, c.Mode)
	require.NotNil(t, c.OperationID)
	assert.Equal(t, int64(120), *c.OperationID)
	assert.Equal(t, "CERRADA", c.OperationStatus)
	assert.Contains(t, c.Message, "#120")

	sc, err := DefaultScope(c)
	require.NoError(t, err)
	assert.Equal(t, metrics.Scope{
		View:    query.ViewAll,
		Filters: query.OperationRange(120, 120),
		Mode:    query.ModeOps,
	}, sc)
}

func TestResolveRealtime(t *testing.T) {
	d := dbtest.Open(t)
	dbtest.InsertOperation(t, d, 120, query.OperationClosed, "2024-06-01")
	dbtest.InsertOperation(t, d, 121, query.OperationOpen, "2024-06-02")

	c := resolve(t, d)
	assert.Equal(t, Realtime, c.Mode)
	assert.Equal(t, query.ViewCurrent, c.View)
	require.NotNil(t, c.OperationID)
	assert.Equal(t, int64(121), *c.OperationID)
	assert.Equal(t, "ABIERTA", c.OperationStatus)
	assert.False(t, c.HasRows)
	assert.Contains(t, c.Message, "aún no hay ventas")

	t.Run("trading", func(t *testing.T) {
		dbtest.InsertLines(t, d, dbtest.Sale(121, 1, "Cerveza", 1, 10))
		c := resolve(t, d)
		assert.True(t, c.HasRows)
		assert.Contains(t, c.Message, "tiempo real")

		sc, err := DefaultScope(c)
		require.NoError(t, err)
		assert.Equal(t, query.ViewCurrent, sc.View)
		assert.Equal(t, query.ModeOps, sc.Mode)
	})

	t.Run("reopened", func(t *testing.T) {
		dbtest.InsertOperation(t, d, 122, query.OperationReopen, "2024-06-03")
		c := resolve(t, d)
		assert.Equal(t, int64(122), *c.OperationID)
		assert.Equal(t, "REABIERTA", c.OperationStatus)
	})
}

func TestDefaultScopeRealtimeWithoutID(t *testing.T) {
	sc, err := DefaultScope(Context{Mode: Realtime, View: query.ViewCurrent})
	require.NoError(t, err)
	assert.Equal(t, query.ModeNone, sc.Mode)
	assert.Equal(t, query.ViewCurrent, sc.View)
}

type failingQuerier struct{ err error }

func (f failingQuerier) Query(
	context.Context, string, query.Statement,
) ([]db.Row, error) {
	return nil, f.err
}

func TestResolveError(t *testing.T) {
	boom := &db.QueryError{Context: "startup_active_operation", Err: errors.New("no route to host")}
	_, err := Resolve(context.Background(), failingQuerier{boom},
		query.NewBuilder(query.MySQL{}))
	require.Error(t, err)
	_, ok := db.AsQueryError(err)
	assert.True(t, ok)
}

func TestListOperations(t *testing.T) {
	d := dbtest.Open(t)
	dbtest.InsertOperation(t, d, 120, query.OperationClosed, "2024-06-01")
	dbtest.InsertOperation(t, d, 121, query.OperationOpen, "2024-06-02")

	ops, err := ListOperations(context.Background(), d,
		query.NewBuilder(d.Dialect()))
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, Operation{
		ID:           121,
		Fecha:        "2024-06-02",
		Nombre:       "Operativa 2024-06-02",
		EstadoID:     22,
		EstadoNombre: "ABIERTA",
	}, ops[0])
	assert.Equal(t, "#120 · 2024-06-01 · CERRADA", ops[1].Label())
}

package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/dbtest"
	"github.com/wesm/barview/internal/query"
)

func TestQueryBindsNamedParams(t *testing.T) {
	d := dbtest.Open(t)
	dbtest.InsertLines(t, d,
		dbtest.Sale(100, 1, "Cerveza", 2, 10),
		dbtest.Sale(101, 2, "Ron", 1, 20),
		dbtest.Sale(102, 3, "Agua", 1, 5),
	)

	rows, err := d.Query(context.Background(), "test", query.Statement{
		SQL: `SELECT id_comanda, nombre, sub_total FROM comandas_v6_todas
			WHERE id_operacion BETWEEN :op_ini AND :op_fin
			ORDER BY id_comanda`,
		Params: map[string]any{"op_ini": int64(100), "op_fin": int64(101)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id_comanda"])
	assert.Equal(t, "Cerveza", rows[0]["nombre"])
	assert.Equal(t, 20.0, rows[1]["sub_total"])
}

func TestQueryEmptyResultIsNotNil(t *testing.T) {
	d := dbtest.Open(t)
	rows, err := d.Query(context.Background(), "empty", query.Statement{
		SQL: "SELECT * FROM comandas_v6_todas",
	})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestQueryError(t *testing.T) {
	d := dbtest.Open(t)
	st := query.Statement{
		SQL:    "SELECT missing_col FROM comandas_v6_todas WHERE id_operacion = :op",
		Params: map[string]any{"op": int64(1)},
	}
	_, err := d.Query(context.Background(), "kpis", st)
	require.Error(t, err)

	qe, ok := db.AsQueryError(err)
	require.True(t, ok, "expected *QueryError, got %T", err)
	assert.Equal(t, "kpis", qe.Context)
	assert.Equal(t, st.SQL, qe.SQL)
	assert.Equal(t, st.Params, qe.Params)
	assert.NotNil(t, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "kpis: query failed")

	t.Run("missing param", func(t *testing.T) {
		_, err := d.Query(context.Background(), "ids", query.Statement{
			SQL: "SELECT 1 FROM comandas_v6_todas WHERE id_operacion = :op",
		})
		_, ok := db.AsQueryError(err)
		assert.True(t, ok)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := d.Query(ctx, "ids", query.Statement{SQL: "SELECT 1"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := db.Open("postgres", "")
	assert.Error(t, err)
}

func TestHealthcheck(t *testing.T) {
	d := dbtest.Open(t)
	b := query.NewBuilder(d.Dialect())

	report, err := db.Healthcheck(
		context.Background(), d, b, query.RequiredObjects,
	)
	require.NoError(t, err)
	assert.True(t, report.OK(), "missing: %v", report.Missing())
	assert.Equal(t, "main", report.Database)
	assert.Len(t, report.Objects, len(query.RequiredObjects))

	types := map[string]string{}
	for _, o := range report.Objects {
		types[o.Name] = o.Type
	}
	assert.Equal(t, "VIEW", types["comandas_v6"])
	assert.Equal(t, "TABLE", types["comandas_v6_todas"])

	t.Run("missing object", func(t *testing.T) {
		require.NoError(t, d.Exec(context.Background(),
			"DROP TABLE vw_cogs_comanda"))
		report, err := db.Healthcheck(
			context.Background(), d, b, query.RequiredObjects,
		)
		require.NoError(t, err)
		assert.False(t, report.OK())
		assert.Equal(t, []string{"vw_cogs_comanda"}, report.Missing())
	})
}

func TestProvider(t *testing.T) {
	path := dbtest.Path(t)
	resolved := 0
	p := db.NewProvider(func(name string) (string, string, error) {
		if name != "local" {
			return "", "", fmt.Errorf("unknown profile")
		}
		resolved++
		return "sqlite3", path, nil
	})
	t.Cleanup(func() { p.Close() })

	a, _, err := p.Acquire("local")
	require.NoError(t, err)
	b, releaseB, err := p.Acquire("local")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, resolved)
	require.NoError(t, a.Ping(context.Background()))
	releaseB()

	_, _, err = p.Acquire("remote")
	assert.ErrorContains(t, err, `resolving profile "remote"`)

	require.NoError(t, p.Reset())
	c, releaseC, err := p.Acquire("local")
	require.NoError(t, err)
	defer releaseC()
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, resolved)
}

func TestProviderResetKeepsLeasedPoolOpen(t *testing.T) {
	path := dbtest.Path(t)
	p := db.NewProvider(func(string) (string, string, error) {
		return "sqlite3", path, nil
	})
	t.Cleanup(func() { p.Close() })
	ctx := context.Background()

	held, release, err := p.Acquire("local")
	require.NoError(t, err)
	require.NoError(t, p.Reset())

	// a request that started before the reset keeps querying
	require.NoError(t, held.Ping(ctx))
	rows, err := held.Query(ctx, "count_operations", query.Statement{
		SQL: "SELECT COUNT(*) AS n FROM ope_operacion", Params: map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), db.Int(rows[0]["n"]))

	release()
	release()
	assert.Error(t, held.Ping(ctx), "retired pool closes on last release")

	fresh, releaseFresh, err := p.Acquire("local")
	require.NoError(t, err)
	defer releaseFresh()
	assert.NotSame(t, held, fresh)
	assert.NoError(t, fresh.Ping(ctx))
}

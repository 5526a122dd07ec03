package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/dbtest"
	"github.com/wesm/barview/internal/metrics"
	"github.com/wesm/barview/internal/query"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BARVIEW_DATA_DIR", dir)
	for _, k := range []string{
		"BARVIEW_PROFILES", "BARVIEW_PROFILE", "BARVIEW_DEBUG",
		"BARVIEW_PRIOR_SUBTOTAL", "BARVIEW_TZ", "DB_NAME",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantHost    string
		wantPort    int
		wantProfile string
		wantDebug   bool
	}{
		{
			name:        "DefaultArgs",
			args:        []string{},
			wantHost:    "127.0.0.1",
			wantPort:    8080,
			wantProfile: "mysql",
		},
		{
			name:        "ExplicitFlags",
			args:        []string{"-host", "0.0.0.0", "-port", "9090", "-profile", "replica", "-debug"},
			wantHost:    "0.0.0.0",
			wantPort:    9090,
			wantProfile: "replica",
			wantDebug:   true,
		},
		{
			name:        "PartialFlags",
			args:        []string{"-port", "3000"},
			wantHost:    "127.0.0.1",
			wantPort:    3000,
			wantProfile: "mysql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolateEnv(t)
			cfg, err := loadConfig("serve", tt.args, config.RegisterServeFlags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.Equal(t, tt.wantProfile, cfg.Profile)
			assert.Equal(t, tt.wantDebug, cfg.Debug)
			assert.Equal(t, dir, cfg.DataDir)
		})
	}

	t.Run("UnknownFlag", func(t *testing.T) {
		isolateEnv(t)
		var buf bytes.Buffer
		_, err := loadConfig("check", []string{"-port", "1"}, func(fs *flag.FlagSet) {
			fs.SetOutput(&buf)
			config.RegisterConnectionFlags(fs)
		})
		assert.ErrorContains(t, err, "parsing flags")
	})
}

func TestReportOptionsScope(t *testing.T) {
	sc, ok, err := reportOptions{}.scope()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, metrics.Scope{}, sc)

	sc, ok, err = reportOptions{opIni: "120"}.scope()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, query.ModeOps, sc.Mode)
	assert.Equal(t, int64(120), *sc.Filters.OpFin)
	assert.Equal(t, "operativa #120", describeRange(sc))

	sc, _, err = reportOptions{opIni: "130", opFin: "120"}.scope()
	require.NoError(t, err)
	assert.Equal(t, "operativas #120 a #130", describeRange(sc))

	sc, ok, err = reportOptions{to: "2024-06-01"}.scope()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-06-01 00:00:00 a 2024-06-01 23:59:59", describeRange(sc))

	_, _, err = reportOptions{opIni: "x"}.scope()
	assert.ErrorContains(t, err, "invalid -op-ini")
	_, _, err = reportOptions{from: "junio"}.scope()
	assert.ErrorIs(t, err, query.ErrConfiguration)
}

func seedReport(t *testing.T) *db.DB {
	t.Helper()
	d := dbtest.Open(t)
	dbtest.InsertOperation(t, d, 100, 23, "2024-06-01")
	pending := dbtest.Sale(100, 4, "Whisky", 1, 50)
	pending.PrintStatus = "PENDIENTE"
	dbtest.InsertLines(t, d,
		dbtest.Sale(100, 1, "Cerveza", 1, 1000),
		dbtest.Sale(100, 2, "Ron", 1, 234.5),
		pending,
	)
	dbtest.InsertPrintLog(t, d, 4, "IMPRESO")
	dbtest.InsertMargins(t, d,
		dbtest.Margin{Operation: 100, Order: 1, Sales: 1000, COGS: 250},
	)
	return d
}

func TestBuildReport(t *testing.T) {
	d := seedReport(t)
	ctx := context.Background()

	r, err := buildReport(ctx, d, config.Config{}, reportOptions{})
	require.NoError(t, err)
	require.NotNil(t, r.Context)
	assert.Equal(t, int64(100), *r.Scope.Filters.OpIni)
	assert.Equal(t, 1234.5, r.KPIs.TotalVendido)
	assert.Equal(t, int64(1), r.Status.ComandasImpresionPendiente)

	var buf bytes.Buffer
	writeReport(&buf, r)
	out := buf.String()
	assert.Contains(t, out, "#100")
	assert.Contains(t, out, "Rango: operativa #100")
	assert.Contains(t, out, "Total vendido     Bs 1.234,50")
	assert.Contains(t, out, "Margen            Bs 750,00 (75,0%)")
	assert.Contains(t, out, "Impresión pendiente 1")

	t.Run("log predicate", func(t *testing.T) {
		r, err := buildReport(ctx, d, config.Config{},
			reportOptions{opIni: "100", useLog: true})
		require.NoError(t, err)
		assert.Nil(t, r.Context)
		var buf bytes.Buffer
		writeReport(&buf, r)
		assert.Contains(t, buf.String(), "Total vendido     Bs 1.284,50")
	})

	t.Run("no range", func(t *testing.T) {
		_, err := buildReport(ctx, dbtest.Open(t), config.Config{}, reportOptions{})
		assert.Error(t, err)
	})
}

func TestPrintHealth(t *testing.T) {
	d := dbtest.Open(t)
	require.NoError(t, d.Exec(context.Background(), "DROP TABLE vw_cogs_comanda"))
	report, err := db.Healthcheck(context.Background(), d,
		query.NewBuilder(d.Dialect()), query.RequiredObjects)
	require.NoError(t, err)

	var buf bytes.Buffer
	printHealth(&buf, "replica", report)
	out := buf.String()
	assert.Contains(t, out, "Profile replica, database main")
	assert.Contains(t, out, "MISSING  vw_cogs_comanda")
	assert.Contains(t, out, "1 required object(s) missing: vw_cogs_comanda")
}

func TestProfileStoreReload(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "connections.toml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("[connections.replica]\ndriver = \"sqlite3\"\npath = \"/a.db\"\n")

	store := &profileStore{path: path}
	require.NoError(t, store.Reload())
	_, dsn, err := store.Resolve("replica")
	require.NoError(t, err)
	assert.Equal(t, "file:/a.db?mode=ro", dsn)

	write("[connections.replica]\ndriver = \"sqlite3\"\npath = \"/b.db\"\n")
	require.NoError(t, store.Reload())
	_, dsn, err = store.Resolve("replica")
	require.NoError(t, err)
	assert.Equal(t, "file:/b.db?mode=ro", dsn)

	write("[connections.replica\n")
	assert.Error(t, store.Reload())
	_, dsn, err = store.Resolve("replica")
	require.NoError(t, err, "previous set kept")
	assert.Equal(t, "file:/b.db?mode=ro", dsn)
	assert.Equal(t, []string{"replica"}, store.Names())

	_, _, err = store.Resolve("mysql")
	assert.ErrorIs(t, err, config.ErrUnknownProfile)
}

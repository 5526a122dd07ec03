package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	watcherDebounce = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
	commandTimeout  = 30 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "check":
			os.Exit(runCheck(os.Args[2:]))
		case "report":
			runReport(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("barview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`barview %s - sales, margin and print-status dashboard for a bar POS

Reads the point-of-sale MySQL database (or a SQLite replica of it)
and serves KPIs, charts, margins and operational status as JSON.

Usage:
  barview [flags]            Start the server (default command)
  barview serve [flags]      Start the server (explicit)
  barview check [flags]      Verify the required views exist
  barview report [flags]     Print KPIs and margins for a range
  barview version            Show version information
  barview help               Show this help

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8080)
  -debug              Include SQL and params in error responses

Connection flags (all commands):
  -profile string     Connection profile name (default "mysql")
  -profiles string    Path to the connection profiles TOML file

Report flags:
  -op-ini, -op-fin    Operation range
  -from, -to          Day range (YYYY-MM-DD)
  -log                Accept the print log as proof of printing

Environment variables:
  BARVIEW_DATA_DIR        Data directory (config.json, connections.toml)
  BARVIEW_PROFILE         Connection profile name
  BARVIEW_PROFILES        Connection profiles file
  BARVIEW_DEBUG           Include SQL in error responses
  BARVIEW_PRIOR_SUBTOTAL  Value courtesies at their pre-discount subtotal
  BARVIEW_TZ              Time zone of database timestamps
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_DISABLED
                          Define the "mysql" profile without a file

Data is stored in ~/.barview/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig("serve", args, config.RegisterServeFlags)
	store := mustLoadProfiles(cfg)
	provider := db.NewProvider(store.Resolve)
	defer provider.Close()

	stopWatcher := startProfileWatcher(cfg, store, provider)
	defer stopWatcher()

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, provider,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	fmt.Printf("barview %s listening at http://%s:%d (profile %q)\n",
		version, cfg.Host, cfg.Port, cfg.Profile)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// loadConfig parses args with the flags register adds and layers
// them over the config file and environment.
func loadConfig(
	name string, args []string, register func(*flag.FlagSet),
) (config.Config, error) {
	fs := flag.NewFlagSet("barview "+name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: barview %s [flags]\n\nFlags:\n", name)
		fs.PrintDefaults()
	}
	register(fs)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, fmt.Errorf("parsing flags: %w", err)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func mustLoadConfig(
	name string, args []string, register func(*flag.FlagSet),
) config.Config {
	cfg, err := loadConfig(name, args, register)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustLoadProfiles(cfg config.Config) *profileStore {
	store := &profileStore{path: cfg.ProfilesPath}
	if err := store.Reload(); err != nil {
		log.Fatalf("loading connection profiles: %v", err)
	}
	if _, _, err := store.Resolve(cfg.Profile); err != nil {
		log.Fatalf("connection profile: %v (defined: %v)",
			err, store.Names())
	}
	return store
}

// startProfileWatcher reloads profiles and drops open pools when
// the profiles file changes. A missing watcher is not fatal.
func startProfileWatcher(
	cfg config.Config, store *profileStore, provider *db.Provider,
) func() {
	onChange := func() {
		if err := store.Reload(); err != nil {
			log.Printf("reloading profiles, keeping previous set: %v", err)
			return
		}
		if err := provider.Reset(); err != nil {
			log.Printf("closing stale connections: %v", err)
		}
	}
	w, err := config.NewProfileWatcher(
		cfg.ProfilesPath, watcherDebounce, onChange,
	)
	if err != nil {
		log.Printf("warning: profile watcher unavailable: %v", err)
		return func() {}
	}
	w.Start()
	return w.Stop
}

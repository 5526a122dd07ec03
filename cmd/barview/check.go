package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
)

// runCheck verifies connectivity and the required views. It
// returns the process exit code.
func runCheck(args []string) int {
	cfg := mustLoadConfig("check", args, config.RegisterConnectionFlags)
	store := mustLoadProfiles(cfg)
	provider := db.NewProvider(store.Resolve)
	defer provider.Close()

	d, release, err := provider.Acquire(cfg.Profile)
	if err != nil {
		log.Printf("opening profile %q: %v", cfg.Profile, err)
		return 1
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := d.Ping(ctx); err != nil {
		log.Printf("connecting to profile %q: %v", cfg.Profile, err)
		return 1
	}
	report, err := db.Healthcheck(
		ctx, d, query.NewBuilder(d.Dialect()), query.RequiredObjects,
	)
	if err != nil {
		log.Printf("health check: %v", err)
		return 1
	}
	printHealth(os.Stdout, cfg.Profile, report)
	if !report.OK() {
		return 1
	}
	return 0
}

func printHealth(w io.Writer, profile string, r db.HealthReport) {
	fmt.Fprintf(w, "Profile %s, database %s\n", profile, r.Database)
	for _, o := range r.Objects {
		mark := "ok     "
		if !o.Exists {
			mark = "MISSING"
		}
		kind := strings.ToLower(o.Type)
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(w, "  %s  %-34s %s\n", mark, o.Name, kind)
	}
	if missing := r.Missing(); len(missing) > 0 {
		fmt.Fprintf(w, "%d required object(s) missing: %s\n",
			len(missing), strings.Join(missing, ", "))
	} else {
		fmt.Fprintln(w, "All required views and tables are present.")
	}
}

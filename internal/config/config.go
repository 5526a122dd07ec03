package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	DataDir       string        `json:"-"`
	ProfilesPath  string        `json:"profiles_path"`
	Profile       string        `json:"profile"`
	Debug         bool          `json:"debug"`
	PriorSubtotal bool          `json:"prior_subtotal"`
	Timezone      string        `json:"timezone"`
	WriteTimeout  time.Duration `json:"-"`
	Limits        Limits        `json:"limits"`
}

// Limits are the default row counts of list sections. Requests
// may override them per call.
type Limits struct {
	TopProducts  int `json:"top_products"`
	TopUsers     int `json:"top_users"`
	StatusIDs    int `json:"status_ids"`
	Detail       int `json:"detail"`
	Margins      int `json:"margins"`
	Consumption  int `json:"consumption"`
	COGS         int `json:"cogs"`
	PourCost     int `json:"pour_cost"`
	RecentOrders int `json:"recent_orders"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".barview")
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		DataDir:      dataDir,
		ProfilesPath: filepath.Join(dataDir, "connections.toml"),
		Profile:      "mysql",
		WriteTimeout: 30 * time.Second,
		Limits: Limits{
			TopProducts:  20,
			TopUsers:     20,
			StatusIDs:    50,
			Detail:       500,
			Margins:      300,
			Consumption:  300,
			COGS:         300,
			PourCost:     60,
			RecentOrders: 10,
		},
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file and env,
// without CLI flags.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("BARVIEW_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.ProfilesPath = filepath.Join(v, "connections.toml")
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// loadFile overlays config.json on c. Absent keys keep their
// current values.
func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("BARVIEW_PROFILES"); v != "" {
		c.ProfilesPath = v
	}
	if v := os.Getenv("BARVIEW_PROFILE"); v != "" {
		c.Profile = v
	}
	if v := os.Getenv("BARVIEW_TZ"); v != "" {
		c.Timezone = v
	}
	for name, dst := range map[string]*bool{
		"BARVIEW_DEBUG":          &c.Debug,
		"BARVIEW_PRIOR_SUBTOTAL": &c.PriorSubtotal,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = b
	}
	return nil
}

// Location returns the zone naive database timestamps are in.
// An empty Timezone means the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
	RegisterConnectionFlags(fs)
	fs.Bool("debug", false, "Include SQL and params in error responses")
}

// RegisterConnectionFlags registers the flags that select a
// database connection.
func RegisterConnectionFlags(fs *flag.FlagSet) {
	fs.String("profile", "mysql", "Connection profile name")
	fs.String("profiles", "", "Path to the connection profiles TOML file")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "profile":
			cfg.Profile = f.Value.String()
		case "profiles":
			cfg.ProfilesPath = f.Value.String()
		case "debug":
			cfg.Debug = f.Value.String() == "true"
		}
	})
}

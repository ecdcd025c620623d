// Package config loads seedgraph settings.
//
// Precedence, lowest first: built-in defaults, the YAML file
// (seedgraph.yaml), SEEDGRAPH_* environment variables, command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "seedgraph.yaml"

// Config is the resolved configuration.
type Config struct {
	Database Database `yaml:"database"`

	// SchemaDir holds the registry *.cue files.
	SchemaDir string `yaml:"schema_dir"`
	// ScenariosDir holds the scenario files.
	ScenariosDir string `yaml:"scenarios_dir"`
	// Scenarios selects and orders the scenarios `apply` runs by default.
	// Empty means every scenario in name order.
	Scenarios []string `yaml:"scenarios"`
	// BootstrapDDL is an optional SQL script executed verbatim before apply.
	BootstrapDDL string `yaml:"bootstrap_ddl"`

	Journal  bool          `yaml:"journal"`
	Timeout  time.Duration `yaml:"timeout"`
	LogLevel string        `yaml:"log_level"`
	MaxNodes int           `yaml:"max_nodes"`

	HTTP HTTP `yaml:"http"`
}

// Database selects the driver and connection string.
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// HTTP configures `seedgraph serve`.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:     Database{Driver: "sqlite3", DSN: "seedgraph.db"},
		SchemaDir:    "schema",
		ScenariosDir: "scenarios",
		Journal:      true,
		Timeout:      30 * time.Second,
		LogLevel:     "info",
		MaxNodes:     10000,
		HTTP:         HTTP{Addr: ":8080"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is only an error when required is set; relative paths in
// the file are resolved against the file's directory.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.SchemaDir, &c.ScenariosDir, &c.BootstrapDDL} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.Database.Driver = getenv("SEEDGRAPH_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getenv("SEEDGRAPH_DB_DSN", c.Database.DSN)
	c.SchemaDir = getenv("SEEDGRAPH_SCHEMA_DIR", c.SchemaDir)
	c.ScenariosDir = getenv("SEEDGRAPH_SCENARIOS_DIR", c.ScenariosDir)
	c.BootstrapDDL = getenv("SEEDGRAPH_BOOTSTRAP_DDL", c.BootstrapDDL)
	c.LogLevel = getenv("SEEDGRAPH_LOG_LEVEL", c.LogLevel)
	c.HTTP.Addr = getenv("SEEDGRAPH_HTTP_ADDR", c.HTTP.Addr)

	if v := getenv("SEEDGRAPH_SCENARIOS", ""); v != "" {
		c.Scenarios = splitList(v)
	}
	if v := getenv("SEEDGRAPH_JOURNAL", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEEDGRAPH_JOURNAL: %w", err)
		}
		c.Journal = b
	}
	if v := getenv("SEEDGRAPH_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SEEDGRAPH_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := getenv("SEEDGRAPH_MAX_NODES", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SEEDGRAPH_MAX_NODES: %w", err)
		}
		c.MaxNodes = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Flag names registered by RegisterFlags.
const (
	FlagDriver       = "driver"
	FlagDSN          = "dsn"
	FlagSchemaDir    = "schema"
	FlagScenariosDir = "scenarios-dir"
	FlagBootstrapDDL = "bootstrap"
	FlagNoJournal    = "no-journal"
	FlagTimeout      = "timeout"
	FlagLogLevel     = "log-level"
)

// RegisterFlags adds the overridable settings to flags. Defaults are empty:
// ApplyFlags only copies flags the user set.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(FlagDriver, "", "database driver (sqlite3|sqlite|pgx|postgres|mysql)")
	flags.String(FlagDSN, "", "database connection string")
	flags.String(FlagSchemaDir, "", "directory of registry .cue files")
	flags.String(FlagScenariosDir, "", "directory of scenario files")
	flags.String(FlagBootstrapDDL, "", "SQL script executed before applying")
	flags.Bool(FlagNoJournal, false, "do not record runs in seedgraph_runs")
	flags.Duration(FlagTimeout, 0, "overall timeout (e.g. 30s)")
	flags.String(FlagLogLevel, "", "log level (debug|info|warn|error)")
}

// ApplyFlags copies every flag registered by RegisterFlags that was set on
// the command line.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagDriver:       &c.Database.Driver,
		FlagDSN:          &c.Database.DSN,
		FlagSchemaDir:    &c.SchemaDir,
		FlagScenariosDir: &c.ScenariosDir,
		FlagBootstrapDDL: &c.BootstrapDDL,
		FlagLogLevel:     &c.LogLevel,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if flags.Changed(FlagNoJournal) {
		off, err := flags.GetBool(FlagNoJournal)
		if err != nil {
			return err
		}
		c.Journal = !off
	}
	if flags.Changed(FlagTimeout) {
		d, err := flags.GetDuration(FlagTimeout)
		if err != nil {
			return err
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks values that cannot be checked while decoding.
func (c Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database.driver is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative, got %d", c.MaxNodes)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreCSV    = "csv"
	StoreSqlite = "sqlite"
)

type StoreBackend string

var validStoreBackends = map[StoreBackend]struct{}{
	StoreCSV:    {},
	StoreSqlite: {},
}

// Config represents the main application configuration. Values are resolved
// in order: built-in defaults, optional YAML config file, environment
// variables, explicitly set CLI flags.
type Config struct {
	Iface        string       `yaml:"iface"`
	Interval     float64      `yaml:"interval"`     // Scan cadence in seconds
	Timeout      float64      `yaml:"timeout"`      // Per-scan timeout in seconds
	Out          string       `yaml:"out"`          // Output path (CSV file or SQLite database)
	Targets      []string     `yaml:"targets"`      // SSIDs or lowercase BSSIDs to log; empty logs all
	NodeID       string       `yaml:"nodeID"`       // Optional reporting host tag
	Location     string       `yaml:"location"`     // Optional location tag
	FullScanMins float64      `yaml:"fullScanMins"` // Full discovery cadence in minutes, 0 disables
	FlushEvery   int          `yaml:"flushEvery"`   // Force rows to durable storage every N iterations
	Store        StoreBackend `yaml:"store"`        // Storage backend [csv, sqlite]
	LogLevel     string       `yaml:"logLevel"`

	level slog.Level
}

func NewConfig() *Config {
	return &Config{
		Iface:        "wlan0",
		Interval:     4.0,
		Timeout:      3.5,
		Out:          "/data/wifi_rssi_log.csv",
		FullScanMins: 10,
		FlushEvery:   5,
		Store:        StoreCSV,
		LogLevel:     "info",
	}
}

// NewConfigFromCLI resolves the configuration from the command line, the
// environment and an optional YAML config file, then validates it
func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var configPath string
	var iface, out, targets, ssid, nodeID, location, store, logLevel string
	var interval, timeout, fullScanMins float64
	var flushEvery int

	flag.StringVar(&configPath, "c", "", "Path to the optional configuration file")
	flag.StringVar(&iface, "if", c.Iface, "Wireless interface to scan")
	flag.Float64Var(&interval, "interval", c.Interval, "Scan interval in seconds")
	flag.Float64Var(&timeout, "timeout", c.Timeout, "Per-scan timeout in seconds")
	flag.StringVar(&out, "out", c.Out, "Output path (CSV file or SQLite database)")
	flag.StringVar(&targets, "targets", "", "Comma-separated SSIDs or BSSIDs to log (e.g. 'HomeWiFi,Office-AP')")
	flag.StringVar(&ssid, "ssid", "", "Single SSID to log, shorthand for -targets")
	flag.StringVar(&nodeID, "node-id", "", "Reporting host tag (e.g. node1)")
	flag.StringVar(&location, "location", "", "Location tag (e.g. kitchen)")
	flag.Float64Var(&fullScanMins, "full-scan-mins", c.FullScanMins, "Full discovery cadence in minutes, 0 disables")
	flag.IntVar(&flushEvery, "flush-every", c.FlushEvery, "Force rows to durable storage every N iterations")
	flag.StringVar(&store, "store", string(c.Store), "Storage backend [csv, sqlite]")
	flag.StringVar(&logLevel, "log-level", c.LogLevel, "Log level [debug, info, warn, error]")
	flag.Parse()

	if configPath != "" {
		if err := loadConfigFile(configPath, c); err != nil {
			return nil, err
		}
	}

	// A .env file is honored when present
	_ = godotenv.Load()
	if err := applyEnv(c); err != nil {
		return nil, err
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "if":
			c.Iface = iface
		case "interval":
			c.Interval = interval
		case "timeout":
			c.Timeout = timeout
		case "out":
			c.Out = out
		case "targets":
			c.Targets = splitTargets(targets)
		case "ssid":
			c.Targets = append(c.Targets, ssid)
		case "node-id":
			c.NodeID = nodeID
		case "location":
			c.Location = location
		case "full-scan-mins":
			c.FullScanMins = fullScanMins
		case "flush-every":
			c.FlushEvery = flushEvery
		case "store":
			c.Store = StoreBackend(strings.ToLower(store))
		case "log-level":
			c.LogLevel = logLevel
		}
	})

	if err = c.Validate(); err != nil {
		flag.Usage()
		return nil, err
	}

	return c, nil
}

func loadConfigFile(path string, c *Config) error {
	p, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration file: %w", err)
	}
	if err = yaml.Unmarshal(p, c); err != nil {
		return fmt.Errorf("parsing configuration file: %w", err)
	}
	return nil
}

func applyEnv(c *Config) error {
	if v := os.Getenv("IFACE"); v != "" {
		c.Iface = v
	}
	if v := os.Getenv("OUT"); v != "" {
		c.Out = v
	}
	if v := os.Getenv("TARGETS"); v != "" {
		c.Targets = splitTargets(v)
	}
	if v := os.Getenv("SSID"); v != "" {
		c.Targets = append(c.Targets, v)
	}
	if v := os.Getenv("NODE_ID"); v != "" {
		c.NodeID = v
	}
	if v := os.Getenv("LOCATION"); v != "" {
		c.Location = v
	}
	if v := os.Getenv("STORE"); v != "" {
		c.Store = StoreBackend(strings.ToLower(v))
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	var err error
	if v := os.Getenv("INTERVAL"); v != "" {
		if c.Interval, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("TIMEOUT"); v != "" {
		if c.Timeout, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("FULL_SCAN_MINS"); v != "" {
		if c.FullScanMins, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid FULL_SCAN_MINS: %w", err)
		}
	}
	if v := os.Getenv("FLUSH_EVERY"); v != "" {
		if c.FlushEvery, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid FLUSH_EVERY: %w", err)
		}
	}

	return nil
}

func splitTargets(v string) []string {
	var targets []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// Validate checks the configuration and fails fast on anything the loop
// cannot recover from at runtime
func (c *Config) Validate() error {
	var err error
	switch {
	case c.Iface == "":
		err = errors.New("interface is required")
	case c.Interval <= 0:
		err = fmt.Errorf("interval must be positive: %v given", c.Interval)
	case c.Timeout <= 0:
		err = fmt.Errorf("timeout must be positive: %v given", c.Timeout)
	case c.FullScanMins < 0:
		err = fmt.Errorf("full scan cadence cannot be negative: %v given", c.FullScanMins)
	case c.FlushEvery < 1:
		err = fmt.Errorf("flush cadence must be at least 1: %d given", c.FlushEvery)
	case c.Out == "":
		err = errors.New("output path is required")
	}
	if err != nil {
		return err
	}

	if _, ok := validStoreBackends[c.Store]; !ok {
		return fmt.Errorf("unknown storage backend: %s", c.Store)
	}

	// The parent directory must exist; it is not created
	dir := filepath.Dir(c.Out)
	stat, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory '%s' is not accessible: %w", dir, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output directory '%s' is not a directory", dir)
	}

	if err = c.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.LogLevel, err)
	}

	return nil
}

// Level returns the parsed log level. Valid only after Validate.
func (c *Config) Level() slog.Level {
	return c.level
}

// ScanInterval returns the scan cadence as a duration
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// ScanTimeout returns the per-scan timeout as a duration
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Timeout * float64(time.Second))
}

// FullScanInterval returns the full discovery cadence as a duration,
// zero when disabled
func (c *Config) FullScanInterval() time.Duration {
	return time.Duration(c.FullScanMins * float64(time.Minute))
}

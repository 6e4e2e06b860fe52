// Package config loads timecard settings from a YAML file with TIMECARD_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the service looks for its config file.
const DefaultPath = "/etc/timecard/config.yaml"

const (
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	Env string `yaml:"env"` // "dev" | "prod"

	HTTP HTTPConfig `yaml:"http"`
	GRPC GRPCConfig `yaml:"grpc"`
	DB   DBConfig   `yaml:"db"`

	Store      StoreConfig      `yaml:"store"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Readers    []ReaderConfig   `yaml:"readers"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Retention  RetentionConfig  `yaml:"retention"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the HTTP API
}

type GRPCConfig struct {
	Addr string `yaml:"addr"` // empty disables the gRPC API
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig selects where the Users, Status and Records sheets live.
type StoreConfig struct {
	Backend string `yaml:"backend"` // sqlite | sheets | memory

	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`

	UsersSheet   string `yaml:"users_sheet"`
	StatusSheet  string `yaml:"status_sheet"`
	RecordsSheet string `yaml:"records_sheet"`

	// Timeout bounds each remote call.  RatePerSecond and Burst feed the
	// client-side limiter; RatePerSecond 0 disables it.
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

type AttendanceConfig struct {
	MinInterval     time.Duration `yaml:"min_interval"`
	SameBadgeWindow time.Duration `yaml:"same_badge_window"`
	StatusCacheTTL  time.Duration `yaml:"status_cache_ttl"`

	// DebounceShared makes every reader share one debouncer.
	DebounceShared bool `yaml:"debounce_shared"`

	RepairInterval   time.Duration `yaml:"repair_interval"`
	ReconcileOnStart bool          `yaml:"reconcile_on_start"`

	// ReaderOfflineAfter is how long a silent reader is still reported
	// online by GET /v1/readers.
	ReaderOfflineAfter time.Duration `yaml:"reader_offline_after"`

	// Location names the zone used for ledger dates, e.g. "Europe/Berlin".
	// Empty means the host's local zone.
	Location string `yaml:"location"`
}

// ReaderConfig commissions a reader.  Device, when set, attaches a local
// card source read by the service itself; "stdin" reads standard input.
type ReaderConfig struct {
	ID     string `yaml:"id"`
	Mode   string `yaml:"mode"` // in | out | toggle
	Device string `yaml:"device"`
}

type FeedbackConfig struct {
	Console bool        `yaml:"console"`
	Audio   AudioConfig `yaml:"audio"`
	MQTT    MQTTConfig  `yaml:"mqtt"`
	GPIO    GPIOConfig  `yaml:"gpio"`
}

type AudioConfig struct {
	Enabled bool              `yaml:"enabled"`
	Player  []string          `yaml:"player"`
	Clips   map[string]string `yaml:"clips"` // in | out | rejected | failed -> file
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables MQTT
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type GPIOConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Chip     string        `yaml:"chip"`
	GreenPin int           `yaml:"green_pin"`
	RedPin   int           `yaml:"red_pin"`
	Hold     time.Duration `yaml:"hold"`
}

type RetentionConfig struct {
	HeartbeatDays      int `yaml:"heartbeat_days"` // 0 = keep forever
	SwipeLogDays       int `yaml:"swipe_log_days"` // 0 = keep forever
	PruneIntervalHours int `yaml:"prune_interval_hours"`
}

type LoggingConfig struct {
	// File receives a copy of the log, in addition to stdout.
	File string `yaml:"file"`
}

func Default() Config {
	return Config{
		Env:  "dev",
		HTTP: HTTPConfig{Addr: ":8080"},
		DB:   DBConfig{Path: "./data/timecard.db"},
		Store: StoreConfig{
			Backend:       BackendSQLite,
			UsersSheet:    "Users",
			StatusSheet:   "Status",
			RecordsSheet:  "Records",
			Timeout:       5 * time.Second,
			RatePerSecond: 1,
			Burst:         5,
		},
		Attendance: AttendanceConfig{
			MinInterval:        1500 * time.Millisecond,
			StatusCacheTTL:     30 * time.Second,
			DebounceShared:     true,
			RepairInterval:     time.Minute,
			ReaderOfflineAfter: 3 * time.Minute,
		},
		Feedback: FeedbackConfig{
			GPIO: GPIOConfig{GreenPin: 17, RedPin: 27, Hold: 700 * time.Millisecond},
		},
		Retention: RetentionConfig{
			HeartbeatDays:      30,
			SwipeLogDays:       90,
			PruneIntervalHours: 6,
		},
	}
}

// Load reads path over Default, then applies environment overrides.  A
// missing file is not an error when path is DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return Config{}, fmt.Errorf("Load read: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = strings.ToLower(getenvDefault("TIMECARD_ENV", c.Env))
	c.HTTP.Addr = getenvDefault("TIMECARD_HTTP_ADDR", c.HTTP.Addr)
	c.GRPC.Addr = getenvDefault("TIMECARD_GRPC_ADDR", c.GRPC.Addr)
	c.DB.Path = getenvDefault("TIMECARD_DB_PATH", c.DB.Path)

	c.Store.Backend = strings.ToLower(getenvDefault("TIMECARD_STORE_BACKEND", c.Store.Backend))
	c.Store.SpreadsheetID = getenvDefault("TIMECARD_SPREADSHEET_ID", c.Store.SpreadsheetID)
	c.Store.CredentialsFile = getenvDefault("TIMECARD_CREDENTIALS_FILE", c.Store.CredentialsFile)
	c.Store.Timeout = getenvDuration("TIMECARD_STORE_TIMEOUT", c.Store.Timeout)

	c.Attendance.MinInterval = getenvDuration("TIMECARD_MIN_INTERVAL", c.Attendance.MinInterval)
	c.Attendance.StatusCacheTTL = getenvDuration("TIMECARD_STATUS_CACHE_TTL", c.Attendance.StatusCacheTTL)
	c.Attendance.Location = getenvDefault("TIMECARD_LOCATION", c.Attendance.Location)
	if v, ok := os.LookupEnv("TIMECARD_DEBOUNCE_SHARED"); ok {
		c.Attendance.DebounceShared = strings.EqualFold(v, "true") || v == "1"
	}

	c.Feedback.MQTT.Broker = getenvDefault("TIMECARD_MQTT_BROKER", c.Feedback.MQTT.Broker)

	if ids := splitCSV(os.Getenv("TIMECARD_READERS")); len(ids) > 0 {
		c.Readers = c.Readers[:0]
		for _, id := range ids {
			c.Readers = append(c.Readers, ReaderConfig{ID: id, Mode: "toggle"})
		}
	}

	c.Retention.HeartbeatDays = getenvInt("TIMECARD_HEARTBEAT_RETENTION_DAYS", c.Retention.HeartbeatDays)
	c.Retention.SwipeLogDays = getenvInt("TIMECARD_SWIPE_LOG_RETENTION_DAYS", c.Retention.SwipeLogDays)
	c.Retention.PruneIntervalHours = getenvInt("TIMECARD_PRUNE_INTERVAL_HOURS", c.Retention.PruneIntervalHours)

	c.Logging.File = getenvDefault("TIMECARD_LOG_FILE", c.Logging.File)
}

// Validate rejects settings the service cannot start with.  Unknown env
// values fail soft to dev, as they always have.
func (c *Config) Validate() error {
	if c.Env != "dev" && c.Env != "prod" {
		c.Env = "dev"
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendMemory:
	case BackendSheets:
		if c.Store.SpreadsheetID == "" {
			return errors.New("config: store.spreadsheet_id is required for the sheets backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	for i, r := range c.Readers {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("config: readers[%d].id is required", i)
		}
		switch r.Mode {
		case "":
			c.Readers[i].Mode = "toggle"
		case "in", "out", "toggle":
		default:
			return fmt.Errorf("config: reader %s: unknown mode %q", r.ID, r.Mode)
		}
	}
	if c.Attendance.Location != "" {
		if _, err := time.LoadLocation(c.Attendance.Location); err != nil {
			return fmt.Errorf("config: attendance.location: %w", err)
		}
	}
	return nil
}

// ReaderIDs returns the configured reader ids in order.
func (c Config) ReaderIDs() []string {
	out := make([]string, 0, len(c.Readers))
	for _, r := range c.Readers {
		out = append(out, r.ID)
	}
	return out
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package config loads the signloop daemon configuration from the
// environment. Every key is a SIGNLOOP_* variable; in development the
// variables may be seeded from .env and .env.local files in the working
// directory. Validation collects every problem it finds so a
// misconfigured player reports all of them at once instead of one per
// restart.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"

	"github.com/signloop/signloop/common"
	"github.com/signloop/signloop/pkg/looplib"
)

// Environment variable names read by Load. The control RPC secret is
// shared with the client tooling and lives in common.SecretEnv.
const (
	EndpointEnv       = "SIGNLOOP_ENDPOINT"
	DeviceIdEnv       = "SIGNLOOP_DEVICE_ID"
	DataDirEnv        = "SIGNLOOP_DATA_DIR"
	CacheDirEnv       = "SIGNLOOP_CACHE_DIR"
	PollIntervalEnv   = "SIGNLOOP_POLL_INTERVAL"
	RetryDelayEnv     = "SIGNLOOP_RETRY_DELAY"
	MaxRetriesEnv     = "SIGNLOOP_MAX_RETRIES"
	ReconnectDelayEnv = "SIGNLOOP_RECONNECT_DELAY"
	ProbeURLEnv       = "SIGNLOOP_PROBE_URL"
	ProbeAttemptsEnv  = "SIGNLOOP_PROBE_ATTEMPTS"
	FloorSecondsEnv   = "SIGNLOOP_FLOOR_SECONDS"
	RateLimitEnv      = "SIGNLOOP_RATE_LIMIT"
	HTTPAddrEnv       = "SIGNLOOP_HTTP_ADDR"
	RefreshCronEnv    = "SIGNLOOP_REFRESH_CRON"
	LogFileEnv        = "SIGNLOOP_LOG_FILE"
	LogLevelEnv       = "SIGNLOOP_LOG_LEVEL"
	PlaylogPathEnv    = "SIGNLOOP_PLAYLOG_PATH"
	PlaylogDaysEnv    = "SIGNLOOP_PLAYLOG_RETENTION_DAYS"
	WatchCacheEnv     = "SIGNLOOP_WATCH_CACHE"
	DisplayEnv        = "SIGNLOOP_DISPLAY"
)

// Defaults for keys that have no counterpart in looplib. Sync and
// playback defaults (poll interval, retry budget, probe attempts, floor
// seconds) come from the looplib DEF_* constants so the daemon and the
// library never disagree.
const (
	DEF_HTTP_ADDR     = common.DEF_ADDR
	DEF_LOG_LEVEL     = "info"
	DEF_DISPLAY       = DisplayWS
	DEF_PLAYLOG_DAYS  = 90
	DEF_DATA_DIR_NAME = "signloop"
)

// Display modes accepted by DisplayEnv.
const (
	// DisplayWS broadcasts show commands to websocket renderers.
	DisplayWS = "ws"
	// DisplayLog only logs what would be shown. Useful for headless
	// validation of a player before a renderer is attached.
	DisplayLog = "log"
)

// Config carries every tunable of the signloop daemon.
type Config struct {
	Endpoint string // playlist API endpoint, required
	DeviceId string // stable device identifier; empty means auto-resolve
	DataDir  string // manifest, identity and playlog directory
	CacheDir string // downloaded media directory

	PollInterval   time.Duration // steady-state re-sync interval
	RetryDelay     time.Duration // fixed delay between failed cycles
	MaxRetries     int           // consecutive failures before parking
	ReconnectDelay time.Duration // offline-without-cache probe interval
	ProbeURL       string        // connectivity probe target; empty derives from Endpoint
	ProbeAttempts  int           // probe attempts per cycle
	FloorSeconds   int           // minimum per-asset screen time
	RateLimit      int64         // download rate in bytes/s, 0 = unlimited

	HTTPAddr    string // control-plane listen address
	RPCSecret   string // bearer token for the control RPC, empty disables it
	RefreshCron string // optional cron expression for extra sync cycles

	LogFile  string // rotating log file; empty logs to stderr only
	LogLevel string // debug | info | warn | error

	PlaylogPath          string // proof-of-play database; empty derives from DataDir
	PlaylogRetentionDays int    // days of play history to keep

	WatchCache bool   // watch the cache dir and resync on tampering
	Display    string // DisplayWS or DisplayLog
}

// init loads .env and .env.local if they exist. godotenv.Load does not
// override already-set variables, so real environment beats .env and
// .env.local beats .env only for keys the environment leaves unset.
func init() {
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
}

// Load reads the environment and produces a Config with defaults
// applied. It never fails on its own; call Validate to learn whether
// the result is usable.
func Load() *Config {
	cfg := &Config{
		Endpoint:             os.Getenv(EndpointEnv),
		DeviceId:             os.Getenv(DeviceIdEnv),
		DataDir:              getEnv(DataDirEnv, defaultDataDir()),
		CacheDir:             os.Getenv(CacheDirEnv),
		PollInterval:         getDuration(PollIntervalEnv, looplib.DEF_POLL_INTERVAL),
		RetryDelay:           getDuration(RetryDelayEnv, looplib.DEF_RETRY_DELAY),
		MaxRetries:           getInt(MaxRetriesEnv, looplib.DEF_SYNC_MAX_RETRIES),
		ReconnectDelay:       getDuration(ReconnectDelayEnv, looplib.DEF_RECONNECT_DELAY),
		ProbeURL:             os.Getenv(ProbeURLEnv),
		ProbeAttempts:        getInt(ProbeAttemptsEnv, looplib.DEF_PROBE_ATTEMPTS),
		FloorSeconds:         getInt(FloorSecondsEnv, looplib.DEF_FLOOR_SECONDS),
		HTTPAddr:             getEnv(HTTPAddrEnv, DEF_HTTP_ADDR),
		RPCSecret:            os.Getenv(common.SecretEnv),
		RefreshCron:          os.Getenv(RefreshCronEnv),
		LogFile:              os.Getenv(LogFileEnv),
		LogLevel:             getEnv(LogLevelEnv, DEF_LOG_LEVEL),
		PlaylogPath:          os.Getenv(PlaylogPathEnv),
		PlaylogRetentionDays: getInt(PlaylogDaysEnv, DEF_PLAYLOG_DAYS),
		WatchCache:           parseBool(os.Getenv(WatchCacheEnv)),
		Display:              getEnv(DisplayEnv, DEF_DISPLAY),
	}
	if raw, exists := os.LookupEnv(RateLimitEnv); exists {
		limit, err := looplib.ParseRateLimit(raw)
		if err == nil {
			cfg.RateLimit = limit
		} else {
			// Keep the raw string around so Validate can report it.
			cfg.RateLimit = -1
		}
	}
	if cfg.CacheDir == "" && cfg.DataDir != "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.PlaylogPath == "" && cfg.DataDir != "" {
		cfg.PlaylogPath = filepath.Join(cfg.DataDir, "playlog.db")
	}
	if cfg.ProbeURL == "" {
		cfg.ProbeURL = probeFromEndpoint(cfg.Endpoint)
	}
	return cfg
}

// Validate checks the config and returns every problem found, joined
// into a single error. A nil return means the daemon can start.
func (cfg *Config) Validate() error {
	var problems []string
	add := func(format string, a ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, a...))
	}

	if cfg.Endpoint == "" {
		add("%s is required", EndpointEnv)
	} else if u, err := url.Parse(cfg.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		add("%s must be an absolute http(s) URL, got %q", EndpointEnv, cfg.Endpoint)
	}
	if cfg.DataDir == "" {
		add("%s is required", DataDirEnv)
	}
	if cfg.CacheDir == "" {
		add("%s is required", CacheDirEnv)
	}
	if cfg.PollInterval <= 0 {
		add("%s must be a positive duration", PollIntervalEnv)
	}
	if cfg.RetryDelay <= 0 {
		add("%s must be a positive duration", RetryDelayEnv)
	}
	if cfg.MaxRetries <= 0 {
		add("%s must be a positive integer", MaxRetriesEnv)
	}
	if cfg.ReconnectDelay <= 0 {
		add("%s must be a positive duration", ReconnectDelayEnv)
	}
	if cfg.ProbeAttempts <= 0 {
		add("%s must be a positive integer", ProbeAttemptsEnv)
	}
	if cfg.FloorSeconds <= 0 {
		add("%s must be a positive integer", FloorSecondsEnv)
	}
	if cfg.RateLimit < 0 {
		add("%s must be a byte rate like 500K or 2M, got %q", RateLimitEnv, os.Getenv(RateLimitEnv))
	}
	if cfg.HTTPAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTPAddr); err != nil {
			add("%s must be a host:port address, got %q", HTTPAddrEnv, cfg.HTTPAddr)
		}
	}
	if cfg.RefreshCron != "" && !gronx.IsValid(cfg.RefreshCron) {
		add("%s is not a valid cron expression: %q", RefreshCronEnv, cfg.RefreshCron)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		add("%s must be one of debug, info, warn, error, got %q", LogLevelEnv, cfg.LogLevel)
	}
	if cfg.PlaylogRetentionDays < 0 {
		add("%s must not be negative", PlaylogDaysEnv)
	}
	switch cfg.Display {
	case DisplayWS, DisplayLog:
	default:
		add("%s must be %q or %q, got %q", DisplayEnv, DisplayWS, DisplayLog, cfg.Display)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// probeFromEndpoint derives a connectivity probe target from the
// playlist endpoint: same scheme and host, root path. Returns "" when
// the endpoint itself is unusable.
func probeFromEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}

// defaultDataDir places player state under the user configuration
// directory, or the working directory when none is resolvable.
func defaultDataDir() string {
	cdr, err := os.UserConfigDir()
	if err != nil {
		return DEF_DATA_DIR_NAME
	}
	return filepath.Join(cdr, DEF_DATA_DIR_NAME)
}

// getEnv retrieves an environment variable value, returning a fallback
// if not set or empty.
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// getDuration parses key as a Go duration ("90s", "15m") or, for
// convenience on provisioning systems that only deal in numbers, a
// bare count of seconds ("90"). Unset or unparsable values yield the
// fallback; zero and negative values are kept so Validate can report
// them against the key name.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return -1
	}
	return d
}

// getInt parses key as an integer, returning the fallback when unset
// and -1 (for Validate to flag) when unparsable.
func getInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

// parseBool converts a string to a boolean value, returning false if
// parsing fails.
func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

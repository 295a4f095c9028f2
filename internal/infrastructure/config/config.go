package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mithun50/luma-cli/pkg/shared/redact"
)

type Config struct {
	Addr            string `yaml:"addr" json:"addr"`
	LogLevel        string `yaml:"logLevel" json:"logLevel"`
	// LogFormat is "json" (default) or "console".
	LogFormat       string `yaml:"logFormat" json:"logFormat"`
	CORSAllowOrigin string `yaml:"corsAllowOrigin" json:"corsAllowOrigin"`
	// Optional TLS server; started when both cert and key are set.
	TLSAddr     string `yaml:"tlsAddr" json:"tlsAddr"`
	TLSCertFile string `yaml:"tlsCertFile" json:"tlsCertFile"`
	TLSKeyFile  string `yaml:"tlsKeyFile" json:"tlsKeyFile"`

	CDPHost string `yaml:"cdpHost" json:"cdpHost"`
	// Candidate debugger ports, tried in order.
	CDPPorts []int `yaml:"cdpPorts" json:"cdpPorts"`
	// TargetMatch markers select the page by url or title substring.
	TargetMatch      []string      `yaml:"targetMatch" json:"targetMatch"`
	DiscoveryTimeout time.Duration `yaml:"discoveryTimeout" json:"discoveryTimeout"`
	CallTimeout      time.Duration `yaml:"callTimeout" json:"callTimeout"`
	SettleDelay      time.Duration `yaml:"settleDelay" json:"settleDelay"`

	PollInterval      time.Duration `yaml:"pollInterval" json:"pollInterval"`
	ReconnectInterval time.Duration `yaml:"reconnectInterval" json:"reconnectInterval"`
	ErrorLogWindow    time.Duration `yaml:"errorLogWindow" json:"errorLogWindow"`

	EventLogSize int           `yaml:"eventLogSize" json:"eventLogSize"`
	EventLogTTL  time.Duration `yaml:"eventLogTTL" json:"eventLogTTL"`
}

func Default() Config {
	return Config{
		Addr:              ":3000",
		LogLevel:          "info",
		LogFormat:         "json",
		CORSAllowOrigin:   "*",
		CDPHost:           "127.0.0.1",
		CDPPorts:          []int{9000, 9001, 9002, 9003},
		TargetMatch:       []string{"workbench.html", "workbench"},
		DiscoveryTimeout:  2 * time.Second,
		CallTimeout:       30 * time.Second,
		SettleDelay:       time.Second,
		PollInterval:      time.Second,
		ReconnectInterval: 2 * time.Second,
		ErrorLogWindow:    10 * time.Second,
		EventLogSize:      500,
		EventLogTTL:       time.Hour,
	}
}

// FromEnv returns the defaults overlaid with the environment.
func FromEnv() Config {
	cfg := Default()
	ApplyEnv(&cfg)
	return cfg
}

// Load resolves the configuration from defaults, an optional config file
// (--config or LUMA_CONFIG), the environment and finally explicit flags.
func Load(args []string) (Config, error) {
	cfg := Default()
	fromFlags := Default()
	fs := pflag.NewFlagSet("luma-bridge", pflag.ContinueOnError)
	var path string
	fs.StringVarP(&path, "config", "c", "", "config file (.yaml, .yml, .json, .jsonc)")
	BindFlags(fs, &fromFlags)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if path == "" {
		path = os.Getenv("LUMA_CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	ApplyEnv(&cfg)
	fs.Visit(func(f *pflag.Flag) { overlay(&cfg, &fromFlags, f.Name) })
	return cfg, cfg.Validate()
}

// LoadFile merges a YAML or JSONC file into cfg; keys absent from the file
// keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML; decoding through yaml keeps duration strings working.
		data = jsonc.ToJSON(data)
	case ".yaml", ".yml", "":
	default:
		return fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func ApplyEnv(cfg *Config) {
	if p := os.Getenv("PORT"); p != "" {
		cfg.Addr = ":" + p
	}
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.CORSAllowOrigin = getEnv("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)
	cfg.TLSAddr = getEnv("TLS_ADDR", cfg.TLSAddr)
	cfg.TLSCertFile = getEnv("TLS_CERT_FILE", cfg.TLSCertFile)
	cfg.TLSKeyFile = getEnv("TLS_KEY_FILE", cfg.TLSKeyFile)

	cfg.CDPHost = getEnv("CDP_HOST", cfg.CDPHost)
	if v := strings.TrimSpace(os.Getenv("CDP_PORTS")); v != "" {
		if ports, err := parsePorts(v); err == nil {
			cfg.CDPPorts = ports
		}
	}
	if v := strings.TrimSpace(os.Getenv("CDP_TARGET_MATCH")); v != "" {
		cfg.TargetMatch = splitCSV(v)
	}
	cfg.DiscoveryTimeout = getEnvMs("CDP_DISCOVERY_TIMEOUT_MS", cfg.DiscoveryTimeout)
	cfg.CallTimeout = getEnvMs("CDP_CALL_TIMEOUT_MS", cfg.CallTimeout)
	cfg.SettleDelay = getEnvMs("CDP_SETTLE_MS", cfg.SettleDelay)
	cfg.PollInterval = getEnvMs("POLL_INTERVAL_MS", cfg.PollInterval)
	cfg.ReconnectInterval = getEnvMs("RECONNECT_INTERVAL_MS", cfg.ReconnectInterval)
	cfg.ErrorLogWindow = getEnvMs("ERROR_LOG_WINDOW_MS", cfg.ErrorLogWindow)
	cfg.EventLogSize = getEnvInt("EVENT_LOG_SIZE", cfg.EventLogSize)
	cfg.EventLogTTL = getEnvMs("EVENT_LOG_TTL_MS", cfg.EventLogTTL)
}

// BindFlags registers one flag per setting, writing into cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	fs.StringVar(&cfg.CORSAllowOrigin, "cors-origin", cfg.CORSAllowOrigin, "Access-Control-Allow-Origin value")
	fs.StringVar(&cfg.TLSAddr, "tls-addr", cfg.TLSAddr, "HTTPS listen address")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", cfg.TLSCertFile, "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", cfg.TLSKeyFile, "TLS key file")
	fs.StringVar(&cfg.CDPHost, "cdp-host", cfg.CDPHost, "host running the IDE debugger")
	fs.IntSliceVar(&cfg.CDPPorts, "cdp-ports", cfg.CDPPorts, "candidate debugger ports, in the order tried")
	fs.StringSliceVar(&cfg.TargetMatch, "target-match", cfg.TargetMatch, "url/title markers of the target page")
	fs.DurationVar(&cfg.DiscoveryTimeout, "discovery-timeout", cfg.DiscoveryTimeout, "per-port discovery timeout")
	fs.DurationVar(&cfg.CallTimeout, "call-timeout", cfg.CallTimeout, "CDP call timeout")
	fs.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "wait after Runtime.enable")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "snapshot poll interval")
	fs.DurationVar(&cfg.ReconnectInterval, "reconnect-interval", cfg.ReconnectInterval, "delay between connect attempts")
	fs.DurationVar(&cfg.ErrorLogWindow, "error-log-window", cfg.ErrorLogWindow, "minimum spacing of capture failure logs")
	fs.IntVar(&cfg.EventLogSize, "event-log-size", cfg.EventLogSize, "events kept for /api/events")
	fs.DurationVar(&cfg.EventLogTTL, "event-log-ttl", cfg.EventLogTTL, "retention of logged events")
}

func overlay(dst, src *Config, flag string) {
	switch flag {
	case "addr":
		dst.Addr = src.Addr
	case "log-level":
		dst.LogLevel = src.LogLevel
	case "log-format":
		dst.LogFormat = src.LogFormat
	case "cors-origin":
		dst.CORSAllowOrigin = src.CORSAllowOrigin
	case "tls-addr":
		dst.TLSAddr = src.TLSAddr
	case "tls-cert":
		dst.TLSCertFile = src.TLSCertFile
	case "tls-key":
		dst.TLSKeyFile = src.TLSKeyFile
	case "cdp-host":
		dst.CDPHost = src.CDPHost
	case "cdp-ports":
		dst.CDPPorts = src.CDPPorts
	case "target-match":
		dst.TargetMatch = src.TargetMatch
	case "discovery-timeout":
		dst.DiscoveryTimeout = src.DiscoveryTimeout
	case "call-timeout":
		dst.CallTimeout = src.CallTimeout
	case "settle-delay":
		dst.SettleDelay = src.SettleDelay
	case "poll-interval":
		dst.PollInterval = src.PollInterval
	case "reconnect-interval":
		dst.ReconnectInterval = src.ReconnectInterval
	case "error-log-window":
		dst.ErrorLogWindow = src.ErrorLogWindow
	case "event-log-size":
		dst.EventLogSize = src.EventLogSize
	case "event-log-ttl":
		dst.EventLogTTL = src.EventLogTTL
	}
}

func (c Config) Validate() error {
	if len(c.CDPPorts) == 0 {
		return fmt.Errorf("config: at least one CDP port is required")
	}
	for _, p := range c.CDPPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("config: invalid CDP port %d", p)
		}
	}
	if c.PollInterval <= 0 || c.ReconnectInterval <= 0 || c.CallTimeout <= 0 {
		return fmt.Errorf("config: poll interval, reconnect interval and call timeout must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("config: TLS needs both a certificate and a key")
	}
	return nil
}

// TLSEnabled reports whether an HTTPS server should be started.
func (c Config) TLSEnabled() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// Redacted is the configuration as exposed by the API, secrets masked.
func (c Config) Redacted() any {
	v, err := redact.Value(c)
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvMs(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

func parsePorts(s string) ([]int, error) {
	var ports []int
	for _, tok := range splitCSV(s) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("config: bad port %q", tok)
		}
		ports = append(ports, n)
	}
	return ports, nil
}

// splitCSV splits comma-separated tokens trimming whitespace and skipping empties.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

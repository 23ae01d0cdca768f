package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/TomasB/ip2country/internal/geoip"
)

const (
	DefaultConfigPath    = "/etc/ip2country/config.yaml"
	DefaultLookupCommand = "geoiplookup"
	DefaultDNSServer     = "1.1.1.1:53"
)

var countryCodePattern = regexp.MustCompile(`^[A-Z0-9]{2}$`)

// Config holds every process setting. It is loaded once at startup.
type Config struct {
	Port     string `yaml:"port"`
	GRPCPort string `yaml:"grpc_port"`
	LogLevel string `yaml:"log_level"`

	Enabled            bool          `yaml:"enabled"`
	DefaultCountryCode string        `yaml:"default_country_code"`
	IPv4DatabasePath   string        `yaml:"ipv4_database_path"`
	IPv6DatabasePath   string        `yaml:"ipv6_database_path"`
	BaseDir            string        `yaml:"base_dir"`
	LookupCommand      string        `yaml:"lookup_command"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	ExecEnabled        bool          `yaml:"exec_enabled"`

	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
	DNSServer     string `yaml:"dns_server"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:          "8080",
		GRPCPort:      "9090",
		LogLevel:      "info",
		Enabled:       true,
		LookupCommand: DefaultLookupCommand,
		LookupTimeout: geoip.DefaultLookupTimeout,
		ExecEnabled:   true,
		RetentionDays: 30,
		DNSServer:     DefaultDNSServer,
	}
}

// Load reads the YAML file at path, if it exists, and applies environment
// overrides on top. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.BaseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.BaseDir = wd
		}
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		cfg.GRPCPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MMDB_PATH"); v != "" {
		// A GeoLite2 file carries both trees.
		cfg.IPv4DatabasePath = v
		cfg.IPv6DatabasePath = v
	}
	if v := os.Getenv("GEOIP_ENABLED"); v != "" {
		cfg.Enabled = parseBool(v)
	}
	if v := os.Getenv("GEOIP_DEFAULT_COUNTRY"); v != "" {
		cfg.DefaultCountryCode = strings.ToUpper(v)
	}
	if v := os.Getenv("GEOIP_IPV4_DB"); v != "" {
		cfg.IPv4DatabasePath = v
	}
	if v := os.Getenv("GEOIP_IPV6_DB"); v != "" {
		cfg.IPv6DatabasePath = v
	}
	if v := os.Getenv("GEOIP_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("GEOIP_LOOKUP_COMMAND"); v != "" {
		cfg.LookupCommand = v
	}
	if v := os.Getenv("GEOIP_LOOKUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LookupTimeout = d
		}
	}
	if v := os.Getenv("GEOIP_EXEC_ENABLED"); v != "" {
		cfg.ExecEnabled = parseBool(v)
	}
	if v := os.Getenv("GEOIP_STORAGE_PATH"); v != "" {
		cfg.StoragePath = v
	}
	if v := os.Getenv("GEOIP_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.RetentionDays = days
		}
	}
	if v := os.Getenv("GEOIP_DNS_SERVER"); v != "" {
		cfg.DNSServer = v
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.GRPCPort == "" {
		return fmt.Errorf("grpc_port is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if c.DefaultCountryCode != "" && !countryCodePattern.MatchString(c.DefaultCountryCode) {
		return fmt.Errorf("default_country_code must be a two character upper case code")
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("lookup_timeout must be positive")
	}
	if _, err := c.lookupCommand(); err != nil {
		return err
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be at least 1")
	}
	return nil
}

func (c *Config) lookupCommand() ([]string, error) {
	args, err := shellquote.Split(c.LookupCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup_command: %w", err)
	}
	return args, nil
}

// Settings projects the configuration onto the resolution engine.
func (c *Config) Settings() (geoip.Settings, error) {
	command, err := c.lookupCommand()
	if err != nil {
		return geoip.Settings{}, err
	}
	return geoip.Settings{
		Enabled:            c.Enabled,
		DefaultCountryCode: c.DefaultCountryCode,
		IPv4DatabasePath:   c.IPv4DatabasePath,
		IPv6DatabasePath:   c.IPv6DatabasePath,
		BaseDir:            c.BaseDir,
		LookupCommand:      command,
		LookupTimeout:      c.LookupTimeout,
		ProcessExecAllowed: c.ExecEnabled,
	}, nil
}

// DatabasePaths returns the configured database paths resolved against
// BaseDir, skipping unset ones.
func (c *Config) DatabasePaths() []string {
	var paths []string
	seen := make(map[string]bool, 2)
	for _, p := range []string{c.IPv4DatabasePath, c.IPv6DatabasePath} {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) && c.BaseDir != "" {
			p = filepath.Join(c.BaseDir, p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Package config loads the effective service configuration: a yaml file,
// INBOXD_* environment overrides, and command-line flags, with flags
// winning over env over file.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads and parses a yaml config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseCommandFlags defines and parses the command-line flags.
func ParseCommandFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.inboxd-data", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath decides the config file path from the flag value and
// the INBOXD_CONFIG environment variable when the flag was not set.
func ResolveConfigPath(f Flags) string {
	if f.Set["config"] {
		return f.Config
	}
	if p := os.Getenv("INBOXD_CONFIG"); p != "" {
		return p
	}
	return f.Config
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// LoadEnvOverrides applies INBOXD_* environment overrides onto cfg and
// reports whether any were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("INBOXD_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("INBOXD_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("INBOXD_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("INBOXD_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("INBOXD_AUDIT_DIR"); v != "" {
		envUsed = true
		cfg.Storage.AuditDir = v
	}
	if v := os.Getenv("INBOXD_ENCRYPTION_SECRET"); v != "" {
		envUsed = true
		cfg.Security.EncryptionSecret = v
	}
	if v := os.Getenv("INBOXD_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("INBOXD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("INBOXD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("INBOXD_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("INBOXD_DEFAULT_TENANT"); v != "" {
		envUsed = true
		cfg.Inbox.DefaultTenant = v
	}
	if v := os.Getenv("INBOXD_STREAM_BUFFER"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Inbox.StreamBuffer = n
		}
	}
	if v := os.Getenv("INBOXD_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.Retention.Enabled = true
		cfg.Retention.Cron = v
	}
	if c := os.Getenv("INBOXD_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("INBOXD_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	return envUsed
}

// Effective is the result of merging file, env and flags.
type Effective struct {
	Config  *Config
	Sources []string
}

// LoadEffective loads the config file (missing files fall back to an
// empty config), applies env overrides, then flags (flags win).
func LoadEffective(f Flags) Effective {
	var srcs []string
	cfg, err := Load(ResolveConfigPath(f))
	if err != nil {
		cfg = &Config{}
	} else {
		srcs = append(srcs, "config")
	}
	if LoadEnvOverrides(cfg) {
		srcs = append(srcs, "env")
	}
	if f.Set["addr"] {
		srcs = append(srcs, "flags")
		if h, p, err := net.SplitHostPort(f.Addr); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		}
	}
	if f.Set["db"] {
		cfg.Storage.DBPath = f.DB
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = f.DB
	}
	if len(srcs) == 0 {
		srcs = append(srcs, "defaults")
	}
	return Effective{Config: cfg, Sources: srcs}
}

package main

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authflow"
)

// Session store backends.
const (
	storeMemory = "memory"
	storeRedis  = "redis"

	// redisEmbedded starts an in-process miniredis instead of dialing.
	redisEmbedded = "embedded"
)

// cliConfig is the merged view of the config file and command flags.
type cliConfig struct {
	Server      string        `koanf:"server"`
	Timeout     time.Duration `koanf:"timeout"`
	Store       string        `koanf:"store"`
	RedisAddr   string        `koanf:"redis-addr"`
	RedisPrefix string        `koanf:"redis-prefix"`
	Profile     string        `koanf:"profile"`
	Cooldown    time.Duration `koanf:"cooldown"`
	LogFormat   string        `koanf:"log-format"`
	LogLevel    string        `koanf:"log-level"`
	Audit       bool          `koanf:"audit"`
}

func defaultCLIConfig() cliConfig {
	base := authflow.DefaultConfig()
	return cliConfig{
		Server:      "http://127.0.0.1:8080",
		Timeout:     base.Gateway.Timeout,
		Store:       storeMemory,
		RedisPrefix: base.Session.RedisPrefix,
		Profile:     base.Session.Profile,
		Cooldown:    base.OTP.ResendCooldown,
		LogFormat:   "text",
		LogLevel:    "warn",
	}
}

func registerClientFlags(fs *pflag.FlagSet) {
	def := defaultCLIConfig()
	fs.String("server", def.Server, "auth API base URL")
	fs.Duration("timeout", def.Timeout, "per-request timeout")
	fs.String("store", def.Store, "session store: memory or redis")
	fs.String("redis-addr", "", "redis address, or \"embedded\" for an in-process server")
	fs.String("redis-prefix", def.RedisPrefix, "redis key prefix")
	fs.String("profile", def.Profile, "session profile name")
	fs.Duration("cooldown", def.Cooldown, "wait between code resends")
	fs.String("log-format", def.LogFormat, "log format: json or text")
	fs.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	fs.Bool("audit", false, "write audit events to stderr as JSON lines")
}

// loadConfig layers the YAML file (when path is set) under the command flags.
// Flags only override the file when given explicitly.
func loadConfig(path string, flags *pflag.FlagSet) (cliConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cliConfig{}, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "load config file")
		}
	}
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return cliConfig{}, oops.Code("CONFIG_INVALID").Wrapf(err, "load flags")
	}

	cfg := defaultCLIConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return cliConfig{}, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	switch cfg.Store {
	case storeMemory:
	case storeRedis:
		if cfg.RedisAddr == "" {
			return cliConfig{}, oops.Code("CONFIG_INVALID").Errorf("store %q requires --redis-addr", cfg.Store)
		}
	default:
		return cliConfig{}, oops.Code("CONFIG_INVALID").Errorf("unknown store %q", cfg.Store)
	}
	if strings.TrimSpace(cfg.Server) == "" {
		return cliConfig{}, oops.Code("CONFIG_INVALID").Errorf("server must be set")
	}
	return cfg, nil
}

// clientConfig maps the CLI view onto the library config.
func (c cliConfig) clientConfig() authflow.Config {
	cfg := authflow.DefaultConfig()
	cfg.Gateway.BaseURL = c.Server
	cfg.Gateway.Timeout = c.Timeout
	cfg.Gateway.UserAgent = "authflow-cli/" + version
	cfg.Session.RedisPrefix = c.RedisPrefix
	cfg.Session.Profile = c.Profile
	cfg.OTP.ResendCooldown = c.Cooldown
	cfg.Audit.Enabled = c.Audit
	cfg.Metrics.Enabled = true
	return cfg
}

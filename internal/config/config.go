package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr              string        `yaml:"addr"`              // ":8080"
	StaticDir         string        `yaml:"staticDir"`         // serves the browser client when set
	AllowedOrigins    []string      `yaml:"allowedOrigins"`    // CORS and websocket origin patterns
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"` // "15s"
	IdleTimeout       time.Duration `yaml:"idleTimeout"`       // "60s"
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // "rps-party"
	Version   string `yaml:"version"`   // "0.1.0"
	AddSource bool   `yaml:"addSource"` // true/false
	Backend   string `yaml:"backend"`   // "std"|"zap"
	Debug     bool   `yaml:"debug"`
}

type Game struct {
	RoundTimeout time.Duration `yaml:"roundTimeout"` // "2m", 0 disables
	MinPlayers   int           `yaml:"minPlayers"`   // at least 2
	MaxRooms     int           `yaml:"maxRooms"`
	CodeAttempts int           `yaml:"codeAttempts"`
	OutboxSize   int           `yaml:"outboxSize"`
}

type WS struct {
	PingEvery    time.Duration `yaml:"pingEvery"` // "20s", 0 disables
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	ReadLimit    int64         `yaml:"readLimit"`  // bytes per frame
	RatePerSec   float64       `yaml:"ratePerSec"` // 0 disables
	Burst        int           `yaml:"burst"`
}

type History struct {
	DSN       string `yaml:"dsn"` // postgres DSN; empty keeps rounds in memory
	QueueSize int    `yaml:"queueSize"`
	Keep      int    `yaml:"keep"` // in-memory ledger size
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	Logging Logging `yaml:"logging"`
	Game    Game    `yaml:"game"`
	WS      WS      `yaml:"ws"`
	History History `yaml:"history"`
}

// Default is the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:              ":8080",
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Logging: Logging{Service: "rps-party"},
		Game: Game{
			RoundTimeout: 2 * time.Minute,
			MinPlayers:   2,
			CodeAttempts: 32,
			OutboxSize:   32,
		},
		WS: WS{
			PingEvery:    20 * time.Second,
			WriteTimeout: 3 * time.Second,
			ReadLimit:    4096,
			RatePerSec:   5,
			Burst:        10,
		},
		History: History{QueueSize: 256, Keep: 100},
	}
}

// Load reads CONFIG_PATH (default ./config/config.yaml) over Default. A
// missing file yields the defaults; env overrides are applied last. Keys
// present in the file win, so an explicit 0 turns off roundTimeout,
// pingEvery and ratePerSec.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = filepath.Join("config", "config.yaml")
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Logging.Env = v
	}
	if v := os.Getenv("LOG_LEVEL_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_LEVEL_DEBUG: %w", err)
		}
		c.Logging.Debug = debug
	}
	return nil
}

func (c *Config) validate() error {
	def := Default()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Logging.Service == "" {
		c.Logging.Service = def.Logging.Service
	}
	switch strings.ToLower(c.Logging.Backend) {
	case "", "std", "zap":
	default:
		return fmt.Errorf("logging.backend: unknown backend %q", c.Logging.Backend)
	}

	if c.Game.RoundTimeout < 0 {
		return fmt.Errorf("game.roundTimeout: must not be negative")
	}
	if c.Game.MinPlayers < 2 {
		return fmt.Errorf("game.minPlayers: must be at least 2, got %d", c.Game.MinPlayers)
	}
	if c.Game.MaxRooms < 0 {
		return fmt.Errorf("game.maxRooms: must not be negative")
	}
	if c.Game.CodeAttempts <= 0 {
		c.Game.CodeAttempts = def.Game.CodeAttempts
	}
	if c.Game.OutboxSize <= 0 {
		c.Game.OutboxSize = def.Game.OutboxSize
	}

	if c.WS.PingEvery < 0 {
		return fmt.Errorf("ws.pingEvery: must not be negative")
	}
	if c.WS.RatePerSec < 0 {
		return fmt.Errorf("ws.ratePerSec: must not be negative")
	}
	if c.WS.WriteTimeout <= 0 {
		c.WS.WriteTimeout = def.WS.WriteTimeout
	}
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = def.WS.ReadLimit
	}
	if c.WS.Burst <= 0 {
		c.WS.Burst = def.WS.Burst
	}

	if c.History.QueueSize <= 0 {
		c.History.QueueSize = def.History.QueueSize
	}
	if c.History.Keep <= 0 {
		c.History.Keep = def.History.Keep
	}
	return nil
}

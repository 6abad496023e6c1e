/*
config.go - Server configuration

PURPOSE:
  Collects everything cmd/server needs to start: listen port, database
  path, log mode, world seed, live tick interval, CORS origins and the
  starting guardrail policy.

PRECEDENCE (lowest to highest):
  1. Defaults
  2. YAML file (-config flag or AUTOPILOT_CONFIG)
  3. Environment (AUTOPILOT_PORT, AUTOPILOT_DB, AUTOPILOT_LOG_MODE,
     AUTOPILOT_SEED, AUTOPILOT_LIVE_INTERVAL, AUTOPILOT_CORS_ORIGINS)
  4. Command-line flags that were explicitly set

EXAMPLE FILE:

	port: 8080
	db: ./data/autopilot.db
	log_mode: prod
	seed: 42
	live_interval: 1200ms
	cors_origins: ["http://localhost:5173"]
	policy:
	  daily_action_spend_cap: "75000"
	  max_transfers_per_exec: 6
	  require_approval_over: "50000"
	  allow_auto_execute: false

SEE ALSO:
  - cmd/server/main.go: consumer
  - factory/policy.go: policy field validation
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/factory"
)

const (
	DefaultPort         = 8080
	DefaultDBPath       = "autopilot.db"
	DefaultLogMode      = "dev"
	DefaultSeed         = 42
	DefaultLiveInterval = 1200 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Port         int           `yaml:"port"`
	DBPath       string        `yaml:"db"`
	LogMode      string        `yaml:"log_mode"`
	Seed         uint32        `yaml:"seed"`
	LiveInterval time.Duration `yaml:"live_interval"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	Policy       PolicyConfig  `yaml:"policy"`
}

// PolicyConfig mirrors factory.PolicyJSON. Money is written as a string so
// YAML floats never touch it.
type PolicyConfig struct {
	DailyActionSpendCap *string `yaml:"daily_action_spend_cap"`
	MaxTransfersPerExec *int    `yaml:"max_transfers_per_exec"`
	RequireApprovalOver *string `yaml:"require_approval_over"`
	AllowAutoExecute    *bool   `yaml:"allow_auto_execute"`
}

func Default() Config {
	return Config{
		Port:         DefaultPort,
		DBPath:       DefaultDBPath,
		LogMode:      DefaultLogMode,
		Seed:         DefaultSeed,
		LiveInterval: DefaultLiveInterval,
	}
}

// Load builds a Config from args (without the program name) and the
// environment lookup getenv. Pass os.Getenv in production.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("autopilot", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	port := fs.Int("port", cfg.Port, "HTTP server port")
	dbPath := fs.String("db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	logMode := fs.String("log-mode", cfg.LogMode, "log mode: dev or prod")
	seed := fs.Uint("seed", uint(cfg.Seed), "world seed used when no snapshot exists")
	interval := fs.Duration("live-interval", cfg.LiveInterval, "live mode tick interval")
	origins := fs.String("cors-origins", "", "comma-separated allowed CORS origins")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	path := *configPath
	if path == "" {
		path = getenv("AUTOPILOT_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "db":
			cfg.DBPath = *dbPath
		case "log-mode":
			cfg.LogMode = *logMode
		case "seed":
			if *seed > uint(^uint32(0)) {
				flagErr = fmt.Errorf("%w: seed %d out of range", ErrInvalidConfig, *seed)
				return
			}
			cfg.Seed = uint32(*seed)
		case "live-interval":
			cfg.LiveInterval = *interval
		case "cors-origins":
			cfg.CORSOrigins = splitList(*origins)
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("AUTOPILOT_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: AUTOPILOT_PORT: %v", ErrInvalidConfig, err)
		}
		c.Port = n
	}
	if v := getenv("AUTOPILOT_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("AUTOPILOT_LOG_MODE"); v != "" {
		c.LogMode = v
	}
	if v := getenv("AUTOPILOT_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: AUTOPILOT_SEED: %v", ErrInvalidConfig, err)
		}
		c.Seed = uint32(n)
	}
	if v := getenv("AUTOPILOT_LIVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: AUTOPILOT_LIVE_INTERVAL: %v", ErrInvalidConfig, err)
		}
		c.LiveInterval = d
	}
	if v := getenv("AUTOPILOT_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

// Validate checks ranges and that the policy section parses.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db path is empty", ErrInvalidConfig)
	}
	if c.LiveInterval <= 0 {
		return fmt.Errorf("%w: live interval must be positive", ErrInvalidConfig)
	}
	if _, err := c.StartPolicy(); err != nil {
		return err
	}
	return nil
}

// StartPolicy returns the default policy overlaid with the configured fields.
func (c Config) StartPolicy() (autopilot.Policy, error) {
	pj := factory.PolicyJSON{
		MaxTransfersPerExec: c.Policy.MaxTransfersPerExec,
		AllowAutoExecute:    c.Policy.AllowAutoExecute,
	}
	var err error
	if pj.DailyActionSpendCap, err = parseMoney("daily_action_spend_cap", c.Policy.DailyActionSpendCap); err != nil {
		return autopilot.Policy{}, err
	}
	if pj.RequireApprovalOver, err = parseMoney("require_approval_over", c.Policy.RequireApprovalOver); err != nil {
		return autopilot.Policy{}, err
	}

	patch, err := factory.NewPolicyFactory().FromJSON(pj)
	if err != nil {
		return autopilot.Policy{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	pol := patch.Apply(autopilot.DefaultPolicy())
	if err := pol.Validate(); err != nil {
		return autopilot.Policy{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return pol, nil
}

func parseMoney(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*s))
	if err != nil {
		return nil, fmt.Errorf("%w: policy.%s: %v", ErrInvalidConfig, field, err)
	}
	return &d, nil
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

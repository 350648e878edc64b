// Package config loads the flowcheck configuration from flowcheck.yaml or
// flowcheck.toml, applies environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/bouvet-sqad/flowcheck/internal/logging"
)

// DefaultFiles are searched in the working directory when no path is given.
var DefaultFiles = []string{"flowcheck.yaml", "flowcheck.yml", "flowcheck.toml"}

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Targets are the base URLs of the systems under test.
type Targets struct {
	NotesAPI   string `yaml:"notes_api" toml:"notes_api" validate:"required,url"`
	Practice   string `yaml:"practice" toml:"practice" validate:"required,url"`
	CoffeeCart string `yaml:"coffee_cart" toml:"coffee_cart" validate:"required,url"`
}

// HTTP configures the API step executor.
type HTTP struct {
	Timeout           Duration `yaml:"timeout" toml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second" toml:"requests_per_second" validate:"gte=0"`
	Burst             int      `yaml:"burst" toml:"burst" validate:"gte=0"`
}

// UI configures the browser and the polling executor.
type UI struct {
	Enabled      bool     `yaml:"enabled" toml:"enabled"`
	Headless     bool     `yaml:"headless" toml:"headless"`
	Timeout      Duration `yaml:"timeout" toml:"timeout"`
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval"`
	MaxAttempts  int      `yaml:"max_attempts" toml:"max_attempts" validate:"gte=1"`
	Width        int      `yaml:"width" toml:"width" validate:"gte=0"`
	Height       int      `yaml:"height" toml:"height" validate:"gte=0"`
	ChromePath   string   `yaml:"chrome_path" toml:"chrome_path"`
}

// Runner configures scenario execution.
type Runner struct {
	StepTimeout Duration `yaml:"step_timeout" toml:"step_timeout"`
}

// Report configures result delivery beyond the console.
type Report struct {
	// WebhookURL receives a JSON summary of every scenario when set.
	WebhookURL    string `yaml:"webhook_url" toml:"webhook_url" validate:"omitempty,url"`
	WebhookSecret string `yaml:"webhook_secret" toml:"webhook_secret"`
}

// Config is the whole configuration file.
type Config struct {
	Targets Targets        `yaml:"targets" toml:"targets"`
	HTTP    HTTP           `yaml:"http" toml:"http"`
	UI      UI             `yaml:"ui" toml:"ui"`
	Runner  Runner         `yaml:"runner" toml:"runner"`
	Report  Report         `yaml:"report" toml:"report"`
	Logging logging.Config `yaml:"logging" toml:"logging"`
}

// Default returns the built-in configuration pointing at the public demo
// sites.
func Default() *Config {
	return &Config{
		Targets: Targets{
			NotesAPI:   "https://practice.expandtesting.com/notes/api",
			Practice:   "https://practice.expandtesting.com",
			CoffeeCart: "https://coffee-cart.app",
		},
		HTTP: HTTP{
			Timeout:           Duration{30 * time.Second},
			RequestsPerSecond: 5,
			Burst:             1,
		},
		UI: UI{
			Enabled:      true,
			Headless:     true,
			Timeout:      Duration{10 * time.Second},
			PollInterval: Duration{100 * time.Millisecond},
			MaxAttempts:  10,
			Width:        1280,
			Height:       720,
		},
		Runner: Runner{
			StepTimeout: Duration{30 * time.Second},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load reads path, or the first DefaultFiles entry present when path is
// empty. With no file at all the defaults are used. Environment overrides
// are applied before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, name := range DefaultFiles {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFrom(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom decodes a file over the defaults, picking the format from its
// extension.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies FLOWCHECK_* overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("FLOWCHECK_NOTES_API_URL"); ok && v != "" {
		c.Targets.NotesAPI = v
	}
	if v, ok := lookup("FLOWCHECK_PRACTICE_URL"); ok && v != "" {
		c.Targets.Practice = v
	}
	if v, ok := lookup("FLOWCHECK_COFFEE_CART_URL"); ok && v != "" {
		c.Targets.CoffeeCart = v
	}
	if v, ok := lookup("FLOWCHECK_HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FLOWCHECK_HEADLESS: %w", err)
		}
		c.UI.Headless = b
	}
	if v, ok := lookup("FLOWCHECK_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("FLOWCHECK_WEBHOOK_URL"); ok && v != "" {
		c.Report.WebhookURL = v
	}
	if v, ok := lookup("FLOWCHECK_WEBHOOK_SECRET"); ok && v != "" {
		c.Report.WebhookSecret = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

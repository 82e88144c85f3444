// Package config loads prism configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultFieldConfigPath is where the field definitions live unless
	// PRISM_FIELD_CONFIG points elsewhere.
	DefaultFieldConfigPath = "config/field_definitions.yaml"
	// DefaultLedgerPath is the processing-ledger database location.
	DefaultLedgerPath = "prism.db"
	// DefaultMinRequestInterval spaces successive model calls.
	DefaultMinRequestInterval = 150 * time.Millisecond
)

// ErrMissingConfig is returned when required settings are absent from the
// environment.
var ErrMissingConfig = errors.New("missing required configuration")

// Config holds every setting prism reads from the environment. Zero
// values mean "not set"; each surface validates the subset it needs.
type Config struct {
	AirtableAPIKey string
	AirtableBaseID string
	AirtableTable  string

	OpenAIAPIKey string
	OpenAIModel  string

	APISecret string

	FieldConfigPath string
	LedgerPath      string

	// MinRequestInterval spaces successive model calls; zero disables
	// the spacing entirely.
	MinRequestInterval time.Duration
}

// Load reads configuration from the environment, after loading a .env
// file when one exists. Missing optional values fall back to defaults;
// required values are checked by the per-surface Validate methods.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AirtableAPIKey:     os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID:     os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:      os.Getenv("AIRTABLE_TABLE_NAME"),
		OpenAIAPIKey:       firstEnv("OPENAI_API_KEY", "GPT_KEY"),
		OpenAIModel:        firstEnv("OPENAI_MODEL", "GPT_MODEL"),
		APISecret:          os.Getenv("PRISM_API_SECRET"),
		FieldConfigPath:    os.Getenv("PRISM_FIELD_CONFIG"),
		LedgerPath:         os.Getenv("PRISM_LEDGER_PATH"),
		MinRequestInterval: DefaultMinRequestInterval,
	}
	if cfg.FieldConfigPath == "" {
		cfg.FieldConfigPath = DefaultFieldConfigPath
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = DefaultLedgerPath
	}
	if v := os.Getenv("OPENAI_MIN_REQUEST_INTERVAL"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			cfg.MinRequestInterval = time.Duration(secs * float64(time.Second))
		}
	}
	return cfg
}

// firstEnv returns the first non-empty value among the named variables.
// Later names are legacy aliases kept for existing deployments.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

type requirement struct {
	name  string
	value string
}

func check(reqs ...requirement) error {
	var missing []string
	for _, r := range reqs {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
}

// ValidateAirtable checks the record-store settings.
func (c *Config) ValidateAirtable() error {
	return check(
		requirement{"AIRTABLE_API_KEY", c.AirtableAPIKey},
		requirement{"AIRTABLE_BASE_ID", c.AirtableBaseID},
		requirement{"AIRTABLE_TABLE_NAME", c.AirtableTable},
	)
}

// ValidateLLM checks the extraction-model settings.
func (c *Config) ValidateLLM() error {
	return check(
		requirement{"OPENAI_API_KEY", c.OpenAIAPIKey},
		requirement{"OPENAI_MODEL", c.OpenAIModel},
	)
}

// ValidateWebhook checks the settings the webhook server needs on top of
// the processing surfaces.
func (c *Config) ValidateWebhook() error {
	return check(requirement{"PRISM_API_SECRET", c.APISecret})
}

// HelpfulEnvMessage wraps a validation error with setup instructions.
func HelpfulEnvMessage(err error) string {
	return fmt.Sprintf(`%v

Tip: prism reads configuration from the environment and from a .env file
in the working directory:

  AIRTABLE_API_KEY=key...
  AIRTABLE_BASE_ID=app...
  AIRTABLE_TABLE_NAME=Papers
  OPENAI_API_KEY=sk-...
  OPENAI_MODEL=gpt-4o
  PRISM_API_SECRET=shared-secret`, err)
}

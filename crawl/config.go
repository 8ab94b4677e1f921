// CLAUDE:SUMMARY YAML-loadable crawl configuration with politeness, retry, and output settings.
package crawl

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fetch"
)

// FetchSettings are the politeness and retry knobs. Durations are plain
// millisecond integers so they round-trip through YAML cleanly.
type FetchSettings struct {
	TimeoutMs  int     `yaml:"timeout_ms"`
	MaxRetries int     `yaml:"max_retries"`
	DelayMinMs int     `yaml:"delay_min_ms"`
	DelayMaxMs int     `yaml:"delay_max_ms"`
	RateLimit  float64 `yaml:"rate_limit"`
}

// Config configures a crawl Service.
type Config struct {
	// MinYear is the acceptance threshold for numeric years. Default 2021.
	MinYear int `yaml:"min_year"`
	// MaxEmptyPages terminates a listing after this many consecutive
	// empty pages. Default 3.
	MaxEmptyPages int `yaml:"max_empty_pages"`
	// Workers bounds concurrent detail fetches per page. Default 1.
	Workers int `yaml:"workers"`
	// OutputDir receives the per-source CSV tables. Default "data_new".
	OutputDir string `yaml:"output_dir"`
	// RunLogPath, when set, enables the SQLite run ledger.
	RunLogPath string `yaml:"runlog_path"`

	Fetch FetchSettings `yaml:"fetch"`
}

func (c *Config) defaults() {
	if c.MinYear == 0 {
		c.MinYear = 2021
	}
	if c.MaxEmptyPages < 1 {
		c.MaxEmptyPages = 3
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.OutputDir == "" {
		c.OutputDir = "data_new"
	}
}

// fetchConfig maps the YAML settings onto the fetcher's own config,
// leaving zero values for the fetcher's defaults to fill.
func (c Config) fetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:    time.Duration(c.Fetch.TimeoutMs) * time.Millisecond,
		MaxRetries: c.Fetch.MaxRetries,
		DelayMin:   time.Duration(c.Fetch.DelayMinMs) * time.Millisecond,
		DelayMax:   time.Duration(c.Fetch.DelayMaxMs) * time.Millisecond,
		RateLimit:  c.Fetch.RateLimit,
	}
}

// LoadConfig reads a YAML config file. Unknown keys are rejected so a
// typo never silently falls back to a default.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("crawl: read config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("crawl: parse config %s: %w", path, err)
	}
	return cfg, nil
}

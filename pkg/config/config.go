// Package config holds examload settings loaded from YAML, the environment
// and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/japaniel/examload/pkg/report"
	"github.com/japaniel/examload/pkg/source"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "examload.yaml"

// Config is the full examload configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Database DatabaseConfig `yaml:"database"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SourceConfig configures the CSV fetch.
type SourceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ReportConfig configures the report queries.
type ReportConfig struct {
	TopErrors        int    `yaml:"top_errors"`
	LanguagePair     string `yaml:"language_pair"`
	ErrorType        string `yaml:"error_type"`
	Year             int    `yaml:"year"`
	LegacyFirstGroup bool   `yaml:"legacy_first_group"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			URL:     source.DefaultURL,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Path: "exam_Data.db"},
		Report: ReportConfig{
			TopErrors:    5,
			LanguagePair: "English-French",
			ErrorType:    "Spelling",
			Year:         2017,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// only tolerated for DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err = decode(f, cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromYAML decodes r on top of the defaults.
func LoadFromYAML(r io.Reader) (Config, error) {
	return decode(r, Default())
}

func decode(r io.Reader, base Config) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return base, nil
}

// ApplyEnv overrides fields from EXAMLOAD_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("EXAMLOAD_URL")); v != "" {
		c.Source.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("EXAMLOAD_DB")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("EXAMLOAD_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("EXAMLOAD_TIMEOUT: %w", err)
		}
		c.Source.Timeout = d
	}
	if v := strings.TrimSpace(os.Getenv("EXAMLOAD_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the fields the pipeline cannot run without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Source.URL) == "" {
		errs = append(errs, errors.New("source.url is required"))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Source.Timeout < 0 {
		errs = append(errs, errors.New("source.timeout must not be negative"))
	}
	if c.Report.TopErrors < 0 || c.Report.TopErrors > report.DefaultTopErrors {
		errs = append(errs, fmt.Errorf("report.top_errors must be between 0 and %d", report.DefaultTopErrors))
	}
	return errors.Join(errs...)
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formrules/pkg/engine"
	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/schema"
)

// config mirrors the optional YAML file passed with -config. Flags set on the
// command line override file values.
type config struct {
	LogLevel    string     `yaml:"log_level"`
	Format      string     `yaml:"format"`
	Sanitize    bool       `yaml:"sanitize"`
	PruneHidden bool       `yaml:"prune_hidden"`
	Today       string     `yaml:"today"`
	MaxBytes    string     `yaml:"max_bytes"`
	MaxDepth    int        `yaml:"max_depth"`
	Workers     int        `yaml:"workers"`
	HTTP        httpConfig `yaml:"http"`
}

type httpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Timeout string `yaml:"timeout"`
}

func defaultConfig() config {
	return config{
		LogLevel: "warn",
		Format:   "text",
		Workers:  4,
		HTTP:     httpConfig{Timeout: "15s"},
	}
}

// loadConfig reads path into cfg. A missing path leaves cfg untouched.
func loadConfig(path string, cfg *config) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// bindFlags registers the flags shared by every subcommand. The returned
// function loads the config file and applies explicitly set flags on top.
func bindFlags(fs *flag.FlagSet) func() (config, error) {
	var (
		configPath  = fs.String("config", "", "YAML config file")
		logLevel    = fs.String("log-level", "", "log level (debug, info, warn, error)")
		format      = fs.String("format", "", "output format (text, json)")
		sanitize    = fs.Bool("sanitize", false, "strip markup from labels and messages")
		pruneHidden = fs.Bool("prune-hidden", false, "drop answers of hidden fields before resolving dependents")
		today       = fs.String("today", "", "fix today() to a date (YYYY-MM-DD)")
		maxBytes    = fs.String("max-bytes", "", "reject documents larger than this (e.g. 512KiB)")
		allowHTTP   = fs.Bool("http", false, "allow http(s) sources")
	)

	return func() (config, error) {
		cfg := defaultConfig()
		if err := loadConfig(*configPath, &cfg); err != nil {
			return config{}, err
		}
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		if set["log-level"] {
			cfg.LogLevel = *logLevel
		}
		if set["format"] {
			cfg.Format = *format
		}
		if set["sanitize"] {
			cfg.Sanitize = *sanitize
		}
		if set["prune-hidden"] {
			cfg.PruneHidden = *pruneHidden
		}
		if set["today"] {
			cfg.Today = *today
		}
		if set["max-bytes"] {
			cfg.MaxBytes = *maxBytes
		}
		if set["http"] {
			cfg.HTTP.Enabled = *allowHTTP
		}
		switch cfg.Format {
		case "text", "json":
		default:
			return config{}, fmt.Errorf("config: unsupported format %q", cfg.Format)
		}
		return cfg, nil
	}
}

func (c config) logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("config: log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func (c config) clock() (func() time.Time, error) {
	if strings.TrimSpace(c.Today) == "" {
		return time.Now, nil
	}
	fixed, ok := expr.ParseDate(c.Today)
	if !ok {
		return nil, fmt.Errorf("config: today %q is not a date", c.Today)
	}
	return func() time.Time { return fixed }, nil
}

func (c config) loaderOptions() ([]schema.LoaderOption, error) {
	var out []schema.LoaderOption
	if strings.TrimSpace(c.MaxBytes) != "" {
		limit, err := humanize.ParseBytes(c.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("config: max bytes: %w", err)
		}
		out = append(out, schema.WithMaxBytes(int64(limit)))
	}
	if c.HTTP.Enabled {
		timeout, err := time.ParseDuration(c.HTTP.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config: http timeout: %w", err)
		}
		out = append(out, schema.WithHTTPFallback(timeout))
	}
	return out, nil
}

// engineOptions turns the config into engine options.
func (c config) engineOptions(logger zerolog.Logger) ([]engine.Option, error) {
	clock, err := c.clock()
	if err != nil {
		return nil, err
	}
	loaderOptions, err := c.loaderOptions()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithLogger(logger),
		engine.WithClock(clock),
		engine.WithLoaderOptions(loaderOptions...),
		engine.WithSanitize(c.Sanitize),
		engine.WithHiddenAnswerPruning(c.PruneHidden),
		engine.WithMaxDepth(c.MaxDepth),
	}, nil
}

var errUsage = errors.New("usage")

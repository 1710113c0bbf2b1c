// Package config loads the settings shared by the command line tool and the
// desktop app. A file only needs the keys it changes; everything else keeps
// the value from Default.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/stitch"
)

// EnvPrefix marks the environment variables read by EnvOverlay.
const EnvPrefix = "BOBBIN_"

var ErrInvalid = errors.New("config: invalid")

// Config is the root of a configuration file.
type Config struct {
	Routing route.Options `json:"routing"`
	Export  Export        `json:"export"`
	Machine route.Machine `json:"machine"`
	Log     Log           `json:"log"`
}

// Export controls file output.
type Export struct {
	StitchLengthMm float64  `json:"stitchLengthMm"`
	Formats        []string `json:"formats"`
	OutputDir      string   `json:"outputDir"`
}

// Log selects the logger built by Logger.
type Log struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Routing: route.DefaultOptions(),
		Export: Export{
			StitchLengthMm: stitch.DefaultStitchLength,
			Formats:        []string{"dst", "pes"},
			OutputDir:      ".",
		},
		Machine: route.DefaultMachine(),
		Log:     Log{Level: "info"},
	}
}

// Load reads a JSON file over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw JSON over Default, rejecting unknown keys, and
// validates the result.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvOverlay applies BOBBIN_* variables from environ to c. Unknown keys are
// ignored; a malformed value is an error.
//
//	BOBBIN_STITCH_LENGTH  export.stitchLengthMm
//	BOBBIN_FORMATS        export.formats, comma separated
//	BOBBIN_OUTPUT_DIR     export.outputDir
//	BOBBIN_POLICY         routing.policy
//	BOBBIN_SEQUENCE_MODE  routing.sequenceMode
//	BOBBIN_LOG_LEVEL      log.level
func (c Config) EnvOverlay(environ []string) (Config, error) {
	out := c
	out.Export.Formats = append([]string(nil), c.Export.Formats...)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimPrefix(key, EnvPrefix) {
		case "STITCH_LENGTH":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
			}
			out.Export.StitchLengthMm = v
		case "FORMATS":
			out.Export.Formats = splitComma(val)
		case "OUTPUT_DIR":
			out.Export.OutputDir = val
		case "POLICY":
			out.Routing.Policy = route.Policy(val)
		case "SEQUENCE_MODE":
			out.Routing.SequenceMode = route.SequenceMode(val)
		case "LOG_LEVEL":
			out.Log.Level = val
		}
	}
	return out, out.Validate()
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	if err := c.Routing.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := c.Machine.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Export.StitchLengthMm <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("export.stitchLengthMm %.2f must be positive", c.Export.StitchLengthMm))
	}
	for _, f := range c.Export.Formats {
		if _, err := format.Lookup(f); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("export.formats: %w", err))
		}
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, errs)
	}
	return nil
}

// Logger builds the zap logger described by the log section. verbose forces
// debug level with the development encoder.
func (c Config) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development || verbose {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if verbose {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zc.Level = lvl
	return zc.Build()
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

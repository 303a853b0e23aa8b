// Package config loads chemident settings from an optional YAML file and
// CHEMIDENT_* environment variables. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"chemident/internal/blob"
	"chemident/internal/index"
	"chemident/internal/source"
)

// Config is the full application configuration.
type Config struct {
	Source  source.Config `yaml:"source"`
	Blob    blob.Config   `yaml:"blob"`
	Index   IndexConfig   `yaml:"index"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig holds index persistence settings.
type IndexConfig struct {
	Prefix string `yaml:"prefix"`
}

// MetricsConfig selects the metrics recorder.
type MetricsConfig struct {
	// Driver is prometheus, expvar or none.
	Driver string `yaml:"driver"`
	// Textfile, when set, receives the Prometheus text exposition after a build.
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:  source.Config{Driver: source.DriverSQLite},
		Blob:    blob.Config{Driver: blob.DriverFilesystem},
		Index:   IndexConfig{Prefix: index.DefaultPrefix},
		Metrics: MetricsConfig{Driver: "none"},
	}
}

// Load reads path (skipped when empty) over the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	src := source.ConfigFromEnv()
	setIf(&c.Source.Driver, src.Driver)
	setIf(&c.Source.DSN, src.DSN)

	b := blob.ConfigFromEnv()
	setIf(&c.Blob.Driver, b.Driver)
	setIf(&c.Blob.FSRoot, b.FSRoot)
	setIf(&c.Blob.BadgerPath, b.BadgerPath)
	setIf(&c.Blob.SQLDSN, b.SQLDSN)
	setIf(&c.Blob.S3.Bucket, b.S3.Bucket)
	setIf(&c.Blob.S3.Region, b.S3.Region)
	setIf(&c.Blob.S3.Endpoint, b.S3.Endpoint)
	if _, ok := os.LookupEnv("CHEMIDENT_BLOB_S3_PATH_STYLE"); ok {
		c.Blob.S3.PathStyle = b.S3.PathStyle
	}

	setIf(&c.Index.Prefix, os.Getenv("CHEMIDENT_INDEX_PREFIX"))
	setIf(&c.Metrics.Driver, os.Getenv("CHEMIDENT_METRICS_DRIVER"))
	setIf(&c.Metrics.Textfile, os.Getenv("CHEMIDENT_METRICS_TEXTFILE"))
}

func setIf[T ~string](dst *T, v T) {
	if v != "" {
		*dst = v
	}
}

// Package config loads recast settings from defaults, an optional YAML
// file, an optional .env file, RECAST_* environment variables and
// command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"recast/pkg/archive"
	"recast/pkg/codec"
	"recast/pkg/core"
	"recast/pkg/logger"
)

// Config is the full recast configuration.
type Config struct {
	Threads int    `yaml:"threads" mapstructure:"threads" validate:"gte=0,lte=4096"`
	From    string `yaml:"from" mapstructure:"from" validate:"required"`
	To      string `yaml:"to" mapstructure:"to" validate:"required"`
	Schema  string `yaml:"schema" mapstructure:"schema"`
	// ValidateRecords checks every decoded record against Schema.
	ValidateRecords bool `yaml:"validate" mapstructure:"validate"`

	QueueFactor      int           `yaml:"queue_factor" mapstructure:"queue_factor" validate:"gte=0,lte=1024"`
	ProgressEvery    int           `yaml:"progress_every" mapstructure:"progress_every"`
	FlushEvery       int           `yaml:"flush_every" mapstructure:"flush_every"`
	PollInterval     time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	ProgressInterval time.Duration `yaml:"progress_interval" mapstructure:"progress_interval"`
	PreserveOrder    bool          `yaml:"preserve_order" mapstructure:"preserve_order"`
	ReorderWindow    int           `yaml:"reorder_window" mapstructure:"reorder_window" validate:"gte=0"`

	Compression string `yaml:"compression" mapstructure:"compression"`
	Level       string `yaml:"level" mapstructure:"level"`
	Manifest    string `yaml:"manifest" mapstructure:"manifest"`
	Strict      bool   `yaml:"strict" mapstructure:"strict"`

	Schemas []codec.Schema `yaml:"schemas" mapstructure:"schemas" validate:"dive"`
	Log     logger.Config  `yaml:"log" mapstructure:"log"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.From == "" {
		c.From = codec.FormatXML.String()
	}
	if c.To == "" {
		c.To = codec.FormatJSON.String()
	}
	if c.Schema == "" {
		c.Schema = codec.GenericSchema
	}
	if c.QueueFactor <= 0 {
		c.QueueFactor = core.DefaultQueueFactor
	}
	if c.ProgressEvery == 0 {
		c.ProgressEvery = core.DefaultProgressEvery
	}
	if c.FlushEvery == 0 {
		c.FlushEvery = core.DefaultFlushEvery
	}
	if c.PollInterval <= 0 {
		c.PollInterval = core.DefaultPollInterval
	}
	if c.ReorderWindow <= 0 {
		c.ReorderWindow = c.Threads * c.QueueFactor * 4
	}
	c.Log.ApplyDefaults()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that every name resolves.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fieldErrors(err)
	}
	if _, err := codec.ParseFormat(c.From); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if _, err := codec.ParseFormat(c.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval must not be negative (got: %s)", c.ProgressInterval)
	}
	if _, err := archive.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("compression: %w", err)
	}
	if _, err := archive.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	reg, err := c.Registry()
	if err != nil {
		return fmt.Errorf("schemas: %w", err)
	}
	if _, err := reg.Lookup(c.Schema); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return c.Log.Validate()
}

func fieldErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := e.Namespace() + ": failed " + e.Tag()
		if e.Param() != "" {
			msg += "=" + e.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Registry returns the built-in schemas plus the configured ones.
func (c *Config) Registry() (*codec.Registry, error) {
	return codec.NewRegistry(c.Schemas...)
}

// Translator builds the record translator the configuration names.
func (c *Config) Translator() (*codec.Translator, error) {
	from, err := codec.ParseFormat(c.From)
	if err != nil {
		return nil, err
	}
	to, err := codec.ParseFormat(c.To)
	if err != nil {
		return nil, err
	}
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	schema, err := reg.Lookup(c.Schema)
	if err != nil {
		return nil, err
	}
	return codec.NewTranslator(from, to, schema, c.ValidateRecords)
}

// Options builds the pipeline options.
func (c *Config) Options() (core.Options, error) {
	comp, err := archive.ParseCompression(c.Compression)
	if err != nil {
		return core.Options{}, err
	}
	level, err := archive.ParseLevel(c.Level)
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Workers:          c.Threads,
		QueueFactor:      c.QueueFactor,
		ProgressEvery:    c.ProgressEvery,
		FlushEvery:       c.FlushEvery,
		PollInterval:     c.PollInterval,
		ProgressInterval: c.ProgressInterval,
		PreserveOrder:    c.PreserveOrder,
		ReorderWindow:    c.ReorderWindow,
		Compression:      comp,
		Level:            level,
		Manifest:         c.Manifest,
	}, nil
}

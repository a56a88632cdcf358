// Package lib provides archive translation and single-record conversion
// for programs embedding recast.
// This package re-exports the functionality from the pkg packages so
// callers need a single import.
package lib

import (
	"context"

	"recast/pkg/codec"
	"recast/pkg/config"
	"recast/pkg/core"
	"recast/pkg/logger"
)

// Config re-exported from config
type Config = config.Config

// Summary and FailureInfo re-exported from core
type (
	Summary     = core.Summary
	FailureInfo = core.FailureInfo
	FatalError  = core.FatalError
)

// Format and Schema re-exported from codec
type (
	Format = codec.Format
	Schema = codec.Schema
)

// Record formats
const (
	FormatXML  = codec.FormatXML
	FormatJSON = codec.FormatJSON
	FormatYAML = codec.FormatYAML
	FormatCBOR = codec.FormatCBOR
)

// Codec errors
var (
	ErrUnsupportedFormat = codec.ErrUnsupportedFormat
	ErrMalformed         = codec.ErrMalformed
	ErrSchema            = codec.ErrSchema
)

// ParseFormat is a wrapper around codec.ParseFormat
func ParseFormat(name string) (Format, error) {
	return codec.ParseFormat(name)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig loads a configuration the way the recast command does,
// reading the YAML file at path when it is not empty.
func LoadConfig(path string) (*Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: path})
}

// Translate converts the archive at in into out. A nil cfg means
// DefaultConfig.
func Translate(in, out string, cfg *Config) (Summary, error) {
	return TranslateContext(context.Background(), in, out, cfg)
}

// TranslateContext is Translate with a context; cancelling it aborts the
// run and leaves out unsealed.
func TranslateContext(ctx context.Context, in, out string, cfg *Config) (Summary, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	tr, err := cfg.Translator()
	if err != nil {
		return Summary{}, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return Summary{}, err
	}
	log := logger.New(&cfg.Log, nil)
	return core.New(core.FromTranslator(tr), opts, log).Translate(ctx, in, out)
}

// ConvertRecord converts one record without schema checks.
func ConvertRecord(data []byte, from, to Format) ([]byte, error) {
	tr, err := codec.NewTranslator(from, to, nil, false)
	if err != nil {
		return nil, err
	}
	return tr.Convert(data)
}

// IsFatal is a wrapper around core.IsFatal
func IsFatal(err error) bool {
	return core.IsFatal(err)
}

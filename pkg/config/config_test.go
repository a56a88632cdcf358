package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"recast/pkg/archive"
	"recast/pkg/codec"
	"recast/pkg/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECAST_CONFIG", "")
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.From != "xml" || cfg.To != "json" || cfg.Schema != codec.GenericSchema {
		t.Errorf("unexpected formats %+v", cfg)
	}
	if cfg.Threads < 1 || cfg.QueueFactor != 4 || cfg.FlushEvery != 10000 || cfg.ProgressEvery != 10000 {
		t.Errorf("unexpected pipeline defaults %+v", cfg)
	}
	if cfg.PollInterval != time.Second || cfg.ProgressInterval != 0 {
		t.Errorf("unexpected intervals poll=%s progress=%s", cfg.PollInterval, cfg.ProgressInterval)
	}
	if cfg.ReorderWindow != cfg.Threads*cfg.QueueFactor*4 {
		t.Errorf("reorder window = %d", cfg.ReorderWindow)
	}
	if cfg.Log.Level != "info" || cfg.Log.Output != "stderr" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeFile(t, "recast.yml", `
threads: 3
from: json
to: yaml
queue_factor: 2
poll_interval: 250ms
compression: zstd
schemas:
  - name: invoice
    root: invoice
    required: [total]
schema: invoice
validate: true
log:
  level: debug
`)

	cfg, err := Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Threads != 3 || cfg.From != "json" || cfg.To != "yaml" || cfg.QueueFactor != 2 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.Compression != "zstd" || cfg.Log.Level != "debug" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.Schemas) != 1 || cfg.Schemas[0].Required[0] != "total" || !cfg.ValidateRecords {
		t.Errorf("schemas not loaded: %+v", cfg.Schemas)
	}

	t.Setenv("RECAST_THREADS", "5")
	t.Setenv("RECAST_LOG_LEVEL", "warn")
	cfg, err = Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Threads != 5 || cfg.Log.Level != "warn" {
		t.Errorf("env did not override file: threads=%d level=%s", cfg.Threads, cfg.Log.Level)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"-t", "9", "--preserve-order", "--config", path}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err = LoadFlags(fs)
	if err != nil {
		t.Fatalf("LoadFlags: %v", err)
	}
	if cfg.Threads != 9 || !cfg.PreserveOrder {
		t.Errorf("flags did not override env: %+v", cfg)
	}
	if cfg.From != "json" {
		t.Errorf("unset flag overrode file: from=%s", cfg.From)
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Cleanup(func() { os.Unsetenv("RECAST_QUEUE_FACTOR") })
	env := writeFile(t, "test.env", "RECAST_QUEUE_FACTOR=7\n")

	cfg, err := Load(LoadOptions{EnvFile: env})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QueueFactor != 7 {
		t.Errorf("queue_factor = %d, want 7", cfg.QueueFactor)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(LoadOptions{ConfigFile: filepath.Join(dir, "nope.yml")}); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "nope.env")}); err == nil {
		t.Error("expected error for missing env file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"unknown source format", func(c *Config) { c.From = "toml" }, "from"},
		{"unknown target format", func(c *Config) { c.To = "csv" }, "to"},
		{"unknown compression", func(c *Config) { c.Compression = "brotli" }, "compression"},
		{"unknown level", func(c *Config) { c.Level = "max" }, "level"},
		{"unknown schema", func(c *Config) { c.Schema = "invoice" }, "schema"},
		{"unnamed custom schema", func(c *Config) { c.Schemas = []codec.Schema{{Root: "x"}} }, "Name"},
		{"duplicate schema", func(c *Config) { c.Schemas = []codec.Schema{{Name: "generic"}} }, "schemas"},
		{"too many threads", func(c *Config) { c.Threads = 100000 }, "Threads"},
		{"negative interval", func(c *Config) { c.ProgressInterval = -time.Second }, "progress_interval"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestTranslatorAndOptions(t *testing.T) {
	cfg := &Config{
		From:            "yaml",
		To:              "cbor",
		Threads:         2,
		Compression:     "lz4",
		Level:           "best",
		PreserveOrder:   true,
		ValidateRecords: true,
		Schemas:         []codec.Schema{{Name: "doc", Root: "doc"}},
		Schema:          "doc",
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tr, err := cfg.Translator()
	if err != nil {
		t.Fatalf("Translator: %v", err)
	}
	if tr.From() != codec.FormatYAML || tr.To() != codec.FormatCBOR {
		t.Errorf("unexpected formats %s -> %s", tr.From(), tr.To())
	}
	if _, err := tr.Convert([]byte("other: 1\n")); err == nil {
		t.Error("schema not enforced")
	}
	if got := tr.RenameEntry("a.yml"); got != "a.cbor" {
		t.Errorf("RenameEntry = %q", got)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	want := core.Options{
		Workers:       2,
		QueueFactor:   4,
		ProgressEvery: 10000,
		FlushEvery:    10000,
		PollInterval:  time.Second,
		PreserveOrder: true,
		ReorderWindow: 32,
		Compression:   archive.CompressionLZ4,
		Level:         archive.LevelBest,
	}
	if opts != want {
		t.Errorf("Options = %+v, want %+v", opts, want)
	}
}

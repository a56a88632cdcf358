package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable recast reads.
const EnvPrefix = "RECAST"

// configSearchPaths are tried in order when no config file is named.
var configSearchPaths = []string{
	"./recast.yml",
	"./recast.yaml",
	"./config/recast.yml",
}

// LoadOptions names the optional inputs of Load.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file; it must exist.
	ConfigFile string
	// EnvFile is an explicit .env file; it must exist. Without it ./.env
	// is loaded when present.
	EnvFile string
	// Flags, when set, overrides every other source for flags the user
	// changed.
	Flags *pflag.FlagSet
}

// Load resolves the configuration, applies defaults and validates it.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile == "" {
		configFile = findFile(configSearchPaths)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	// Variables already in the environment win over the .env file.
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	} else if exists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load env file .env: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so environment variables can reach it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("threads", 0)
	v.SetDefault("from", "xml")
	v.SetDefault("to", "json")
	v.SetDefault("schema", "generic")
	v.SetDefault("validate", false)
	v.SetDefault("queue_factor", 4)
	v.SetDefault("progress_every", 10000)
	v.SetDefault("flush_every", 10000)
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("progress_interval", "0s")
	v.SetDefault("preserve_order", false)
	v.SetDefault("reorder_window", 0)
	v.SetDefault("compression", "")
	v.SetDefault("level", "default")
	v.SetDefault("manifest", "")
	v.SetDefault("strict", false)
	v.SetDefault("schemas", []map[string]interface{}{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.no_color", false)
	v.SetDefault("log.caller", false)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func findFile(paths []string) string {
	for _, p := range paths {
		if exists(p) {
			return p
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

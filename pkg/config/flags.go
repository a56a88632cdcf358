package config

import "github.com/spf13/pflag"

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"threads":           "threads",
	"from":              "from",
	"to":                "to",
	"schema":            "schema",
	"validate":          "validate",
	"queue-factor":      "queue_factor",
	"progress-interval": "progress_interval",
	"preserve-order":    "preserve_order",
	"reorder-window":    "reorder_window",
	"compression":       "compression",
	"level":             "level",
	"manifest":          "manifest",
	"strict":            "strict",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

// RegisterFlags adds the pipeline flags to fs. Flag defaults are zero
// values; Load supplies the real defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP("threads", "t", 0, "number of worker threads (default: number of CPUs)")
	fs.String("from", "", "input record format: xml, json, yaml, cbor (default: xml)")
	fs.String("to", "", "output record format: xml, json, yaml, cbor (default: json)")
	fs.String("schema", "", "schema to check records against (default: generic)")
	fs.Bool("validate", false, "check every record against the schema")
	fs.Int("queue-factor", 0, "result queue capacity per worker (default: 4)")
	fs.Duration("progress-interval", 0, "log throughput at this interval (0 disables)")
	fs.Bool("preserve-order", false, "write entries in input order")
	fs.Int("reorder-window", 0, "entries held for ordering (default: threads*queue-factor*4)")
	fs.String("compression", "", "output compression: gzip, zstd, lz4, none (default: from extension)")
	fs.String("level", "", "compression level: fastest, default, better, best")
	fs.String("manifest", "", "write a digest manifest to this path")
	fs.Bool("strict", false, "exit non-zero when any entry fails")
	fs.String("log-level", "", "log level: trace, debug, info, warn, error")
	fs.String("log-format", "", "log format: console, json")
	fs.String("config", "", "path to a YAML config file")
	fs.String("env-file", "", "path to a .env file")
}

// LoadFlags loads the configuration using the --config and --env-file
// values of a parsed flag set.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	configFile, _ := fs.GetString("config")
	envFile, _ := fs.GetString("env-file")
	return Load(LoadOptions{ConfigFile: configFile, EnvFile: envFile, Flags: fs})
}

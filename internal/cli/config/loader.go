package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type (
	configKey struct{}
	loggerKey struct{}
)

// flagKeys maps flag names onto config keys. Flags not listed here are
// command options and never reach the config.
var flagKeys = map[string]string{
	"listen":              "listen",
	"root-path":           "root_path",
	"runs-root":           "runs.roots",
	"runs-prefix":         "runs.prefix",
	"max-limit":           "query.max_limit",
	"interchange":         "query.run_interchange",
	"extension-directory": "spatial.extension_directory",
	"offline":             "spatial.offline",
	"log-level":           "log_level",
	"log-format":          "log_format",
	"verbose":             "verbose",
}

func defaults() map[string]any {
	return map[string]any{
		"listen":                      DefaultListen,
		"root_path":                   "",
		"runs.roots":                  []string{},
		"runs.prefix":                 DefaultRunsPrefix,
		"query.auto_activate":         true,
		"query.run_interchange":       false,
		"query.max_limit":             0,
		"interchange.start_year":      0,
		"spatial.extension_directory": "",
		"spatial.offline":             false,
		"mcp.unsafe_patterns": []map[string]any{
			{"prefix": "ash/", "name_prefix": "H", "suffix": ".parquet"},
		},
		"log_level":  DefaultLogLevel,
		"log_format": DefaultLogFormat,
		"verbose":    false,
	}
}

// findConfigFile returns the explicit path, or the first default file name
// present in dir.
func findConfigFile(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// envKey maps WEPPQ_QUERY__MAX_LIMIT to query.max_limit.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// envValue splits list-valued variables.
func envValue(key, value string) any {
	if key == "runs.roots" {
		var roots []string
		for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == os.PathListSeparator }) {
			if part = strings.TrimSpace(part); part != "" {
				roots = append(roots, part)
			}
		}
		return roots
	}
	return value
}

// Load loads configuration from defaults, the config file, WEPPQ_ variables
// and flags. Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	cwd, _ := os.Getwd()
	used := findConfigFile(cfgFile, cwd)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = envKey(key)
		return key, envValue(key, value)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	cfg.RootPath = strings.TrimRight(cfg.RootPath, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored in ctx, or the defaults.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg, err := Load("", nil)
	if err != nil {
		return &Config{Listen: DefaultListen, Runs: RunsConfig{Prefix: DefaultRunsPrefix}, Query: QueryConfig{AutoActivate: true}}
	}
	return cfg
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

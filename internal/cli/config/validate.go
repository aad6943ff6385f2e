package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json; got %q", c.LogFormat)
	}
	if c.Query.MaxLimit < 0 {
		return fmt.Errorf("query.max_limit must not be negative")
	}
	if c.Query.Threads < 0 {
		return fmt.Errorf("query.threads must not be negative")
	}
	if c.Interchange.StartYear < 0 {
		return fmt.Errorf("interchange.start_year must not be negative")
	}
	for i, p := range c.MCP.UnsafePatterns {
		if p.Prefix == "" && p.NamePrefix == "" && p.Suffix == "" {
			return fmt.Errorf("mcp.unsafe_patterns[%d] is empty", i)
		}
	}
	return nil
}

// NewLogger builds the process logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(c.LogLevel)]}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

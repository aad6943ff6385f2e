// Package config provides configuration management for the wepp-query CLI.
//
// Values are layered from built-in defaults, an optional wepp-query.yaml
// file, WEPPQ_ environment variables and explicitly set flags, in that
// order of increasing precedence. Token verification settings are not part
// of this configuration; they are read from the WEPP_MCP_* environment by
// the auth package.
package config

// Default configuration values.
const (
	DefaultListen     = ":8080"
	DefaultRunsPrefix = "/"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	ConfigFileName    = "wepp-query.yaml"
	ConfigFileNameAlt = "wepp-query.yml"
	EnvPrefix         = "WEPPQ_"
)

// Config holds all CLI configuration options.
type Config struct {
	Listen      string            `koanf:"listen"`
	RootPath    string            `koanf:"root_path"`
	Runs        RunsConfig        `koanf:"runs"`
	Query       QueryConfig       `koanf:"query"`
	Spatial     SpatialConfig     `koanf:"spatial"`
	MCP         MCPConfig         `koanf:"mcp"`
	Interchange InterchangeConfig `koanf:"interchange"`
	LogLevel    string            `koanf:"log_level"`
	LogFormat   string            `koanf:"log_format"`
	Verbose     bool              `koanf:"verbose"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// RunsConfig controls how run ids map to directories.
type RunsConfig struct {
	// Roots are parent directories searched for <id[:2]>/<id> and <id>.
	Roots []string `koanf:"roots"`
	// Prefix is joined with relative run ids when no root matches.
	Prefix string `koanf:"prefix"`
}

// QueryConfig controls query execution.
type QueryConfig struct {
	AutoActivate   bool   `koanf:"auto_activate"`
	RunInterchange bool   `koanf:"run_interchange"`
	MaxLimit       int    `koanf:"max_limit"`
	MemoryLimit    string `koanf:"memory_limit"`
	Threads        int    `koanf:"threads"`
}

// SpatialConfig controls the spatial extension.
type SpatialConfig struct {
	ExtensionDirectory string `koanf:"extension_directory"`
	Offline            bool   `koanf:"offline"`
}

// MCPConfig holds MCP API options that are not secrets.
type MCPConfig struct {
	UnsafePatterns []UnsafePattern `koanf:"unsafe_patterns"`
}

// UnsafePattern hides catalog entries from MCP listings.
type UnsafePattern struct {
	Prefix     string `koanf:"prefix"`
	NamePrefix string `koanf:"name_prefix"`
	Suffix     string `koanf:"suffix"`
}

// InterchangeConfig names the external interchange generator.
type InterchangeConfig struct {
	// Command is run as Command[0] Command[1:]... <output_dir> [--start-year N].
	Command []string `koanf:"command"`
	// StartYear is the first simulated year passed to Command; zero omits it.
	StartYear int `koanf:"start_year"`
}

// StartYearFunc reports the configured start year for every run, or nil
// when none is configured.
func (c InterchangeConfig) StartYearFunc() func(base string) (int, bool) {
	if c.StartYear == 0 {
		return nil
	}
	year := c.StartYear
	return func(string) (int, bool) { return year, true }
}

// AdapterParams returns the engine session params for the query executor.
func (c *Config) AdapterParams() map[string]any {
	params := map[string]any{}
	if c.Spatial.ExtensionDirectory != "" {
		params["extension_directory"] = c.Spatial.ExtensionDirectory
	}
	if c.Spatial.Offline {
		params["offline"] = true
	}
	if c.Query.MemoryLimit != "" {
		params["memory_limit"] = c.Query.MemoryLimit
	}
	if c.Query.Threads > 0 {
		params["threads"] = c.Query.Threads
	}
	return params
}

// Package auth verifies bearer tokens for the MCP API and carries the
// resulting Principal through request contexts.
package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment variables read by LoadConfig.
const (
	EnvSecret         = "WEPP_MCP_JWT_SECRET"
	EnvAlgorithms     = "WEPP_MCP_JWT_ALGORITHMS"
	EnvAudience       = "WEPP_MCP_JWT_AUDIENCE"
	EnvIssuer         = "WEPP_MCP_JWT_ISSUER"
	EnvLeeway         = "WEPP_MCP_JWT_LEEWAY"
	EnvScopeSeparator = "WEPP_MCP_JWT_SCOPE_SEPARATOR"
	EnvAllowedScopes  = "WEPP_MCP_JWT_ALLOWED_SCOPES"
	EnvServiceVersion = "WEPP_MCP_SERVICE_VERSION"
	EnvRelease        = "WEPP_RELEASE"
)

// DefaultAlgorithm is used when no algorithms are configured.
const DefaultAlgorithm = "HS256"

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Config is the token verification configuration.
type Config struct {
	Secret         []byte
	Algorithms     []string
	Audience       string
	Issuer         string
	Leeway         time.Duration
	ScopeSeparator string
	AllowedScopes  []string
	ServiceVersion string
}

// Enabled reports whether a secret is configured. The MCP API is only
// mounted when it is.
func (c *Config) Enabled() bool {
	return c != nil && len(c.Secret) > 0
}

func (c *Config) algorithms() []string {
	if len(c.Algorithms) == 0 {
		return []string{DefaultAlgorithm}
	}
	return c.Algorithms
}

func (c *Config) separator() string {
	if c.ScopeSeparator == "" {
		return " "
	}
	return c.ScopeSeparator
}

// ConfigFromEnv builds a Config from getenv.
func ConfigFromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Secret:         []byte(getenv(EnvSecret)),
		Audience:       strings.TrimSpace(getenv(EnvAudience)),
		Issuer:         strings.TrimSpace(getenv(EnvIssuer)),
		ScopeSeparator: getenv(EnvScopeSeparator),
		AllowedScopes:  splitList(getenv(EnvAllowedScopes)),
		ServiceVersion: strings.TrimSpace(getenv(EnvServiceVersion)),
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = strings.TrimSpace(getenv(EnvRelease))
	}
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}

	for _, alg := range splitList(getenv(EnvAlgorithms)) {
		alg = strings.ToUpper(alg)
		if !supportedAlgorithms[alg] {
			return nil, fmt.Errorf("%s: unsupported algorithm %q", EnvAlgorithms, alg)
		}
		cfg.Algorithms = append(cfg.Algorithms, alg)
	}
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []string{DefaultAlgorithm}
	}

	if raw := strings.TrimSpace(getenv(EnvLeeway)); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("%s: invalid leeway %q", EnvLeeway, raw)
		}
		cfg.Leeway = time.Duration(secs * float64(time.Second))
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	configMu  sync.Mutex
	loaded    bool
	cachedCfg *Config
	cachedErr error
)

// LoadConfig reads the process environment once and returns the memoized
// result on later calls.
func LoadConfig() (*Config, error) {
	configMu.Lock()
	defer configMu.Unlock()
	if !loaded {
		cachedCfg, cachedErr = ConfigFromEnv(os.Getenv)
		loaded = true
	}
	return cachedCfg, cachedErr
}

// ResetConfig drops the memoized configuration so the next LoadConfig
// re-reads the environment.
func ResetConfig() {
	configMu.Lock()
	defer configMu.Unlock()
	loaded = false
	cachedCfg, cachedErr = nil, nil
}

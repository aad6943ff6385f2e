package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/weppcloud/queryengine/pkg/core"
)

// Principal is the identity carried by a verified token.
type Principal struct {
	Subject string   `json:"subject"`
	Scopes  []string `json:"scopes"`
	// RunIDs is nil when the token has no runs claim.
	RunIDs  []string       `json:"run_ids"`
	TokenID string         `json:"token_id,omitempty"`
	Issuer  string         `json:"issuer,omitempty"`
	Claims  map[string]any `json:"claims,omitempty"`
}

// HasScope reports whether the principal was granted scope.
func (p *Principal) HasScope(scope string) bool {
	return p != nil && slices.Contains(p.Scopes, scope)
}

// CanAccessRun reports whether runID is in the principal's run allowlist.
// A principal without a runs claim may access no runs.
func (p *Principal) CanAccessRun(runID string) bool {
	return p != nil && slices.Contains(p.RunIDs, runID)
}

// RequireScope fails with a forbidden error unless p holds scope.
func RequireScope(p *Principal, scope string) error {
	if p.HasScope(scope) {
		return nil
	}
	return core.NewError(core.KindForbidden, nil, "missing required scope %s", scope)
}

// RequireAnyScope fails with a forbidden error unless p holds one of scopes.
func RequireAnyScope(p *Principal, scopes ...string) error {
	for _, s := range scopes {
		if p.HasScope(s) {
			return nil
		}
	}
	return core.NewError(core.KindForbidden, nil, "missing required scope: one of %s", strings.Join(scopes, ", "))
}

// Verifier checks HMAC-signed bearer tokens.
type Verifier struct {
	cfg *Config
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg *Config) *Verifier {
	return &Verifier{cfg: cfg}
}

func unauthorized(format string, args ...any) error {
	return core.NewError(core.KindUnauthorized, nil, format, args...)
}

// Verify validates raw and builds its Principal.
func (v *Verifier) Verify(raw string) (*Principal, error) {
	if !v.cfg.Enabled() {
		return nil, unauthorized("token verification is not configured")
	}
	if strings.Count(raw, ".") != 2 {
		return nil, unauthorized("malformed token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.cfg.algorithms()),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithIssuedAt(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unsupported signing method %s", t.Method.Alg())
		}
		return v.cfg.Secret, nil
	})
	if err != nil {
		return nil, unauthorized("invalid token: %s", describe(err))
	}
	return v.principal(claims)
}

// describe maps jwt validation errors to short client-facing reasons.
func describe(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature mismatch"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unsupported algorithm"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "token not yet valid"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "token issued in the future"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer mismatch"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "audience mismatch"
	case errors.Is(err, jwt.ErrInvalidType):
		return "invalid claim type"
	}
	return "verification failed"
}

func (v *Verifier) principal(claims jwt.MapClaims) (*Principal, error) {
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return nil, unauthorized("token has no subject")
	}

	scopes, err := parseScopes(claims["scope"], v.cfg.separator())
	if err != nil {
		return nil, err
	}
	if len(v.cfg.AllowedScopes) > 0 {
		for _, s := range scopes {
			if !slices.Contains(v.cfg.AllowedScopes, s) {
				return nil, unauthorized("scope %s is not allowed", s)
			}
		}
	}

	runs, err := parseRuns(claims["runs"])
	if err != nil {
		return nil, err
	}
	jti, _ := claims["jti"].(string)
	iss, _ := claims["iss"].(string)
	return &Principal{
		Subject: sub,
		Scopes:  scopes,
		RunIDs:  runs,
		TokenID: jti,
		Issuer:  iss,
		Claims:  map[string]any(claims),
	}, nil
}

func parseScopes(claim any, sep string) ([]string, error) {
	var raw []string
	switch x := claim.(type) {
	case nil:
	case string:
		raw = strings.Split(x, sep)
	case []any:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, unauthorized("scope claim must contain strings")
			}
			raw = append(raw, s)
		}
	default:
		return nil, unauthorized("scope claim must be a string or a list")
	}
	return normalizeSet(raw), nil
}

func parseRuns(claim any) ([]string, error) {
	switch x := claim.(type) {
	case nil:
		return nil, nil
	case string:
		return normalizeSet([]string{x}), nil
	case []any:
		raw := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, unauthorized("runs claim must contain strings")
			}
			raw = append(raw, s)
		}
		return normalizeSet(raw), nil
	}
	return nil, unauthorized("runs claim must be a string or a list")
}

// normalizeSet trims, drops empties and returns the sorted distinct values.
func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Claims describes a token minted by Sign. ID defaults to a random UUID.
type Claims struct {
	ID       string
	Subject  string
	Scopes   []string
	Runs     []string
	Audience string
	Issuer   string
	TTL      time.Duration
}

// Sign mints a token for c with the first configured algorithm.
func (cfg *Config) Sign(c Claims, now time.Time) (string, error) {
	if !cfg.Enabled() {
		return "", fmt.Errorf("%s is not set", EnvSecret)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	claims := jwt.MapClaims{
		"sub": c.Subject,
		"iat": now.Unix(),
		"jti": firstNonEmpty(c.ID, uuid.NewString()),
	}
	if len(c.Scopes) > 0 {
		claims["scope"] = strings.Join(c.Scopes, cfg.separator())
	}
	if len(c.Runs) > 0 {
		claims["runs"] = c.Runs
	}
	if c.TTL > 0 {
		claims["exp"] = now.Add(c.TTL).Unix()
	}
	if aud := firstNonEmpty(c.Audience, cfg.Audience); aud != "" {
		claims["aud"] = aud
	}
	if iss := firstNonEmpty(c.Issuer, cfg.Issuer); iss != "" {
		claims["iss"] = iss
	}
	alg := cfg.algorithms()[0]
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return "", fmt.Errorf("unsupported algorithm %s", alg)
	}
	return jwt.NewWithClaims(method, claims).SignedString(cfg.Secret)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

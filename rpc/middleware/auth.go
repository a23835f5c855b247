package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Scopes carried by bearer tokens.
const (
	ScopeAdmin  = "admin"
	ScopeOracle = "oracle"
	ScopeUser   = "user"
)

// CallerHeader names the caller when authentication is disabled.
const CallerHeader = "X-Lootpool-Caller"

type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ScopeClaim string
	ClockSkew  time.Duration
}

type contextKey string

const contextKeyPrincipal contextKey = "lootpool.principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	Address [20]byte
	Scopes  []string
}

// HasScope reports whether the principal was granted scope.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// PrincipalFromContext returns the principal attached by the authenticator.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(*Principal)
	return p, ok && p != nil
}

// Authenticator validates HS256 bearer tokens whose subject is the caller's
// address. With an empty secret it trusts the CallerHeader instead.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger,
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		parser: jwt.NewParser(opts...),
	}
}

// Enabled reports whether bearer tokens are enforced.
func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

func (a *Authenticator) Middleware(requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, status, err := a.authenticate(r)
			if err != nil {
				a.logger.Debug("auth: request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				writeJSONError(w, status, err.Error())
				return
			}
			if a.Enabled() && !hasScopes(principal.Scopes, requiredScopes) {
				writeJSONError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (*Principal, int, error) {
	if !a.Enabled() {
		raw := strings.TrimSpace(r.Header.Get(CallerHeader))
		if raw == "" {
			return nil, http.StatusUnauthorized, fmt.Errorf("missing %s header", CallerHeader)
		}
		addr, err := parseSubject(raw)
		if err != nil {
			return nil, http.StatusUnauthorized, err
		}
		return &Principal{Address: addr}, 0, nil
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return nil, http.StatusUnauthorized, errors.New("missing bearer token")
	}
	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}); err != nil {
		return nil, http.StatusUnauthorized, errors.New("invalid token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, http.StatusUnauthorized, errors.New("token subject required")
	}
	addr, err := parseSubject(sub)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}
	return &Principal{Address: addr, Scopes: extractScopes(claims, a.cfg.ScopeClaim)}, 0, nil
}

// IssueToken signs a bearer token for subject. It backs the CLI and tests.
func IssueToken(cfg AuthConfig, subject [20]byte, scopes []string, ttl time.Duration) (string, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return "", errors.New("auth: hmac secret required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": common.Address(subject).Hex(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	claim := cfg.ScopeClaim
	if claim == "" {
		claim = "scope"
	}
	if len(scopes) > 0 {
		claims[claim] = strings.Join(scopes, " ")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseSubject(raw string) ([20]byte, error) {
	if !common.IsHexAddress(raw) {
		return [20]byte{}, fmt.Errorf("subject %q is not an address", raw)
	}
	return common.HexToAddress(raw), nil
}

func extractScopes(claims jwt.MapClaims, scopeClaim string) []string {
	raw, ok := claims[scopeClaim]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasScopes(scopes []string, required []string) bool {
	set := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		set[scope] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}

// auth authenticates users of the service with bearer tokens.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apierr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/api/types/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoKeyFound   = errors.New("no key found")
	ErrNoUsername   = errors.New("no username in token")
)

// DefaultUsernameClaim is the claim where the username is in.
const DefaultUsernameClaim = "preferred_username"

const usernameKey = "store.auth.username"

// Verifier verifies RS256 tokens with public keys.
type Verifier struct {
	// kid -> key
	keys map[string]*rsa.PublicKey

	usernameClaim string
}

type Option func(*Verifier) *Verifier

// WithUsernameClaim sets the claim where the username is in.
func WithUsernameClaim(claim string) Option {
	return func(v *Verifier) *Verifier {
		if claim != "" {
			v.usernameClaim = claim
		}
		return v
	}
}

// WithKey adds a key with kid.
func WithKey(kid string, key *rsa.PublicKey) Option {
	return func(v *Verifier) *Verifier {
		v.keys[kid] = key
		return v
	}
}

func NewVerifier(options ...Option) *Verifier {
	v := &Verifier{
		keys:          map[string]*rsa.PublicKey{},
		usernameClaim: DefaultUsernameClaim,
	}
	for _, opt := range options {
		v = opt(v)
	}
	return v
}

// LoadPublicKeys reads PEM encoded RSA public keys.
//
// kid of each key is its filename without extension.
func LoadPublicKeys(paths ...string) ([]Option, error) {
	opts := []Option{}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		k, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		base := filepath.Base(p)
		opts = append(opts, WithKey(strings.TrimSuffix(base, filepath.Ext(base)), k))
	}
	return opts, nil
}

// Verify verifies token and returns the username in it.
//
// When the token has "kid" header, the key of the kid is used.
// Otherwise, all keys are tried.
//
// # Returns
//
// - string: username
//
// - error: ErrInvalidToken, ErrNoKeyFound or ErrNoUsername (may be joined with jwt errors).
func (v *Verifier) Verify(token string) (string, error) {
	if len(v.keys) == 0 {
		return "", ErrNoKeyFound
	}

	var tok *jwt.Token
	var err error
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	for kid, key := range v.keys {
		tok, err = parser.Parse(token, func(t *jwt.Token) (any, error) {
			if k, ok := t.Header["kid"].(string); ok && k != kid {
				return nil, ErrNoKeyFound
			}
			return key, nil
		})
		if err == nil {
			break
		}
		// try next key only when this key does not fit.
		if !errors.Is(err, ErrNoKeyFound) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims type: %T", ErrInvalidToken, tok.Claims)
	}
	name, ok := claims[v.usernameClaim].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s", ErrNoUsername, v.usernameClaim)
	}
	return name, nil
}

// Middleware requires "Authorization: Bearer <token>" and sets the username to echo.Context.
func Middleware(v *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || token == "" {
				return apierr.Unauthorized("bearer token is required", nil)
			}
			name, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				c.Logger().Infof("authentication failed: %s", err)
				return apierr.Unauthorized("invalid token", err)
			}
			c.Set(usernameKey, name)
			return next(c)
		}
	}
}

// TrustedHeader takes the username from a request header, set by a reverse proxy in front.
//
// Requests without the header are rejected with 401.
func TrustedHeader(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			name := strings.TrimSpace(c.Request().Header.Get(header))
			if name == "" {
				return apierr.Unauthorized(
					"authenticated user is required", fmt.Errorf("%w: header %s", ErrNoUsername, header),
				)
			}
			c.Set(usernameKey, name)
			return next(c)
		}
	}
}

// Username returns the authenticated username. Empty for anonymous.
func Username(c echo.Context) string {
	name, _ := c.Get(usernameKey).(string)
	return name
}

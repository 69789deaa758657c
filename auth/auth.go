package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidConfig is wrapped by every construction-time configuration failure
// across the client packages.
var ErrInvalidConfig = errors.New("invalid configuration")

// Authorization header schemes.
const (
	SchemeJWT    = "JWT"
	SchemeBearer = "Bearer"
)

// DefaultJWTExpiresIn is the lifetime given to signed JWTs unless overridden.
const DefaultJWTExpiresIn = 30 * time.Second

// Attacher adds an Authorization header to an outbound request,
// overwriting any existing value.
type Attacher interface {
	Attach(req *http.Request) error
}

// AttacherFunc adapts a function to the Attacher interface.
type AttacherFunc func(req *http.Request) error

// Attach calls f(req).
func (f AttacherFunc) Attach(req *http.Request) error {
	return f(req)
}

// BearerAuth attaches an opaque access token as "Bearer <token>".
type BearerAuth struct {
	token string
}

// NewBearerAuth returns an attacher for token. The token must not be empty.
func NewBearerAuth(token string) (*BearerAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: bearer token is required", ErrInvalidConfig)
	}
	return &BearerAuth{token: token}, nil
}

// Attach implements Attacher.
func (a *BearerAuth) Attach(req *http.Request) error {
	SetBearer(req, a.token)
	return nil
}

// SuppliedJWTAuth attaches a caller-provided JWT as "JWT <token>" without re-signing it.
type SuppliedJWTAuth struct {
	token string
}

// NewSuppliedJWTAuth returns an attacher for token. The token must not be empty.
func NewSuppliedJWTAuth(token string) (*SuppliedJWTAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: jwt is required", ErrInvalidConfig)
	}
	return &SuppliedJWTAuth{token: token}, nil
}

// Attach implements Attacher.
func (a *SuppliedJWTAuth) Attach(req *http.Request) error {
	req.Header.Set("Authorization", SchemeJWT+" "+a.token)
	return nil
}

// SetBearer sets "Authorization: Bearer <token>" on req.
func SetBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", SchemeBearer+" "+token)
}

// JWTAuth signs a fresh HS256 token for every request and attaches it as "JWT <token>".
//
// Deprecated: services are moving to asymmetric JWTs issued by the
// authorization server. Prefer the OAuth2 client-credentials session.
type JWTAuth struct {
	username        string
	fullName        string
	email           string
	signingKey      []byte
	issuer          string
	expiresIn       time.Duration
	trackingContext map[string]any
	now             func() time.Time
}

// JWTOption configures a JWTAuth.
type JWTOption func(*JWTAuth)

// WithFullName adds the full_name claim.
func WithFullName(name string) JWTOption {
	return func(a *JWTAuth) { a.fullName = name }
}

// WithEmail adds the email claim.
func WithEmail(email string) JWTOption {
	return func(a *JWTAuth) { a.email = email }
}

// WithIssuer adds the iss claim.
func WithIssuer(issuer string) JWTOption {
	return func(a *JWTAuth) { a.issuer = issuer }
}

// WithExpiresIn sets the token lifetime used for the exp claim.
// Zero omits exp entirely.
func WithExpiresIn(d time.Duration) JWTOption {
	return func(a *JWTAuth) { a.expiresIn = d }
}

// WithTrackingContext adds the tracking_context claim.
func WithTrackingContext(tc map[string]any) JWTOption {
	return func(a *JWTAuth) { a.trackingContext = tc }
}

// WithClock overrides the time source for iat and exp.
func WithClock(now func() time.Time) JWTOption {
	return func(a *JWTAuth) {
		if now != nil {
			a.now = now
		}
	}
}

// NewJWTAuth returns a signing attacher. The signing key must not be empty.
func NewJWTAuth(username, signingKey string, opts ...JWTOption) (*JWTAuth, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("%w: jwt signing key is required", ErrInvalidConfig)
	}

	a := &JWTAuth{
		username:   username,
		signingKey: []byte(signingKey),
		expiresIn:  DefaultJWTExpiresIn,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Claims builds the claim set for a token issued at now. Optional claims
// are omitted when their source value is empty.
func (a *JWTAuth) Claims(now time.Time) jwt.MapClaims {
	claims := jwt.MapClaims{
		"username": a.username,
		"iat":      now.Unix(),
	}
	if a.fullName != "" {
		claims["full_name"] = a.fullName
	}
	if a.email != "" {
		claims["email"] = a.email
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	if a.expiresIn > 0 {
		claims["exp"] = now.Add(a.expiresIn).Unix()
	}
	if a.trackingContext != nil {
		claims["tracking_context"] = a.trackingContext
	}
	return claims
}

// Token signs the claims for the current time.
func (a *JWTAuth) Token() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, a.Claims(a.now()))
	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign jwt: %w", err)
	}
	return signed, nil
}

// Attach implements Attacher.
func (a *JWTAuth) Attach(req *http.Request) error {
	token, err := a.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", SchemeJWT+" "+token)
	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/reginor/backend-reginor/internal/common"
)

const (
	defaultAccessTTL = 15 * time.Minute
	defaultIssuer    = "reginor"
	defaultAudience  = "reginor-frontend"
)

// Accounts abstracts the user store for the service.
type Accounts interface {
	CreateUser(ctx context.Context, org, email, name, passwordHash, role string) (User, error)
	GetByEmail(ctx context.Context, org, email string) (User, string, error)
	GetByID(ctx context.Context, org, id string) (User, error)
}

// Claims extracted from a validated access token.
type Claims struct {
	UserID string
	Org    string
	Role   string
}

// LoginResult bundles the issued token with its owner.
type LoginResult struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken"`
	AccessExpiry time.Time `json:"accessExpiresAt"`
}

// Service coordinates registration, login and token handling.
type Service struct {
	store     Accounts
	secret    []byte
	accessTTL time.Duration
	issuer    string
	audience  string
	algorithm jwa.SignatureAlgorithm
	now       func() time.Time
}

// Config configures the auth service.
type Config struct {
	Store          Accounts
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
}

// NewService constructs a Service with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	s := &Service{
		store:     cfg.Store,
		secret:    []byte(secret),
		accessTTL: cfg.AccessTokenTTL,
		issuer:    strings.TrimSpace(cfg.Issuer),
		audience:  strings.TrimSpace(cfg.Audience),
		algorithm: jwa.HS256,
		now:       time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.issuer == "" {
		s.issuer = defaultIssuer
	}
	if s.audience == "" {
		s.audience = defaultAudience
	}
	return s, nil
}

// WithNow lets tests override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, org, email, name, password string) (User, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" {
		return User{}, common.ErrBadRequest("email is required", nil)
	}
	if len(password) < 8 {
		return User{}, common.ErrBadRequest("password must be at least 8 characters", nil)
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	u, err := s.store.CreateUser(ctx, org, normalized, strings.TrimSpace(name), hash, "customer")
	if errors.Is(err, ErrEmailTaken) {
		return User{}, common.ErrConflict("email is already registered", err)
	}
	return u, err
}

// Login verifies credentials and issues an access token. Lookup and
// comparison failures collapse into one error so responses never disclose
// which accounts exist.
func (s *Service) Login(ctx context.Context, org, email, password string) (LoginResult, error) {
	invalid := common.ErrUnauthorized("invalid email or password")
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || password == "" {
		return LoginResult{}, invalid
	}
	u, hash, err := s.store.GetByEmail(ctx, org, normalized)
	if err != nil {
		return LoginResult{}, invalid
	}
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil || !ok {
		return LoginResult{}, invalid
	}
	token, expiry, err := s.signAccessToken(org, u)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: sign access token: %w", err)
	}
	return LoginResult{User: u, AccessToken: token, AccessExpiry: expiry}, nil
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, org, userID string) (User, error) {
	u, err := s.store.GetByID(ctx, org, userID)
	if errors.Is(err, ErrNotFound) {
		return User{}, common.ErrUnauthorized("unauthorized")
	}
	return u, err
}

func (s *Service) signAccessToken(org string, u User) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.accessTTL)
	tok, err := jwt.NewBuilder().
		Subject(u.ID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(expiry).
		Claim("org", org).
		Claim("role", u.Role).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(s.algorithm, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiry, nil
}

// ParseAccessToken validates a token and returns its claims. The signing
// algorithm is checked against the expected one before verification, so a
// token downgraded to "none" never reaches the validator.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	invalid := common.ErrUnauthorized("invalid token")
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.ErrUnauthorized("missing token")
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil || algorithm != s.algorithm {
		return Claims{}, invalid
	}
	parsed, err := jwt.ParseString(trimmed,
		jwt.WithKey(s.algorithm, s.secret),
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		return Claims{}, invalid
	}
	claims := Claims{UserID: parsed.Subject()}
	if org, ok := parsed.Get("org"); ok {
		claims.Org, _ = org.(string)
	}
	if role, ok := parsed.Get("role"); ok {
		claims.Role, _ = role.(string)
	}
	if claims.UserID == "" {
		return Claims{}, invalid
	}
	return claims, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: unacceptable token algorithm")
	}
	return alg, nil
}

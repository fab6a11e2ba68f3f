package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

var (
	ErrMissingSigningSecret = errors.New("token issuer: signing secret required")
	ErrMissingIssuer        = errors.New("token issuer: issuer required")
	ErrInvalidTokenTTL      = errors.New("token issuer: ttl must be positive")
	ErrMissingSubject       = errors.New("token issuer: subject required")
	ErrMissingToken         = errors.New("token issuer: bearer token required")
	ErrInvalidToken         = errors.New("token issuer: invalid token")
	ErrExpiredToken         = errors.New("token issuer: token expired")
)

// TokenIssuerConfig configures the HS256 operator token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer mints and validates the bearer tokens that guard write endpoints.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewTokenIssuer validates the configuration and constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	if cfg.TokenTTL <= 0 {
		return nil, ErrInvalidTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           cfg.TokenTTL,
		clock:         clock,
	}, nil
}

// Issue produces a signed token for subject and its expiry instant.
func (i *TokenIssuer) Issue(subject string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl)
	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, issuer and expiry and returns the token subject.
func (i *TokenIssuer) ValidateToken(tokenString string) (string, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.signingSecret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// ValidateRequest extracts the bearer token from the Authorization header and validates it.
func (i *TokenIssuer) ValidateRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingToken
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingToken
	}
	return i.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
}

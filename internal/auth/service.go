// Package auth verifies bearer tokens and resolves the acting cashier.
// Token issuance lives in the identity service; this side only validates.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-kasir/internal/common"
)

const (
	defaultIssuer    = "backend-kasir"
	defaultAudience  = "kasir-pos"
	defaultClockSkew = 30 * time.Second
)

// Service parses and validates access tokens.
type Service struct {
	secret    []byte
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	now       func() time.Time
}

// Config configures the auth service.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewService builds a token verifier over a shared HS256 secret.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		secret: []byte(secret),
		signer: jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
		now: now,
	}, nil
}

// IssueAccessToken mints a token for the given subject. Used by the seeder
// and by tests; production tokens come from the identity service.
func (s *Service) IssueAccessToken(subject string, ttl time.Duration) (string, error) {
	if s == nil {
		return "", errors.New("auth: service not configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("auth: subject is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := s.now()
	tok, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.validator.Issuer).
		Audience([]string{s.validator.Audience}).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), nil
}

// ParseAccessToken validates an access token and returns the subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	if s == nil {
		return "", errors.New("auth: service not configured")
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.UnauthorizedError("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.UnauthorizedError("invalid token", err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.UnauthorizedError("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", common.UnauthorizedError("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.UnauthorizedError("invalid token", err)
	}
	return parsed.Subject(), nil
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
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if algorithm != "" && algorithm != alg {
			return "", errors.New("auth: token signatures disagree on algorithm")
		}
		algorithm = alg
	}
	return algorithm, nil
}

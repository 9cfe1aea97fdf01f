package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mehmetcc/cmsgate/internal/config"
	"github.com/mehmetcc/cmsgate/internal/session"
	"go.uber.org/zap"
)

// Codec turns session payloads into signed tokens and back. Implementations
// are safe for concurrent use.
type Codec interface {
	Encode(payload session.Payload, ttl time.Duration) (string, error)
	Decode(tokenString string) (*session.Session, error)
}

type Option func(*codec)

// WithClock replaces the wall clock used for iat/exp stamping and checks.
func WithClock(now func() time.Time) Option {
	return func(c *codec) {
		c.now = now
	}
}

type codec struct {
	logger     *zap.Logger
	key        []byte
	issuer     string
	audience   string
	keyID      string
	signingAlg jwt.SigningMethod
	parser     *jwt.Parser
	now        func() time.Time
}

func NewCodec(cfg *config.SessionConfig, logger *zap.Logger, opts ...Option) (Codec, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrEmptyKey
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	c := &codec{
		logger:     logger,
		key:        key,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		keyID:      cfg.KeyID,
		signingAlg: jwt.SigningMethodHS256,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signingAlg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(c.audience))
	}
	c.parser = jwt.NewParser(parserOpts...)

	return c, nil
}

func (c *codec) Encode(payload session.Payload, ttl time.Duration) (string, error) {
	if ttl < time.Second {
		return "", ErrInvalidTTL
	}
	issuedAt := c.now().UTC()
	claims := &Claims{
		UID:          payload.ID,
		Email:        payload.Email,
		Role:         payload.Role,
		Caps:         payload.Capabilities,
		SessionToken: payload.SessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(payload.ID, 10),
			Issuer:    c.issuer,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			NotBefore: jwt.NewNumericDate(issuedAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	jwtToken := jwt.NewWithClaims(c.signingAlg, claims)
	if c.keyID != "" {
		jwtToken.Header["kid"] = c.keyID
	}
	signed, err := jwtToken.SignedString(c.key)
	if err != nil {
		c.logger.Error("failed to sign session token", zap.Error(err))
		return "", err
	}
	return signed, nil
}

// Decode verifies tokenString and returns the session it carries. The error
// is always one of ErrMalformed, ErrBadSignature or ErrExpired.
func (c *codec) Decode(tokenString string) (*session.Session, error) {
	if tokenString == "" {
		return nil, ErrMalformed
	}

	var claims Claims
	_, err := c.parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && c.badSignatureSegment(tokenString) {
			return nil, ErrBadSignature
		}
		return nil, classify(err)
	}

	if claims.IssuedAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, ErrMalformed
	}

	return &session.Session{
		Payload: session.Payload{
			Email:        claims.Email,
			Role:         claims.Role,
			ID:           claims.UID,
			SessionToken: claims.SessionToken,
			Capabilities: claims.Caps,
		},
		Caps:      session.NewCapabilitySet(claims.Caps...),
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// badSignatureSegment reports whether header and claims decode but the
// signature segment does not, e.g. non-zero trailing bits in its last char.
func (c *codec) badSignatureSegment(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	for _, seg := range parts[:2] {
		if _, err := c.parser.DecodeSegment(seg); err != nil {
			return false
		}
	}
	_, err := c.parser.DecodeSegment(parts[2])
	return err != nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

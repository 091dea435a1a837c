package token

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-identity-service/internal/model"
)

// HS256 needs a key of at least the hash output size.
const minSecretBytes = 32

type Config struct {
	Issuer         string
	Audience       string
	Secret         string
	AccessTokenTTL time.Duration
}

// Codec signs and validates the self-contained access tokens. The refresh
// token is opaque and never passes through here.
type Codec struct {
	issuer    string
	audience  string
	secret    []byte
	accessTTL time.Duration
	parser    *jwt.Parser
}

func NewCodec(cfg Config) (*Codec, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("token issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("token audience is required")
	}
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", minSecretBytes, len(cfg.Secret))
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("access token lifetime must be positive")
	}

	return &Codec{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		secret:    []byte(cfg.Secret),
		accessTTL: cfg.AccessTokenTTL,
		// Signature and structure are checked by the parser; registered
		// claims are checked by decode so expiry can be exempted on refresh.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// EncodeAccess issues a signed access token for the user. Every call embeds a
// fresh jti, so two tokens for the same user are never byte-identical.
func (c *Codec) EncodeAccess(userID string, email string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"jti":   uuid.NewString(),
		"iss":   c.issuer,
		"aud":   c.audience,
		"iat":   now.Unix(),
		"exp":   now.Add(c.accessTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// Decode validates signature, issuer, audience and expiry.
func (c *Codec) Decode(tokenString string) (*model.AccessClaims, error) {
	return c.decode(tokenString, true)
}

// DecodeExpired validates signature, issuer and audience but accepts an
// elapsed expiry. Used only by the refresh flow, which exchanges a
// just-expired access token together with a refresh token.
func (c *Codec) DecodeExpired(tokenString string) (*model.AccessClaims, error) {
	return c.decode(tokenString, false)
}

func (c *Codec) decode(tokenString string, checkExpiry bool) (*model.AccessClaims, error) {
	parsed, err := c.parser.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrInvalidToken
		}
		return c.secret, nil
	})
	// All rejection causes collapse into one outcome so callers cannot be
	// used as an oracle for why a token was refused.
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidToken
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrInvalidToken
	}

	issuer, err := claimsMap.GetIssuer()
	if err != nil || issuer != c.issuer {
		return nil, model.ErrInvalidToken
	}

	audience, err := claimsMap.GetAudience()
	if err != nil || !slices.Contains(audience, c.audience) {
		return nil, model.ErrInvalidToken
	}

	expiresAt, err := claimsMap.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, model.ErrInvalidToken
	}
	if checkExpiry && time.Now().After(expiresAt.Time) {
		return nil, model.ErrInvalidToken
	}

	subject, err := claimsMap.GetSubject()
	if err != nil || subject == "" {
		return nil, model.ErrInvalidToken
	}

	email, _ := claimsMap["email"].(string)
	tokenID, _ := claimsMap["jti"].(string)

	return &model.AccessClaims{
		Subject:   subject,
		Email:     email,
		TokenID:   tokenID,
		ExpiresAt: expiresAt.Time,
	}, nil
}

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Sentinel authentication errors, one per rejection class.
var (
	ErrMalformed   = errors.New("malformed bearer token")
	ErrBadSignature = errors.New("bad token signature")
	ErrExpired     = errors.New("token expired")
	ErrRevoked     = errors.New("token revoked")
)

// clockSkew is the tolerance applied when validating exp/nbf.
const clockSkew = 30 * time.Second

// issuer is the fixed issuer claim stamped on every token this gateway mints.
const issuer = "tradecore-gateway"

// Denylist is the single store read the token verifier performs: a lookup of
// a token fingerprint placed there by Logout (§4.1 "denylist").
type Denylist interface {
	Contains(ctx context.Context, fingerprint string) (bool, error)
	Add(ctx context.Context, fingerprint string, ttl time.Duration) error
}

// Claims are the JWT payload fields this gateway mints and verifies.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// TokenVerifier issues and verifies HMAC-signed bearer tokens.
type TokenVerifier struct {
	signingKey []byte
	denylist   Denylist
}

// NewTokenVerifier creates a verifier. secret must be at least 32 bytes.
func NewTokenVerifier(secret string, denylist Denylist) (*TokenVerifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenVerifier{signingKey: []byte(secret), denylist: denylist}, nil
}

// Issue mints a signed token for subject/role with the given lifetime.
func (v *TokenVerifier) Issue(subject, role string, ttl time.Duration) (raw string, expiresAt time.Time, err error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: v.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now().UTC()
	expiresAt = now.Add(ttl)
	registered := jwt.Claims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(expiresAt),
	}

	raw, err = jwt.Signed(signer).Claims(registered).Claims(Claims{Subject: subject, Role: role}).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return raw, expiresAt, nil
}

// Fingerprint returns the stable SHA-256 hex digest of a raw bearer string,
// used as the denylist key and as Identity.TokenFingerprint.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Verify parses and verifies a raw "Bearer <token>" header value (or a bare
// token), returning the extracted Identity or a classified error.
func (v *TokenVerifier) Verify(ctx context.Context, bearer string) (*Identity, error) {
	raw := strings.TrimSpace(bearer)
	raw = strings.TrimPrefix(raw, "Bearer ")
	raw = strings.TrimPrefix(raw, "bearer ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformed
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(v.signingKey, &registered, &custom); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{Issuer: issuer}, clockSkew); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	}

	fp := Fingerprint(raw)
	if v.denylist != nil {
		revoked, err := v.denylist.Contains(ctx, fp)
		if err != nil {
			// Unlike the rate limiter, the denylist does not fail open: an
			// unreachable store must not silently grant access to a
			// possibly-revoked token.
			return nil, fmt.Errorf("checking denylist: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	role := custom.Role
	if !IsValidRole(role) {
		role = RolePublic
	}

	expiresAt := registered.Expiry.Time()
	if expiresAt.IsZero() || !expiresAt.After(time.Now().Add(-clockSkew)) {
		return nil, ErrExpired
	}

	return &Identity{
		Subject:          custom.Subject,
		Role:             role,
		IssuedAt:         registered.IssuedAt.Time(),
		ExpiresAt:        expiresAt,
		TokenFingerprint: fp,
	}, nil
}

// RevokeToken adds a token's fingerprint to the denylist for the
// remainder of its lifetime, on logout.
func (v *TokenVerifier) RevokeToken(ctx context.Context, raw string, remainingLifetime time.Duration) error {
	if v.denylist == nil {
		return nil
	}
	if remainingLifetime <= 0 {
		return nil
	}
	return v.denylist.Add(ctx, Fingerprint(raw), remainingLifetime)
}

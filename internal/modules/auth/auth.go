package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/member"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the JWT payload issued at login.
type Claims struct {
	Role       member.Role `json:"role"`
	MerchantID string      `json:"merchant_id,omitempty"`
	jwt.StandardClaims
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID     uuid.UUID
	Role       member.Role
	MerchantID string // empty unless Role is merchant
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal set by Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// IssueToken signs an HS256 token for p valid for ttl.
func IssueToken(secret string, p Principal, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expires := now.Add(ttl)
	claims := &Claims{
		Role:       p.Role,
		MerchantID: p.MerchantID,
		StandardClaims: jwt.StandardClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: expires.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken verifies raw and returns its principal.
func ParseToken(secret, raw string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: id, Role: claims.Role, MerchantID: claims.MerchantID}, nil
}

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/indiansinghana/iig-backend/internal/modules/member"
)

// Token is the login response.
type Token struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Role        member.Role `json:"role"`
	MerchantID  string      `json:"merchant_id,omitempty"`
}

// Profile is the caller's own account view.
type Profile struct {
	User     *member.User     `json:"user"`
	Merchant *member.Merchant `json:"merchant,omitempty"`
}

// Service defines the interface for authentication-related business logic.
type Service interface {
	Login(ctx context.Context, email, password string) (*Token, error)
	Me(ctx context.Context, p Principal) (*Profile, error)
}

type service struct {
	members member.Repository
	secret  string
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a new auth service.
func NewService(members member.Repository, secret string, ttl time.Duration) Service {
	return &service{members: members, secret: secret, ttl: ttl, now: time.Now}
}

func (s *service) Login(ctx context.Context, email, password string) (*Token, error) {
	u, err := s.members.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	p := Principal{UserID: u.ID, Role: u.Role}
	if u.Role == member.RoleMerchant {
		m, err := s.members.GetMerchantByUserID(ctx, u.ID.String())
		if err != nil {
			return nil, err
		}
		p.MerchantID = m.ID.String()
	}

	signed, expires, err := IssueToken(s.secret, p, s.ttl, s.now())
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, ExpiresAt: expires, Role: p.Role, MerchantID: p.MerchantID}, nil
}

func (s *service) Me(ctx context.Context, p Principal) (*Profile, error) {
	u, err := s.members.GetUserByID(ctx, p.UserID.String())
	if err != nil {
		return nil, err
	}
	out := &Profile{User: u}
	if p.MerchantID != "" {
		if out.Merchant, err = s.members.GetMerchantByID(ctx, p.MerchantID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

package member

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

var (
	ErrInvalidInput = errors.New("invalid registration details")
	ErrUnknownPlan  = errors.New("unknown plan")
	ErrInvalidLimit = errors.New("limit must be null, -1 (unlimited) or a non-negative number")
)

// DefaultMembership is assigned when sign-up omits a membership type.
const DefaultMembership plan.Key = "basic"

// Service defines member registration, lookups and admin overrides.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error)
	RegisterMerchant(ctx context.Context, req RegisterMerchantRequest) (*User, *Merchant, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetMerchant(ctx context.Context, id string) (*Merchant, error)
	GetMerchantByUser(ctx context.Context, userID string) (*Merchant, error)

	SetCustomRedemptionLimit(ctx context.Context, userID string, limit *int) error
	SetCustomDealLimit(ctx context.Context, merchantID string, limit *int) error
}

type service struct {
	repo    Repository
	catalog plan.Catalog
}

// NewService creates a new member service.
func NewService(repo Repository, catalog plan.Catalog) Service {
	return &service{repo: repo, catalog: catalog}
}

func (s *service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error) {
	if err := validateCredentials(req.Email, req.Password, req.Name); err != nil {
		return nil, err
	}
	key, err := s.resolvePlan(ctx, plan.TypeUser, req.MembershipType, DefaultMembership)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:             uuid.New(),
		Email:          normalizeEmail(req.Email),
		PasswordHash:   string(hash),
		Name:           strings.TrimSpace(req.Name),
		Role:           RoleUser,
		MembershipType: key,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, u.ID.String())
}

func (s *service) RegisterMerchant(ctx context.Context, req RegisterMerchantRequest) (*User, *Merchant, error) {
	if err := validateCredentials(req.Email, req.Password, req.Name); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(req.BusinessName) == "" {
		return nil, nil, fmt.Errorf("%w: business name", ErrInvalidInput)
	}
	lowest, err := s.lowestPlan(ctx, plan.TypeMerchant)
	if err != nil {
		return nil, nil, err
	}
	key, err := s.resolvePlan(ctx, plan.TypeMerchant, req.PlanKey, lowest)
	if err != nil {
		return nil, nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	u := &User{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		Role:         RoleMerchant,
		// merchants browse as the entry membership
		MembershipType: DefaultMembership,
	}
	m := &Merchant{
		ID:           uuid.New(),
		UserID:       u.ID,
		BusinessName: strings.TrimSpace(req.BusinessName),
		PlanKey:      key,
	}
	if err := s.repo.CreateMerchantAccount(ctx, u, m); err != nil {
		return nil, nil, err
	}
	return u, m, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *service) GetMerchant(ctx context.Context, id string) (*Merchant, error) {
	return s.repo.GetMerchantByID(ctx, id)
}

func (s *service) GetMerchantByUser(ctx context.Context, userID string) (*Merchant, error) {
	return s.repo.GetMerchantByUserID(ctx, userID)
}

func (s *service) SetCustomRedemptionLimit(ctx context.Context, userID string, limit *int) error {
	if !ValidLimit(limit) {
		return ErrInvalidLimit
	}
	return s.repo.SetCustomRedemptionLimit(ctx, userID, limit)
}

func (s *service) SetCustomDealLimit(ctx context.Context, merchantID string, limit *int) error {
	if !ValidLimit(limit) {
		return ErrInvalidLimit
	}
	return s.repo.SetCustomDealLimit(ctx, merchantID, limit)
}

// ValidLimit reports whether limit is an acceptable override value.
func ValidLimit(limit *int) bool {
	return limit == nil || *limit >= plan.Unlimited
}

// ── helpers ───────────────────────────────────────────────────────────────────

// resolvePlan canonicalizes raw and checks the plan exists for typ.
func (s *service) resolvePlan(ctx context.Context, typ plan.Type, raw string, fallback plan.Key) (plan.Key, error) {
	key := fallback
	if strings.TrimSpace(raw) != "" {
		k, _, err := plan.ParseKey(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownPlan, err)
		}
		key = k
	}
	p, err := s.catalog.GetPlanByKey(ctx, typ, key)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			return "", fmt.Errorf("%w: %s %s", ErrUnknownPlan, typ, key)
		}
		return "", err
	}
	if !p.IsActive {
		return "", fmt.Errorf("%w: %s %s is inactive", ErrUnknownPlan, typ, key)
	}
	return key, nil
}

func (s *service) lowestPlan(ctx context.Context, typ plan.Type) (plan.Key, error) {
	plans, err := s.catalog.ListActivePlans(ctx, typ)
	if err != nil {
		return "", err
	}
	if len(plans) == 0 {
		return "", fmt.Errorf("%w: no active %s plans", ErrUnknownPlan, typ)
	}
	return plans[0].Key, nil
}

func validateCredentials(email, password, name string) error {
	if !strings.Contains(email, "@") || len(password) < 8 || strings.TrimSpace(name) == "" {
		return ErrInvalidInput
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

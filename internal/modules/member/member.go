package member

import (
	"time"

	"github.com/google/uuid"

	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

// Role is the account kind carried in auth tokens.
type Role string

const (
	RoleUser     Role = "user"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// User is a member account. PlanPriority is derived from the joined user
// plan and is 0 when the plan no longer exists.
type User struct {
	ID                    uuid.UUID `json:"id"`
	Email                 string    `json:"email"`
	PasswordHash          string    `json:"-"`
	Name                  string    `json:"name"`
	Role                  Role      `json:"role"`
	MembershipType        plan.Key  `json:"membership_type"`
	PlanPriority          int       `json:"plan_priority"`
	CustomRedemptionLimit *int      `json:"custom_redemption_limit"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Merchant is the business profile owned by a merchant user.
type Merchant struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	BusinessName    string    `json:"business_name"`
	PlanKey         plan.Key  `json:"plan_key"`
	CustomDealLimit *int      `json:"custom_deal_limit"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RegisterUserRequest is the payload for member sign-up.
type RegisterUserRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	MembershipType string `json:"membership_type"`
}

// RegisterMerchantRequest is the payload for merchant sign-up.
type RegisterMerchantRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
	PlanKey      string `json:"plan_key"`
}

// CustomLimitRequest sets or clears an admin override. Null restores the
// plan default, -1 means unlimited.
type CustomLimitRequest struct {
	Limit *int `json:"limit"`
}

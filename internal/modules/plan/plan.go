package plan

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Unlimited marks a posting or redemption limit with no cap.
const Unlimited = -1

// Type is the audience a plan is sold to.
type Type string

const (
	TypeUser     Type = "user"
	TypeMerchant Type = "merchant"
)

// ParseType resolves stored or submitted plan types. "membership" is the
// legacy name for user plans.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "membership", "member":
		return TypeUser, nil
	case "merchant", "business":
		return TypeMerchant, nil
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidPlan, s)
}

// storedTypes lists the raw type column values that belong to t.
func (t Type) storedTypes() []string {
	if t == TypeUser {
		return []string{"user", "membership"}
	}
	return []string{string(t)}
}

// Key is the canonical tier key, e.g. "silver".
type Key string

var typeSuffixes = []struct {
	suffix string
	typ    Type
}{
	{"_merchant", TypeMerchant},
	{"_business", TypeMerchant},
	{"_membership", TypeUser},
	{"_member", TypeUser},
	{"_user", TypeUser},
}

// ParseKey canonicalizes a membership type string. Legacy values such as
// "Silver_Business" and "silver_merchant" resolve to Key("silver") with the
// type their suffix implies; bare keys imply TypeUser.
func ParseKey(raw string) (Key, Type, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	typ := TypeUser
	for _, ts := range typeSuffixes {
		if strings.HasSuffix(s, ts.suffix) {
			s = strings.TrimSuffix(s, ts.suffix)
			typ = ts.typ
			break
		}
	}
	if s == "" {
		return "", "", fmt.Errorf("%w: empty key %q", ErrInvalidPlan, raw)
	}
	return Key(s), typ, nil
}

// Plan is an admin-defined membership or merchant tier. Higher priority
// grants access to everything a lower priority of the same type can reach.
type Plan struct {
	ID                     uuid.UUID `json:"id"`
	Key                    Key       `json:"key"`
	Name                   string    `json:"name"`
	Type                   Type      `json:"type"`
	Priority               int       `json:"priority"`
	IsActive               bool      `json:"is_active"`
	DealPostingLimit       int       `json:"deal_posting_limit"`
	MaxRedemptionsPerMonth int       `json:"max_redemptions_per_month"`
	Features               []string  `json:"features"`
}

// HasFeature reports whether the plan lists feature.
func (p *Plan) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

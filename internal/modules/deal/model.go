package deal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ── Status ────────────────────────────────────────────────────────────────────

// Status is the review and publication state of a deal.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusActive          Status = "active"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
	StatusInactive        Status = "inactive"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPendingApproval, StatusActive, StatusRejected, StatusExpired, StatusInactive:
		return st, nil
	}
	return "", fmt.Errorf("unknown deal status %q", s)
}

// validTransitions defines the deal state machine. Editing a deal sends it
// back to pending_approval.
var validTransitions = map[Status][]Status{
	StatusPendingApproval: {StatusActive, StatusRejected},
	StatusActive:          {StatusInactive, StatusExpired, StatusPendingApproval},
	StatusRejected:        {StatusPendingApproval},
	StatusExpired:         {StatusPendingApproval},
	StatusInactive:        {StatusActive},
}

// CanTransition returns true if the deal may move from current to next.
func CanTransition(current, next Status) bool {
	for _, s := range validTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// editable lists the states in which the owning merchant may change a deal.
var editable = map[Status]bool{
	StatusPendingApproval: true,
	StatusRejected:        true,
	StatusActive:          true,
	StatusExpired:         true,
}

// ── Deal ──────────────────────────────────────────────────────────────────────

// ErrNotRedeemable matches every reason Redeemable can report.
var ErrNotRedeemable = errors.New("deal is not redeemable")

var (
	ErrNotActive      error = redeemError("deal is not active")
	ErrOutsideWindow  error = redeemError("deal is outside its validity period")
	ErrMemberLimitHit error = redeemError("deal has reached its member limit")
)

// redeemError is a specific reason that still matches ErrNotRedeemable.
type redeemError string

func (e redeemError) Error() string { return string(e) }

func (e redeemError) Is(target error) bool { return target == ErrNotRedeemable }

// Deal is a merchant offer gated by a minimum plan priority. A nil
// RequiredPlanPriority is open to every member; a nil MemberLimit is uncapped.
type Deal struct {
	ID                   uuid.UUID `json:"id"`
	MerchantID           uuid.UUID `json:"merchant_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	RequiredPlanPriority *int      `json:"required_plan_priority"`
	MemberLimit          *int      `json:"member_limit"`
	Status               Status    `json:"status"`
	ValidFrom            time.Time `json:"valid_from"`
	ValidUntil           time.Time `json:"valid_until"`
	RedemptionsCount     int       `json:"redemptions_count"`
	RejectionReason      *string   `json:"rejection_reason,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EffectiveStatus reports expired for an active deal whose validity period
// has ended. Expiry is applied lazily at read time.
func (d *Deal) EffectiveStatus(now time.Time) Status {
	if d.Status == StatusActive && now.After(d.ValidUntil) {
		return StatusExpired
	}
	return d.Status
}

// Redeemable returns nil when a member may redeem the deal at now.
func (d *Deal) Redeemable(now time.Time) error {
	if d.EffectiveStatus(now) != StatusActive {
		return ErrNotActive
	}
	if now.Before(d.ValidFrom) || now.After(d.ValidUntil) {
		return ErrOutsideWindow
	}
	if d.MemberLimit != nil && d.RedemptionsCount >= *d.MemberLimit {
		return ErrMemberLimitHit
	}
	return nil
}

// DealRequest is the merchant payload for posting or editing a deal. Dates
// use YYYY-MM-DD and both ends are inclusive.
type DealRequest struct {
	Title                string `json:"title"`
	Description          string `json:"description"`
	RequiredPlanPriority *int   `json:"required_plan_priority"`
	MemberLimit          *int   `json:"member_limit"`
	ValidFrom            string `json:"valid_from"`
	ValidUntil           string `json:"valid_until"`
}

// ReviewRequest is the admin decision on a pending deal.
type ReviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// Decision is the outcome of evaluating a member against a deal.
type Decision struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	RequiredTier string `json:"required_tier"`
}

// Listing is a deal annotated for the member viewing it.
type Listing struct {
	*Deal
	Access Decision `json:"access"`
}

// Package access decides whether a member's plan reaches a deal.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

// ErrInvalidArgument is returned for negative priorities.
var ErrInvalidArgument = errors.New("plan priority must not be negative")

// CanAccess reports whether a member holding userPlanPriority may see and
// redeem a deal requiring dealRequiredPriority. A nil requirement marks a
// legacy deal without a tier gate, which is open to every plan.
func CanAccess(userPlanPriority int, dealRequiredPriority *int) (bool, error) {
	if userPlanPriority < 0 {
		return false, fmt.Errorf("user priority %d: %w", userPlanPriority, ErrInvalidArgument)
	}
	if dealRequiredPriority == nil {
		return true, nil
	}
	if *dealRequiredPriority < 0 {
		return false, fmt.Errorf("deal priority %d: %w", *dealRequiredPriority, ErrInvalidArgument)
	}
	return userPlanPriority >= *dealRequiredPriority, nil
}

// DescribeRequiredTier names the minimum tier for display. It never affects
// an access decision, so lookup failures fall back to "Priority N".
func DescribeRequiredTier(ctx context.Context, dealRequiredPriority *int, catalog plan.Catalog) string {
	if dealRequiredPriority == nil {
		return "All members"
	}
	p, err := catalog.GetPlanByPriority(ctx, plan.TypeUser, *dealRequiredPriority)
	if err != nil || p == nil {
		return fmt.Sprintf("Priority %d", *dealRequiredPriority)
	}
	return p.Name
}

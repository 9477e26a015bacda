package plan

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no plan matches a lookup.
var ErrNotFound = errors.New("plan not found")

// ErrInvalidPlan is returned for unparseable plan types and keys.
var ErrInvalidPlan = errors.New("invalid plan")

// Catalog is the read-only view of plan definitions. Plan CRUD belongs to
// admin tooling and is not part of this contract.
type Catalog interface {
	GetPlanByKey(ctx context.Context, typ Type, key Key) (*Plan, error)
	// GetPlanByPriority returns the first active plan of typ at priority.
	GetPlanByPriority(ctx context.Context, typ Type, priority int) (*Plan, error)
	// ListActivePlans is ordered by priority ascending.
	ListActivePlans(ctx context.Context, typ Type) ([]*Plan, error)
}

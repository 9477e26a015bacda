package plan

import (
	"context"
	"fmt"
)

// Service exposes the plan catalog to the API layer.
type Service interface {
	ListPlans(ctx context.Context, typ string) ([]*Plan, error)
	GetPlan(ctx context.Context, typ, key string) (*Plan, error)
}

type service struct{ catalog Catalog }

func NewService(catalog Catalog) Service { return &service{catalog: catalog} }

func (s *service) ListPlans(ctx context.Context, typ string) ([]*Plan, error) {
	if typ == "" {
		typ = string(TypeUser)
	}
	t, err := ParseType(typ)
	if err != nil {
		return nil, err
	}
	plans, err := s.catalog.ListActivePlans(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list %s plans: %w", t, err)
	}
	if plans == nil {
		plans = []*Plan{}
	}
	return plans, nil
}

func (s *service) GetPlan(ctx context.Context, typ, key string) (*Plan, error) {
	t, err := ParseType(typ)
	if err != nil {
		return nil, err
	}
	k, _, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return s.catalog.GetPlanByKey(ctx, t, k)
}

package plan_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiansinghana/iig-backend/internal/modules/plan"
	"github.com/indiansinghana/iig-backend/internal/modules/plan/plantest"
)

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("connection refused")
	}
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func TestCachedCatalogReadsThrough(t *testing.T) {
	ctx := context.Background()
	inner := plantest.Standard()
	cat := plan.NewCachedCatalog(inner, newMapCache(), time.Minute)

	p, err := cat.GetPlanByKey(ctx, plan.TypeUser, "silver")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Priority)

	p, err = cat.GetPlanByKey(ctx, plan.TypeUser, "silver")
	require.NoError(t, err)
	assert.Equal(t, "Silver", p.Name)
	assert.Equal(t, 1, inner.Calls, "second lookup is served from cache")

	plans, err := cat.ListActivePlans(ctx, plan.TypeUser)
	require.NoError(t, err)
	require.Len(t, plans, 4)
	assert.Equal(t, 1, plans[0].Priority)
}

func TestCachedCatalogDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	inner := plantest.Standard()
	cat := plan.NewCachedCatalog(inner, newMapCache(), time.Minute)

	_, err := cat.GetPlanByKey(ctx, plan.TypeUser, "diamond")
	require.ErrorIs(t, err, plan.ErrNotFound)

	inner.Add(&plan.Plan{Key: "diamond", Name: "Diamond", Type: plan.TypeUser, Priority: 5, IsActive: true})
	p, err := cat.GetPlanByKey(ctx, plan.TypeUser, "diamond")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Priority)
}

func TestCachedCatalogFallsBackWhenCacheFails(t *testing.T) {
	cache := newMapCache()
	cache.failGet = true
	cat := plan.NewCachedCatalog(plantest.Standard(), cache, time.Minute)

	p, err := cat.GetPlanByPriority(context.Background(), plan.TypeUser, 3)
	require.NoError(t, err)
	assert.Equal(t, plan.Key("gold"), p.Key)
}

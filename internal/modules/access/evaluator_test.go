package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/indiansinghana/iig-backend/internal/modules/access"
	"github.com/indiansinghana/iig-backend/internal/modules/plan/plantest"
)

func ptr(v int) *int { return &v }

func TestCanAccessOrdersByPriority(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.IntRange(0, 1000).Draw(t, "p")
		q := rapid.IntRange(0, 1000).Draw(t, "q")

		pq, err := access.CanAccess(p, &q)
		if err != nil {
			t.Fatal(err)
		}
		qp, err := access.CanAccess(q, &p)
		if err != nil {
			t.Fatal(err)
		}

		switch {
		case p > q:
			if !pq || qp {
				t.Fatalf("p=%d q=%d: higher must reach lower and not the reverse", p, q)
			}
		case p == q:
			if !pq || !qp {
				t.Fatalf("equal priorities %d must reach each other", p)
			}
		default:
			if pq || !qp {
				t.Fatalf("p=%d q=%d: lower must not reach higher", p, q)
			}
		}
	})
}

func TestCanAccessNilRequirementIsOpen(t *testing.T) {
	for _, prio := range []int{0, 1, 7} {
		ok, err := access.CanAccess(prio, nil)
		require.NoError(t, err)
		assert.True(t, ok, "priority %d", prio)
	}
}

func TestCanAccessRejectsNegativeInput(t *testing.T) {
	_, err := access.CanAccess(-1, ptr(1))
	assert.True(t, errors.Is(err, access.ErrInvalidArgument))

	_, err = access.CanAccess(1, ptr(-2))
	assert.True(t, errors.Is(err, access.ErrInvalidArgument))
}

func TestDescribeRequiredTier(t *testing.T) {
	ctx := context.Background()
	cat := plantest.Standard()

	assert.Equal(t, "Gold", access.DescribeRequiredTier(ctx, ptr(3), cat))
	assert.Equal(t, "Priority 9", access.DescribeRequiredTier(ctx, ptr(9), cat))
	assert.Equal(t, "All members", access.DescribeRequiredTier(ctx, nil, cat))

	cat.Err = errors.New("db down")
	assert.Equal(t, "Priority 3", access.DescribeRequiredTier(ctx, ptr(3), cat))
}

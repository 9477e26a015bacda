package redemption_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiansinghana/iig-backend/internal/config"
	"github.com/indiansinghana/iig-backend/internal/modules/limiter"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
	"github.com/indiansinghana/iig-backend/internal/modules/redemption"
	"github.com/indiansinghana/iig-backend/internal/platform/database"
	"github.com/indiansinghana/iig-backend/internal/platform/events"
)

// openTestDB connects to TEST_DATABASE_URL (postgres) and applies the schema.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: "postgres", DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/postgres/0001_init.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func TestSQLStoreSerializesApprovals(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	planKey := "it_" + uuid.NewString()[:8]
	_, err := db.Exec(db.Rebind(`
		INSERT INTO plans (id, plan_key, name, type, priority, is_active, deal_posting_limit, max_redemptions_per_month, features)
		VALUES (?, ?, 'Integration', 'user', 1, TRUE, 0, 5, '[]')`), uuid.New(), planKey)
	require.NoError(t, err)

	userID, merchantUserID, merchantID := uuid.New(), uuid.New(), uuid.New()
	_, err = db.Exec(db.Rebind(`
		INSERT INTO users (id, email, password_hash, name, role, membership_type, custom_redemption_limit)
		VALUES (?, ?, 'x', 'Member', 'user', ?, 1), (?, ?, 'x', 'Owner', 'merchant', ?, NULL)`),
		userID, userID.String()+"@example.com", planKey,
		merchantUserID, merchantUserID.String()+"@example.com", planKey)
	require.NoError(t, err)
	_, err = db.Exec(db.Rebind(`INSERT INTO merchants (id, user_id, business_name, plan_key) VALUES (?, ?, 'Shop', 'gold')`),
		merchantID, merchantUserID)
	require.NoError(t, err)

	now := time.Now()
	var requestIDs []string
	for i := 0; i < 2; i++ {
		dealID := uuid.New()
		_, err = db.Exec(db.Rebind(`
			INSERT INTO deals (id, merchant_id, title, status, valid_from, valid_until)
			VALUES (?, ?, 'Deal', 'active', ?, ?)`), dealID, merchantID, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		reqID := uuid.New()
		_, err = db.Exec(db.Rebind(`
			INSERT INTO redemption_requests (id, deal_id, user_id, merchant_id, status, requested_at)
			VALUES (?, ?, ?, ?, 'pending', ?)`), reqID, dealID, userID, merchantID, now)
		require.NoError(t, err)
		requestIDs = append(requestIDs, reqID.String())
	}

	catalog := plan.NewSQLRepository(db)
	svc := redemption.NewService(redemption.NewSQLStore(db), catalog, limiter.New(catalog, time.UTC), events.Noop{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		exceeded int
	)
	for _, id := range requestIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Approve(ctx, id, merchantID.String())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, redemption.ErrQuotaExceeded) {
				exceeded++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exceeded)

	q, err := svc.Quota(ctx, userID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, q.Used)
}

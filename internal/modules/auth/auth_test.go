package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/indiansinghana/iig-backend/internal/modules/auth"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/member/membertest"
)

const secret = "test-secret"

func seed(t *testing.T) (*membertest.Repository, uuid.UUID) {
	t.Helper()
	repo := membertest.NewRepository(nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cretpass"), bcrypt.MinCost)
	require.NoError(t, err)
	uid := repo.AddUser(member.User{Email: "shop@example.com", PasswordHash: string(hash), Role: member.RoleMerchant})
	mid := repo.AddMerchant(member.Merchant{UserID: uid, BusinessName: "Spice Hub", PlanKey: "silver"})
	return repo, mid
}

func TestLoginIssuesMerchantToken(t *testing.T) {
	repo, mid := seed(t)
	svc := auth.NewService(repo, secret, time.Hour)

	tok, err := svc.Login(context.Background(), "Shop@Example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, member.RoleMerchant, tok.Role)
	assert.Equal(t, mid.String(), tok.MerchantID)

	p, err := auth.ParseToken(secret, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, mid.String(), p.MerchantID)

	_, err = auth.ParseToken("other-secret", tok.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo, _ := seed(t)
	svc := auth.NewService(repo, secret, time.Hour)

	_, err := svc.Login(context.Background(), "shop@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "nobody@example.com", "s3cretpass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestExpiredTokenRejected(t *testing.T) {
	raw, _, err := auth.IssueToken(secret, auth.Principal{UserID: uuid.New(), Role: member.RoleUser},
		time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = auth.ParseToken(secret, raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddlewareAndRoles(t *testing.T) {
	r := chi.NewRouter()
	r.Use(auth.Middleware(secret))
	r.With(auth.RequireRole(member.RoleMerchant)).Get("/merchant", func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(p.UserID.String()))
	})

	call := func(role member.Role, header bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/merchant", nil)
		if header {
			raw, _, err := auth.IssueToken(secret, auth.Principal{UserID: uuid.New(), Role: role}, time.Hour, time.Now())
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+raw)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call(member.RoleUser, false).Code)
	assert.Equal(t, http.StatusForbidden, call(member.RoleUser, true).Code)
	assert.Equal(t, http.StatusOK, call(member.RoleMerchant, true).Code)
	assert.Equal(t, http.StatusOK, call(member.RoleAdmin, true).Code)
}

func TestLoginHandler(t *testing.T) {
	repo, _ := seed(t)
	r := chi.NewRouter()
	auth.NewHandler(auth.NewService(repo, secret, time.Hour)).RegisterRoutes(r, secret)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"shop@example.com","password":"s3cretpass"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tok auth.Token
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Spice Hub")
}

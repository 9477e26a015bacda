package redemption_test

import (
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

	"github.com/indiansinghana/iig-backend/internal/modules/access"
	"github.com/indiansinghana/iig-backend/internal/modules/auth"
	"github.com/indiansinghana/iig-backend/internal/modules/deal"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/redemption"
)

const secret = "handler-test"

func token(t *testing.T, p auth.Principal) string {
	t.Helper()
	raw, _, err := auth.IssueToken(secret, p, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + raw
}

type apiResponse struct {
	Code   int
	Body   map[string]any
	Status string
}

func TestHandlerFlow(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(secret))
		redemption.NewHandler(f.svc).RegisterRoutes(r)
	})

	uid := f.user("silver", nil)
	userAuth := token(t, auth.Principal{UserID: uuid.MustParse(uid), Role: member.RoleUser})
	merchant, err := f.store.members.GetMerchantByID(t.Context(), f.merchant.String())
	require.NoError(t, err)
	merchantAuth := token(t, auth.Principal{UserID: merchant.UserID, Role: member.RoleMerchant, MerchantID: f.merchant.String()})

	call := func(authz, method, path, body string) apiResponse {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", authz)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		out := apiResponse{Code: rec.Code, Body: map[string]any{}}
		json.Unmarshal(rec.Body.Bytes(), &out.Body)
		if s, ok := out.Body["status"].(string); ok {
			out.Status = s
		}
		return out
	}

	open := f.deal(nil)
	gated := f.deal(func(d *deal.Deal) { d.RequiredPlanPriority = intp(4) })

	res := call(userAuth, http.MethodPost, "/api/v1/redemptions/", `{"deal_id":"`+open+`"}`)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "pending", res.Status)
	requestID := res.Body["id"].(string)

	res = call(userAuth, http.MethodPost, "/api/v1/redemptions/", `{"deal_id":"`+open+`"}`)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "duplicate_request", res.Body["code"])

	res = call(userAuth, http.MethodPost, "/api/v1/redemptions/", `{"deal_id":"`+gated+`"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "access_denied", res.Body["code"])

	res = call(userAuth, http.MethodPost, "/api/v1/redemptions/", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = call(userAuth, http.MethodPost, "/api/v1/merchant/redemptions/"+requestID+"/approve", "")
	assert.Equal(t, http.StatusForbidden, res.Code, "members cannot approve")

	res = call(merchantAuth, http.MethodPost, "/api/v1/merchant/redemptions/"+requestID+"/reject", `{"reason":""}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "empty_reason", res.Body["code"])

	res = call(merchantAuth, http.MethodPost, "/api/v1/merchant/redemptions/"+requestID+"/approve", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "approved", res.Status)

	res = call(merchantAuth, http.MethodPost, "/api/v1/merchant/redemptions/"+requestID+"/approve", "")
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "already_resolved", res.Body["code"])

	res = call(userAuth, http.MethodGet, "/api/v1/redemptions/quota", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 4, res.Body["remaining"])

	res = call("", http.MethodGet, "/api/v1/redemptions/mine", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHandlerBulk(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(secret))
		redemption.NewHandler(f.svc).RegisterRoutes(r)
	})

	req, err := f.svc.Submit(t.Context(), f.user("gold", nil), f.deal(nil))
	require.NoError(t, err)

	body := `{"ids":["` + req.ID.String() + `","` + uuid.NewString() + `"],"action":"reject","reason":"closed today"}`
	httpReq := httptest.NewRequest(http.MethodPost, "/api/v1/merchant/redemptions/bulk", strings.NewReader(body))
	httpReq.Header.Set("Authorization", token(t, auth.Principal{UserID: uuid.New(), Role: member.RoleMerchant, MerchantID: f.merchant.String()}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httpReq)
	require.Equal(t, http.StatusOK, rec.Code)

	var outcomes []redemption.Outcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcomes))
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.Equal(t, "not_found", outcomes[1].Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		redemption.ErrAccessDenied:      http.StatusForbidden,
		redemption.ErrQuotaExceeded:     http.StatusTooManyRequests,
		redemption.ErrDealNotRedeemable: http.StatusConflict,
		redemption.ErrDuplicateRequest:  http.StatusConflict,
		redemption.ErrAlreadyResolved:   http.StatusConflict,
		redemption.ErrNotOwner:          http.StatusForbidden,
		redemption.ErrEmptyReason:       http.StatusBadRequest,
		redemption.ErrNotFound:          http.StatusNotFound,
		access.ErrInvalidArgument:       http.StatusUnprocessableEntity,
		assert.AnError:                  http.StatusInternalServerError,
	}
	messages := map[string]bool{}
	for err, status := range cases {
		assert.Equal(t, status, redemption.HTTPStatus(err), err.Error())
		messages[err.Error()] = true
	}
	assert.Len(t, messages, len(cases), "every error kind has its own message")
}

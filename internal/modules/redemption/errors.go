package redemption

import (
	"errors"
	"net/http"

	"github.com/indiansinghana/iig-backend/internal/modules/access"
	"github.com/indiansinghana/iig-backend/internal/modules/deal"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
)

// Each business error carries the message shown to the user.
var (
	ErrAccessDenied      = errors.New("your plan doesn't include this deal")
	ErrQuotaExceeded     = errors.New("you've reached this month's redemption limit")
	ErrDealNotRedeemable = errors.New("this deal can't be redeemed right now")
	ErrDuplicateRequest  = errors.New("you already have a pending request for this deal")
	ErrAlreadyResolved   = errors.New("this request has already been resolved")
	ErrNotOwner          = errors.New("this request belongs to another merchant")
	ErrEmptyReason       = errors.New("a reason is required to reject a request")
	ErrNotFound          = errors.New("redemption request not found")
	ErrThrottled         = errors.New("too many redemption requests, please retry shortly")
	ErrInvalidAction     = errors.New("action must be approve or reject")
	ErrInvalidStatus     = errors.New("unknown redemption status")
)

var kinds = []struct {
	err    error
	code   string
	status int
}{
	{ErrAccessDenied, "access_denied", http.StatusForbidden},
	{ErrQuotaExceeded, "quota_exceeded", http.StatusTooManyRequests},
	{ErrDealNotRedeemable, "deal_not_redeemable", http.StatusConflict},
	{ErrDuplicateRequest, "duplicate_request", http.StatusConflict},
	{ErrAlreadyResolved, "already_resolved", http.StatusConflict},
	{ErrNotOwner, "not_owner", http.StatusForbidden},
	{ErrEmptyReason, "empty_reason", http.StatusBadRequest},
	{ErrInvalidAction, "invalid_action", http.StatusBadRequest},
	{ErrInvalidStatus, "invalid_status", http.StatusBadRequest},
	{ErrThrottled, "throttled", http.StatusTooManyRequests},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{access.ErrInvalidArgument, "invalid_argument", http.StatusUnprocessableEntity},
	{deal.ErrNotFound, "not_found", http.StatusNotFound},
	{member.ErrNotFound, "not_found", http.StatusNotFound},
}

// Code classifies err for API responses and metrics. Unknown errors are
// "internal".
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// HTTPStatus maps err to its response status.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

package redemption

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a redemption request. Approved and rejected are
// terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidStatus, s)
}

// Request is a member's claim against a deal awaiting the merchant's decision.
type Request struct {
	ID              uuid.UUID  `json:"id"`
	DealID          uuid.UUID  `json:"deal_id"`
	UserID          uuid.UUID  `json:"user_id"`
	MerchantID      uuid.UUID  `json:"merchant_id"`
	Status          Status     `json:"status"`
	RequestedAt     time.Time  `json:"requested_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

// Action is a merchant decision applied by BulkResolve.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Outcome is the per-request result of a bulk resolution.
type Outcome struct {
	ID      string   `json:"id"`
	OK      bool     `json:"ok"`
	Request *Request `json:"request,omitempty"`
	Code    string   `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SubmitRequest is the member payload for POST /api/v1/redemptions.
type SubmitRequest struct {
	DealID string `json:"deal_id"`
}

// RejectRequest carries the mandatory reason shown to the member.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BulkRequest resolves several requests with one action.
type BulkRequest struct {
	IDs    []string `json:"ids"`
	Action Action   `json:"action"`
	Reason string   `json:"reason,omitempty"`
}

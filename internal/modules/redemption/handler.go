package redemption

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/indiansinghana/iig-backend/internal/modules/auth"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the redemption endpoints. r must already run
// auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/redemptions", func(r chi.Router) {
		r.Use(auth.RequireRole(member.RoleUser, member.RoleMerchant))
		r.Post("/", h.submit)
		r.Get("/mine", h.listMine)
		r.Get("/quota", h.quota)
	})

	r.Route("/api/v1/merchant/redemptions", func(r chi.Router) {
		r.Use(auth.RequireRole(member.RoleMerchant))
		r.Get("/", h.listForMerchant) // ?status=pending|approved|rejected
		r.Post("/bulk", h.bulk)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

// ── Member ────────────────────────────────────────────────────────────────────

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DealID == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "deal_id is required"})
		return
	}
	p, _ := auth.FromContext(r.Context())
	out, err := h.service.Submit(r.Context(), p.UserID.String(), req.DealID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, out)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	out, err := h.service.ListForUser(r.Context(), p.UserID.String())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) quota(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	q, err := h.service.Quota(r.Context(), p.UserID.String())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, q)
}

// ── Merchant ──────────────────────────────────────────────────────────────────

func (h *Handler) listForMerchant(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	out, err := h.service.ListForMerchant(r.Context(), p.MerchantID, r.URL.Query().Get("status"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	out, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), p.MerchantID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, _ := auth.FromContext(r.Context())
	out, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), p.MerchantID, req.Reason)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		respond(w, http.StatusBadRequest, map[string]string{"error": "ids are required"})
		return
	}
	p, _ := auth.FromContext(r.Context())
	out, err := h.service.BulkResolve(r.Context(), req.IDs, req.Action, p.MerchantID, req.Reason)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func respondErr(w http.ResponseWriter, err error) {
	respond(w, HTTPStatus(err), map[string]string{"code": Code(err), "error": publicMessage(err)})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

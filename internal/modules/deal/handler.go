package deal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/indiansinghana/iig-backend/internal/modules/auth"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the deal endpoints. r must already run auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/deals", func(r chi.Router) {
		r.Get("/", h.listForUser)
		r.Get("/{id}", h.get)
		r.Get("/{id}/access", h.evaluateAccess)
	})

	r.Route("/api/v1/merchant/deals", func(r chi.Router) {
		r.Use(auth.RequireRole(member.RoleMerchant))
		r.Get("/", h.listMine)
		r.Post("/", h.post)
		r.Get("/quota", h.postingQuota)
		r.Put("/{id}", h.update)
		r.Post("/{id}/activate", h.setActive(true))
		r.Post("/{id}/deactivate", h.setActive(false))
	})

	r.Route("/api/v1/admin/deals", func(r chi.Router) {
		r.Use(auth.RequireRole(member.RoleAdmin))
		r.Get("/pending", h.listPending)
		r.Post("/{id}/review", h.review)
	})
}

// ── Member ────────────────────────────────────────────────────────────────────

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	listings, err := h.service.ListForUser(r.Context(), p.UserID.String())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, listings)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, d)
}

func (h *Handler) evaluateAccess(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	dec, err := h.service.EvaluateAccess(r.Context(), p.UserID.String(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, dec)
}

// ── Merchant ──────────────────────────────────────────────────────────────────

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	deals, err := h.service.ListByMerchant(r.Context(), p.MerchantID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, deals)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req DealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, _ := auth.FromContext(r.Context())
	d, err := h.service.Post(r.Context(), p.MerchantID, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req DealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, _ := auth.FromContext(r.Context())
	d, err := h.service.Update(r.Context(), p.MerchantID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, d)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.FromContext(r.Context())
		d, err := h.service.SetActive(r.Context(), p.MerchantID, chi.URLParam(r, "id"), active)
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, d)
	}
}

func (h *Handler) postingQuota(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	q, err := h.service.PostingQuota(r.Context(), p.MerchantID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, q)
}

// ── Admin ─────────────────────────────────────────────────────────────────────

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	deals, err := h.service.ListPending(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, deals)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	d, err := h.service.Review(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, d)
}

func respondErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, member.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrNotOwner):
		code = http.StatusForbidden
	case errors.Is(err, ErrInvalidDeal), errors.Is(err, ErrUnknownPriority), errors.Is(err, plan.ErrNotFound):
		code = http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, ErrPostingLimitReached):
		code = http.StatusTooManyRequests
	default:
		respond(w, code, map[string]string{"error": "internal server error"})
		return
	}
	respond(w, code, map[string]string{"error": err.Error()})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

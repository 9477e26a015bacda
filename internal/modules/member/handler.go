package member

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public sign-up endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/users/register", h.registerUser)
	r.Post("/api/v1/merchants/register", h.registerMerchant)
}

// RegisterAdminRoutes mounts the override endpoints. The caller guards r.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/api/v1/admin/users/{id}", h.getUser)
	r.Put("/api/v1/admin/users/{id}/redemption-limit", h.setRedemptionLimit)
	r.Get("/api/v1/admin/merchants/{id}", h.getMerchant)
	r.Put("/api/v1/admin/merchants/{id}/deal-limit", h.setDealLimit)
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	u, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

func (h *Handler) registerMerchant(w http.ResponseWriter, r *http.Request) {
	var req RegisterMerchantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	u, m, err := h.service.RegisterMerchant(r.Context(), req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]interface{}{"user": u, "merchant": m})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (h *Handler) getMerchant(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMerchant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, m)
}

func (h *Handler) setRedemptionLimit(w http.ResponseWriter, r *http.Request) {
	var req CustomLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.SetCustomRedemptionLimit(r.Context(), chi.URLParam(r, "id"), req.Limit); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setDealLimit(w http.ResponseWriter, r *http.Request) {
	var req CustomLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.service.SetCustomDealLimit(r.Context(), chi.URLParam(r, "id"), req.Limit); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrEmailTaken):
		code = http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownPlan), errors.Is(err, ErrInvalidLimit):
		code = http.StatusBadRequest
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

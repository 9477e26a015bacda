package plan

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the read-only plan endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/plans", func(r chi.Router) {
		// ?type=user|merchant, default user
		r.Get("/", h.listPlans)
		r.Get("/{type}/{key}", h.getPlan)
	})
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, plans)
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPlan(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "key"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidPlan):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		respond(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

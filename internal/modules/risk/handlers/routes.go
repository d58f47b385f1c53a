package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk measure routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk/measures", func(r chi.Router) {
		r.Get("/", h.HandleListMeasures)
		r.Post("/", h.HandleEvaluateBatch)
		r.Post("/{measure}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleEvaluate(w, r, chi.URLParam(r, "measure"))
		})
	})
}

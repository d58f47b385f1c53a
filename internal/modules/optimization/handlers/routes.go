package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers optimiser routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimizer", func(r chi.Router) {
		r.Get("/", h.HandleGetStatus)
		r.Post("/erm", h.HandleSolveERM)
		r.Post("/rrm", h.HandleSolveRRM)
	})
}

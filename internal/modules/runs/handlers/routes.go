package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Post("/", h.HandleCreateRun)
		r.Get("/{id}", h.HandleGetRun)
		r.Delete("/{id}", h.HandleDeleteRun)
		r.Get("/{id}/plots/cost.png", h.HandleCostPlot)
		r.Get("/{id}/plots/distribution.png", h.HandleDistributionPlot)
	})
}

package handler

import "github.com/go-chi/chi/v5"

// Mount registers the user, filter and job routes on r.
func (h *UserHandler) Mount(r chi.Router) {
	r.Post("/user", h.Register)
	r.Get("/user", h.Get)

	r.Get("/user/filters", h.ListFilters)
	r.Post("/user/filters", h.AddFilter)
	r.Delete("/user/filters", h.RemoveFilter)

	r.Get("/user/jobs", h.ListJobs)
	r.Post("/user/applied", h.MarkApplied)
}

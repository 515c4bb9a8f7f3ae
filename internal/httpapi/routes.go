package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the bootstrap REST surface plus the game socket. The
// socket handler authenticates on its own (token travels in the query
// string); everything mutating goes through requireAuth.
func SetupRoutes(a *API, wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Post("/matches", a.CreateMatch)
		r.Get("/matches/{id}", a.GetMatch)

		r.Post("/tournaments", a.CreateTournament)
		r.Get("/tournaments", a.ListTournaments)
		r.Get("/tournaments/{id}", a.GetTournament)
		r.Post("/tournaments/{id}/register", a.RegisterParticipant)
		r.Post("/tournaments/{id}/start", a.StartTournament)
	})

	return r
}

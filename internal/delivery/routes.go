package delivery

import (
	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, h *AdminHandler, token string) {
	r.Route("/admin", func(pr chi.Router) {
		pr.Use(
			httputil.RecoverMiddleware,
			AuthMiddleware(token),
		)

		pr.Get("/stats", h.Stats)
		pr.Get("/users", h.Users)
		pr.Get("/conversations/{user_id}", h.Conversation)
		pr.Get("/transcripts/{user_id}", h.Transcripts)
	})
}

package serv

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

const apiPrefix = "/api/v1"

// routes mounts the whole HTTP surface. The REST and AI endpoints sit
// behind the bearer-token middleware; logon and account creation stay
// open.
func (s *Service) routes(r chi.Router) {
	if len(s.conf.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   s.conf.AllowedOrigins,
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Api-Key"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/health", s.healthHandler)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Post("/auth/logon.json", s.logonHandler)
		r.Post("/auth/account.json", s.accountHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Post("/auth/account/api-key.json", s.apiKeyHandler)

			r.Post("/rest/{method}.json", s.restHandler)
			r.Get("/rest/{schema}/tables.json", s.tablesHandler)
			r.Get("/rest/{schema}/{table}.json", s.tableMetaHandler)

			r.Post("/ai/conversation.json", s.conversationHandler)
			r.Post("/ai/rag/recall.json", s.recallHandler)
		})
	})
}

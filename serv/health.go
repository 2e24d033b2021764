package serv

import (
	"context"
	"net/http"
	"time"
)

// healthHandler pings the database pool.
func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.SQLDB().PingContext(ctx); err != nil {
		renderJSON(w, http.StatusInternalServerError, errEnvelope("database unreachable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

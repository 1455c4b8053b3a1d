package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter builds the router: the health endpoint at the root and all
// login routes under the configured prefix.
func NewRouter(oauthHandler *OAuthHandler, prefix string, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", HealthCheckHandler).Methods("GET")

	sub := r.PathPrefix(prefix).Subrouter()
	sub.Use(requestLogging(logger))
	oauthHandler.RegisterRoutes(sub)

	return r
}

func requestLogging(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		})
	}
}

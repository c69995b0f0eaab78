package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the browser front-end at origins to call the API with
// credentials, so account cookies travel with route requests.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS оборачивает весь роутер: mux не вызывает middleware для OPTIONS без маршрута.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
		// с "*" браузер не примет credentials
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}

package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows browser requests from the given origins; an empty list or "*" allows any origin
func CORS(allowedOrigins []string, exposedHeaders ...string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:       allowedOrigins,
		AllowedMethods:       []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		ExposedHeaders:       exposedHeaders,
		OptionsSuccessStatus: http.StatusNoContent,
	}).Handler
}

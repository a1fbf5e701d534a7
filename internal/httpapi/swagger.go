package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "tierd/internal/docs"
)

// MountSwagger serves the API documentation under /swagger/ when enabled.
func MountSwagger(r chi.Router) {
	if !swaggerEnabled {
		return
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"CapIot.powerfeed/internal/controller"
	"CapIot.powerfeed/internal/metrics"
)

// Middleware wraps a handler, e.g. token validation.
type Middleware func(http.Handler) http.Handler

// NewRouter registers all application routes. Data routes go through auth
// when it is non-nil; /health and /metrics never do.
func NewRouter(c *controller.DataController, m *metrics.Metrics, auth Middleware) *mux.Router {
	router := mux.NewRouter()

	protect := func(h http.HandlerFunc) http.Handler {
		if auth == nil {
			return h
		}
		return auth(h)
	}
	handle := func(path string, h http.Handler, methods ...string) {
		router.Handle(path, m.WrapHandler(path, h)).Methods(methods...)
	}

	// Measurements
	handle("/measurements", protect(c.HandleGetMeasurements), http.MethodGet)
	handle("/measurements/refresh", protect(c.HandleRefresh), http.MethodPost)
	handle("/render", protect(c.HandleRender), http.MethodGet)

	// Notifications
	handle("/notifications", protect(c.HandleListNotifications), http.MethodGet)
	handle("/notifications/{id}", protect(c.HandleDeleteNotification), http.MethodDelete)

	handle("/clock", protect(c.HandleClock), http.MethodGet)

	handle("/health", http.HandlerFunc(c.HandleHealth), http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	return router
}

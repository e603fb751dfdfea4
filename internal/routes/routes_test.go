package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"CapIot.powerfeed/internal/controller"
	"CapIot.powerfeed/internal/metrics"
	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/notify"
	"CapIot.powerfeed/internal/refresh"
	"CapIot.powerfeed/internal/timecodec"
)

type emptySnapshots struct{}

func (emptySnapshots) Latest() *refresh.Snapshot { return nil }

func (emptySnapshots) RefreshNow(context.Context) (*refresh.Snapshot, error) {
	return nil, refresh.ErrRefreshInProgress
}

type noRenderer struct{}

func (noRenderer) Render(*models.Measurements, int) (models.RenderView, error) {
	return models.RenderView{}, nil
}

func newTestRouter(auth Middleware) (http.Handler, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	c := controller.NewDataController(emptySnapshots{}, noRenderer{}, notify.NewQueue(5, time.Minute), timecodec.SystemClock{}, nil, 60, nil)
	return NewRouter(c, m, auth), m
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	router, _ := newTestRouter(nil)

	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodGet, "/measurements").Code)
	assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/measurements/refresh").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/notifications").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/notifications/missing").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/clock").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodPost, "/clock").Code)
}

func TestRoutesRecordMetrics(t *testing.T) {
	router, _ := newTestRouter(nil)
	serve(router, http.MethodGet, "/clock")

	body := serve(router, http.MethodGet, "/metrics").Body.String()
	assert.Contains(t, body, `http_requests_total{route="/clock",status="200"} 1`)
}

func TestAuthSkipsHealthAndMetrics(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router, _ := newTestRouter(deny)

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/measurements").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/render").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics").Code)
}

package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/notify"
	"CapIot.powerfeed/internal/refresh"
)

type fakeSnapshots struct {
	latest     *refresh.Snapshot
	refreshErr error
}

func (f *fakeSnapshots) Latest() *refresh.Snapshot { return f.latest }

func (f *fakeSnapshots) RefreshNow(context.Context) (*refresh.Snapshot, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.latest, nil
}

type fakeRenderer struct {
	gotWindow int
	err       error
}

func (f *fakeRenderer) Render(m *models.Measurements, windowMinutes int) (models.RenderView, error) {
	f.gotWindow = windowMinutes
	if f.err != nil {
		return models.RenderView{}, f.err
	}
	return models.RenderView{
		TimeLabels:  []string{"10:00:00"},
		Power:       []float64{12},
		Temperature: []float64{20},
		Energy:      []float64{0.1},
	}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func snapshot() *refresh.Snapshot {
	return &refresh.Snapshot{
		Measurements: &models.Measurements{
			Power: models.Series{Unit: "MW", Values: []models.Sample{{Time: "10:00:00", Value: 12}}},
		},
		Version: 7,
	}
}

func newController(s Snapshots, r Renderer, q *notify.Queue, health HealthChecker) *DataController {
	clock := fixedClock{time.Date(2024, 5, 1, 9, 5, 3, 0, time.UTC)}
	return NewDataController(s, r, q, clock, health, 60, nil)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleGetMeasurements(t *testing.T) {
	c := newController(&fakeSnapshots{latest: snapshot()}, &fakeRenderer{}, notify.NewQueue(5, time.Minute), nil)
	rec := httptest.NewRecorder()
	c.HandleGetMeasurements(rec, httptest.NewRequest(http.MethodGet, "/measurements", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 7.0, body["version"])
	assert.Contains(t, body, "measurements")
}

func TestHandleGetMeasurementsBeforeFirstLoad(t *testing.T) {
	c := newController(&fakeSnapshots{}, &fakeRenderer{}, notify.NewQueue(5, time.Minute), nil)
	rec := httptest.NewRecorder()
	c.HandleGetMeasurements(rec, httptest.NewRequest(http.MethodGet, "/measurements", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "snapshot_unavailable", decode(t, rec)["code"])
}

func TestHandleRefresh(t *testing.T) {
	loadErr := fmt.Errorf("%w: %w", models.ErrLoadFailed, &models.FetchError{Source: "feed", StatusCode: 503})
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "ok", wantCode: http.StatusOK},
		{name: "busy", err: refresh.ErrRefreshInProgress, wantCode: http.StatusConflict, wantBody: "refresh_in_progress"},
		{name: "upstream down", err: loadErr, wantCode: http.StatusBadGateway, wantBody: "upstream_unavailable"},
		{name: "unexpected", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantBody: "internal_server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(&fakeSnapshots{latest: snapshot(), refreshErr: tt.err}, &fakeRenderer{}, notify.NewQueue(5, time.Minute), nil)
			rec := httptest.NewRecorder()
			c.HandleRefresh(rec, httptest.NewRequest(http.MethodPost, "/measurements/refresh", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, decode(t, rec)["code"])
			}
		})
	}
}

func TestHandleRender(t *testing.T) {
	renderer := &fakeRenderer{}
	c := newController(&fakeSnapshots{latest: snapshot()}, renderer, notify.NewQueue(5, time.Minute), nil)

	rec := httptest.NewRecorder()
	c.HandleRender(rec, httptest.NewRequest(http.MethodGet, "/render?window_minutes=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, renderer.gotWindow)

	var resp RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.Version)
	assert.Equal(t, 5, resp.WindowMinutes)
	assert.Equal(t, []string{"10:00:00"}, resp.View.TimeLabels)

	rec = httptest.NewRecorder()
	c.HandleRender(rec, httptest.NewRequest(http.MethodGet, "/render", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, renderer.gotWindow)
}

func TestHandleRenderErrors(t *testing.T) {
	q := notify.NewQueue(5, time.Minute)

	rec := httptest.NewRecorder()
	newController(&fakeSnapshots{latest: snapshot()}, &fakeRenderer{}, q, nil).
		HandleRender(rec, httptest.NewRequest(http.MethodGet, "/render?window_minutes=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_format", decode(t, rec)["code"])

	rec = httptest.NewRecorder()
	newController(&fakeSnapshots{}, &fakeRenderer{}, q, nil).
		HandleRender(rec, httptest.NewRequest(http.MethodGet, "/render", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	newController(&fakeSnapshots{latest: snapshot()}, &fakeRenderer{err: models.ErrMisalignedView}, q, nil).
		HandleRender(rec, httptest.NewRequest(http.MethodGet, "/render", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNotificationHandlers(t *testing.T) {
	q := notify.NewQueue(5, time.Minute)
	defer q.Close()
	id := q.Notify("Error loading measurement data", notify.Options{Title: "fetch", Status: notify.StatusError})

	c := newController(&fakeSnapshots{}, &fakeRenderer{}, q, nil)
	router := mux.NewRouter()
	router.HandleFunc("/notifications", c.HandleListNotifications).Methods(http.MethodGet)
	router.HandleFunc("/notifications/{id}", c.HandleDeleteNotification).Methods(http.MethodDelete)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var items []notify.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, notify.StatusError, items[0].Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/notifications/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/notifications/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleClock(t *testing.T) {
	c := newController(&fakeSnapshots{}, &fakeRenderer{}, notify.NewQueue(5, time.Minute), nil)
	rec := httptest.NewRecorder()
	c.HandleClock(rec, httptest.NewRequest(http.MethodGet, "/clock", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seconds":32703,"time":"09:05:03"}`, rec.Body.String())
}

func TestHandleHealth(t *testing.T) {
	q := notify.NewQueue(5, time.Minute)

	rec := httptest.NewRecorder()
	newController(&fakeSnapshots{latest: snapshot()}, &fakeRenderer{}, q, nil).
		HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","snapshotVersion":7}`, rec.Body.String())

	down := healthFunc(func(context.Context) error { return errors.New("unreachable") })
	rec = httptest.NewRecorder()
	newController(&fakeSnapshots{}, &fakeRenderer{}, q, down).
		HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/notify"
	"CapIot.powerfeed/internal/refresh"
	"CapIot.powerfeed/internal/timecodec"
	"CapIot.powerfeed/internal/utils"
)

// Snapshots is the refresher as seen by the HTTP layer.
type Snapshots interface {
	Latest() *refresh.Snapshot
	RefreshNow(ctx context.Context) (*refresh.Snapshot, error)
}

// Renderer turns a snapshot into a chart view.
type Renderer interface {
	Render(m *models.Measurements, windowMinutes int) (models.RenderView, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RenderResponse is the body of GET /render.
type RenderResponse struct {
	Version       uint64            `json:"version"`
	WindowMinutes int               `json:"windowMinutes"`
	View          models.RenderView `json:"view"`
}

// ClockResponse is the body of GET /clock.
type ClockResponse struct {
	Seconds int    `json:"seconds"`
	Time    string `json:"time"`
}

// DataController handles HTTP requests for the measurement feed.
type DataController struct {
	snapshots     Snapshots
	renderer      Renderer
	queue         *notify.Queue
	clock         timecodec.Clock
	health        HealthChecker
	defaultWindow int
	logger        *slog.Logger
}

// NewDataController creates a new DataController. health may be nil.
func NewDataController(snapshots Snapshots, renderer Renderer, queue *notify.Queue, clock timecodec.Clock, health HealthChecker, defaultWindow int, logger *slog.Logger) *DataController {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataController{
		snapshots:     snapshots,
		renderer:      renderer,
		queue:         queue,
		clock:         clock,
		health:        health,
		defaultWindow: defaultWindow,
		logger:        logger,
	}
}

func snapshotUnavailable() models.APIError {
	return models.NewAPIError(models.ErrorCodeSnapshotUnavailable, "No measurement data loaded yet", nil, http.StatusServiceUnavailable)
}

// HandleGetMeasurements returns the latest snapshot.
func (c *DataController) HandleGetMeasurements(w http.ResponseWriter, r *http.Request) {
	snap := c.snapshots.Latest()
	if snap == nil {
		utils.RespondWithError(w, snapshotUnavailable())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, snap)
}

// HandleRefresh runs the pipeline now and returns the fresh snapshot.
func (c *DataController) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := c.snapshots.RefreshNow(r.Context())
	switch {
	case err == nil:
		utils.RespondWithJSON(w, http.StatusOK, snap)
	case errors.Is(err, refresh.ErrRefreshInProgress):
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeRefreshInProgress, "A refresh is already running", nil, http.StatusConflict))
	case errors.Is(err, models.ErrLoadFailed):
		utils.RespondWithError(w, models.APIErrorFromLoad(err))
	default:
		c.logger.Error("refresh failed", "error", err)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, "Refresh failed", nil, http.StatusInternalServerError))
	}
}

// HandleRender returns the downsampled chart view for ?window_minutes=N.
func (c *DataController) HandleRender(w http.ResponseWriter, r *http.Request) {
	window := c.defaultWindow
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apiErr := models.NewAPIError(models.ErrorCodeInvalidFormat, fmt.Sprintf("window_minutes must be a positive integer, got %q", raw), nil, http.StatusBadRequest)
			utils.RespondWithError(w, apiErr)
			return
		}
		window = n
	}

	snap := c.snapshots.Latest()
	if snap == nil {
		utils.RespondWithError(w, snapshotUnavailable())
		return
	}

	view, err := c.renderer.Render(snap.Measurements, window)
	if err != nil {
		c.logger.Error("render failed", "version", snap.Version, "error", err)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, fmt.Sprintf("Error rendering data: %v", err), nil, http.StatusInternalServerError))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, RenderResponse{
		Version:       snap.Version,
		WindowMinutes: window,
		View:          view,
	})
}

// HandleListNotifications returns the queued notifications, newest first.
func (c *DataController) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, c.queue.List())
}

// HandleDeleteNotification dismisses one notification.
func (c *DataController) HandleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMissingParameter, "id is required", nil, http.StatusBadRequest))
		return
	}
	if !c.queue.Remove(id) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeResourceNotFound, "Notification not found", nil, http.StatusNotFound))
		return
	}
	utils.RespondNoContent(w)
}

// HandleClock returns the current time of day.
func (c *DataController) HandleClock(w http.ResponseWriter, r *http.Request) {
	sec := timecodec.NowAsSeconds(c.clock)
	utils.RespondWithJSON(w, http.StatusOK, ClockResponse{Seconds: sec, Time: timecodec.FromSeconds(sec)})
}

// HandleHealth reports liveness and, when configured, the feed backend.
func (c *DataController) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if c.health != nil {
		if err := c.health.Health(r.Context()); err != nil {
			c.logger.Warn("health check failed", "error", err)
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	body := map[string]any{"status": "ok"}
	if snap := c.snapshots.Latest(); snap != nil {
		body["snapshotVersion"] = snap.Version
	}
	utils.RespondWithJSON(w, http.StatusOK, body)
}

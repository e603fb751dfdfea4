package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"CapIot.powerfeed/internal/feed"
	"CapIot.powerfeed/internal/metrics"
	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/notify"
	"CapIot.powerfeed/internal/timecodec"
	"CapIot.powerfeed/internal/transform"
)

// LoadFailedMessage is the notification text shown when a run fails.
const LoadFailedMessage = "Error loading measurement data"

// DataService fetches the feed and turns it into processed Measurements.
type DataService struct {
	source      feed.Source
	notifier    notify.Notifier
	logger      *slog.Logger
	units       transform.Units
	accumulator transform.Accumulator
	targets     transform.Targets
	metrics     *metrics.Metrics
}

// Option configures a DataService.
type Option func(*DataService)

// WithNotifier sets the sink for user-facing failure reports.
func WithNotifier(n notify.Notifier) Option {
	return func(s *DataService) {
		s.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *DataService) {
		s.logger = l
	}
}

// WithUnits overrides the feed calibration.
func WithUnits(u transform.Units) Option {
	return func(s *DataService) {
		s.units = u
	}
}

// WithAccumulator overrides the sampling interval and energy window.
func WithAccumulator(a transform.Accumulator) Option {
	return func(s *DataService) {
		s.accumulator = a
	}
}

// WithTargets overrides the downsampling lookup table.
func WithTargets(t transform.Targets) Option {
	return func(s *DataService) {
		s.targets = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DataService) {
		s.metrics = m
	}
}

// NewDataService creates a new DataService reading from source.
func NewDataService(source feed.Source, opts ...Option) *DataService {
	s := &DataService{
		source:      source,
		notifier:    notify.LogNotifier{},
		logger:      slog.Default(),
		units:       transform.DefaultUnits(),
		accumulator: transform.DefaultAccumulator(),
		targets:     transform.DefaultTargets(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run fetches the feed, converts both channels and computes the accumulated
// energy. Any failure produces exactly one error notification and a nil
// snapshot; the returned error wraps models.ErrLoadFailed and the typed cause.
// Run does not retry.
func (s *DataService) Run(ctx context.Context) (*models.Measurements, error) {
	start := time.Now()

	m, err := s.load(ctx)
	if err != nil {
		category := models.Category(err)
		s.notifier.Notify(LoadFailedMessage, notify.Options{
			Title:  category,
			Status: notify.StatusError,
		})
		s.logger.Error("pipeline run failed", "category", category, "error", err)
		s.metrics.RunFailed(time.Since(start), category)
		return nil, fmt.Errorf("%w: %w", models.ErrLoadFailed, err)
	}

	s.logger.Debug("pipeline run completed",
		"temperature_samples", len(m.Temperature.Values),
		"power_samples", len(m.Power.Values),
		"duration", time.Since(start))
	s.metrics.RunSucceeded(time.Since(start), len(m.Temperature.Values), len(m.Power.Values))
	return m, nil
}

func (s *DataService) load(ctx context.Context) (*models.Measurements, error) {
	doc, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	// A fetch that finished after the caller gave up is discarded.
	if err := ctx.Err(); err != nil {
		return nil, &models.FetchError{Source: "feed", Err: err}
	}

	temperature, err := convertSeries(doc.Temperature, "temperature", s.units.TemperatureToCelsius)
	if err != nil {
		return nil, err
	}
	power, err := convertSeries(doc.Power, "power", s.units.PowerToKilowatts)
	if err != nil {
		return nil, err
	}
	if err := checkAligned(temperature, power); err != nil {
		return nil, err
	}

	energy, err := s.accumulator.Accumulate(power.Values)
	if err != nil {
		return nil, err
	}

	return &models.Measurements{
		Temperature:       temperature,
		Power:             power,
		AccumulatedEnergy: energy,
	}, nil
}

// convertSeries validates every timestamp, normalizes every value and applies
// the channel's conversion. The first bad sample fails the whole series.
func convertSeries(raw feed.RawSeries, channel string, convert func(float64) float64) (models.Series, error) {
	out := models.Series{Unit: raw.Unit, Values: make([]models.Sample, len(raw.Values))}
	for i, rs := range raw.Values {
		if _, err := timecodec.ToSeconds(rs.Time); err != nil {
			return models.Series{}, fmt.Errorf("%s sample %d: %w", channel, i, err)
		}
		v, err := transform.Normalize(rs.Value)
		if err != nil {
			return models.Series{}, fmt.Errorf("%s sample %d: %w", channel, i, err)
		}
		out.Values[i] = models.Sample{Time: rs.Time, Value: convert(v)}
	}
	return out, nil
}

// checkAligned rejects channels that do not share one timeline. Rendering
// needs index-aligned channels, so a mismatch is a malformed document.
func checkAligned(temperature, power models.Series) error {
	if len(temperature.Values) != len(power.Values) {
		return &models.ParseError{
			Path:   "power.values",
			Reason: fmt.Sprintf("%d samples, temperature has %d", len(power.Values), len(temperature.Values)),
		}
	}
	for i := range power.Values {
		if power.Values[i].Time != temperature.Values[i].Time {
			return &models.ParseError{
				Path:   fmt.Sprintf("power.values[%d].time", i),
				Reason: fmt.Sprintf("%q does not match temperature %q", power.Values[i].Time, temperature.Values[i].Time),
			}
		}
	}
	return nil
}

// Render builds the chart view of m for the trailing windowMinutes and
// downsamples it with the target configured for that window. A
// non-positive window renders the whole snapshot with the default target.
func (s *DataService) Render(m *models.Measurements, windowMinutes int) (models.RenderView, error) {
	view, err := models.NewRenderView(m)
	if err != nil {
		return models.RenderView{}, err
	}

	target := s.targets.Default
	if windowMinutes > 0 {
		view, err = trimToWindow(view, windowMinutes*timecodec.SecondsPerMinute)
		if err != nil {
			return models.RenderView{}, err
		}
		target = s.targets.For(windowMinutes)
	}
	return transform.Downsample(view, target)
}

// trimToWindow keeps the points whose timestamp lies within window seconds
// of the last point, scanning back from the end like the accumulator does.
// The edge is inclusive on both: a point exactly window seconds old stays.
func trimToWindow(view models.RenderView, window int) (models.RenderView, error) {
	n := view.Len()
	if n == 0 {
		return view, nil
	}
	last, err := timecodec.ToSeconds(view.TimeLabels[n-1])
	if err != nil {
		return models.RenderView{}, err
	}

	first := n - 1
	for i := n - 2; i >= 0; i-- {
		sec, err := timecodec.ToSeconds(view.TimeLabels[i])
		if err != nil {
			return models.RenderView{}, err
		}
		if sec < last-window {
			break
		}
		first = i
	}

	indices := make([]int, 0, n-first)
	for i := first; i < n; i++ {
		indices = append(indices, i)
	}
	return view.Pick(indices), nil
}

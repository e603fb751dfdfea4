package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"CapIot.powerfeed/internal/feed"
	"CapIot.powerfeed/internal/models"
)

// Field names of the two channels inside the measurement.
const (
	FieldTemperature = "temperature"
	FieldPower       = "power"
)

// Default units used when a record carries no "unit" tag.
const (
	DefaultTemperatureUnit = "dK"
	DefaultPowerUnit       = "MW"
)

// InfluxDBSource reads the feed document from an InfluxDB bucket. It is a
// feed.Source: records of the temperature and power fields of one
// measurement become the two series, timestamps rendered as HH:MM:SS.
type InfluxDBSource struct {
	client      influxdb2.Client
	org         string
	bucket      string
	measurement string
	lookback    time.Duration
	location    *time.Location
	logger      *slog.Logger
}

// InfluxOption configures an InfluxDBSource.
type InfluxOption func(*InfluxDBSource)

// WithMeasurement sets the measurement to read. Defaults to "sensor_data".
func WithMeasurement(name string) InfluxOption {
	return func(s *InfluxDBSource) {
		s.measurement = name
	}
}

// WithLookback sets how far back the range query reaches. Defaults to 1h.
func WithLookback(d time.Duration) InfluxOption {
	return func(s *InfluxDBSource) {
		s.lookback = d
	}
}

// WithLocation sets the zone used for time-of-day labels. Defaults to UTC.
func WithLocation(loc *time.Location) InfluxOption {
	return func(s *InfluxDBSource) {
		s.location = loc
	}
}

func WithInfluxLogger(l *slog.Logger) InfluxOption {
	return func(s *InfluxDBSource) {
		s.logger = l
	}
}

// NewInfluxDBSource creates a new InfluxDBSource.
func NewInfluxDBSource(url, token, org, bucket string, opts ...InfluxOption) *InfluxDBSource {
	s := &InfluxDBSource{
		client:      influxdb2.NewClient(url, token),
		org:         org,
		bucket:      bucket,
		measurement: "sensor_data",
		lookback:    time.Hour,
		location:    time.UTC,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the underlying client.
func (s *InfluxDBSource) Close() {
	s.client.Close()
}

// Health pings the server.
func (s *InfluxDBSource) Health(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return &models.FetchError{Source: "influxdb", Err: err}
	}
	if !ok {
		return &models.FetchError{Source: "influxdb", Err: fmt.Errorf("ping failed")}
	}
	return nil
}

func (s *InfluxDBSource) fluxQuery() string {
	return fmt.Sprintf(`
		from(bucket: %q)
		|> range(start: -%s)
		|> filter(fn: (r) => r["_measurement"] == %q)
		|> filter(fn: (r) => r["_field"] == %q or r["_field"] == %q)
		|> sort(columns: ["_time"])
	`, s.bucket, s.lookback, s.measurement, FieldTemperature, FieldPower)
}

// Fetch queries both fields and assembles a feed document.
func (s *InfluxDBSource) Fetch(ctx context.Context) (*feed.Document, error) {
	fluxQuery := s.fluxQuery()
	s.logger.Debug("executing InfluxDB query", "bucket", s.bucket, "measurement", s.measurement)

	result, err := s.client.QueryAPI(s.org).Query(ctx, fluxQuery)
	if err != nil {
		return nil, &models.FetchError{Source: "influxdb", Err: err}
	}
	defer result.Close()

	doc := &feed.Document{
		Temperature: feed.RawSeries{Unit: DefaultTemperatureUnit, Values: []feed.RawSample{}},
		Power:       feed.RawSeries{Unit: DefaultPowerUnit, Values: []feed.RawSample{}},
	}
	for result.Next() {
		if err := appendRecord(doc, result.Record(), s.location); err != nil {
			return nil, err
		}
	}
	if err := result.Err(); err != nil {
		return nil, &models.FetchError{Source: "influxdb", Err: err}
	}
	return doc, nil
}

// appendRecord adds one query record to the matching series of doc.
// Records of other fields are ignored.
func appendRecord(doc *feed.Document, record *query.FluxRecord, loc *time.Location) error {
	var series *feed.RawSeries
	switch record.Field() {
	case FieldTemperature:
		series = &doc.Temperature
	case FieldPower:
		series = &doc.Power
	default:
		return nil
	}
	path := fmt.Sprintf("%s.values[%d]", record.Field(), len(series.Values))

	var value any
	switch v := record.Value().(type) {
	case float64:
		value = v
	case int64:
		value = float64(v)
	case uint64:
		value = float64(v)
	case string:
		value = v
	case nil:
		return &models.ParseError{Path: path + ".value", Reason: "is missing"}
	default:
		return &models.ParseError{Path: path + ".value", Reason: fmt.Sprintf("unsupported type %T", v)}
	}

	if unit, ok := record.ValueByKey("unit").(string); ok && unit != "" {
		series.Unit = unit
	}
	series.Values = append(series.Values, feed.RawSample{
		Time:  record.Time().In(loc).Format("15:04:05"),
		Value: value,
	})
	return nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"CapIot.powerfeed/internal/logging"
	"CapIot.powerfeed/internal/transform"
)

// Feed source kinds accepted in FEED_SOURCE.
const (
	SourceHTTP   = "http"
	SourceFile   = "file"
	SourceInflux = "influx"
)

// Config holds the application's configuration.
type Config struct {
	FeedSource  string
	FeedURL     string
	FeedFile    string
	FeedTimeout time.Duration

	InfluxDBURL         string
	InfluxDBToken       string
	InfluxDBOrg         string
	InfluxDBBucket      string
	InfluxDBMeasurement string
	InfluxDBLookback    time.Duration
	TimeZone            *time.Location

	Port               string
	CORSAllowedOrigins []string
	Auth0Issuer        string
	Auth0Audience      string
	RedisAddr          string
	RedisKey           string

	RefreshInterval      time.Duration
	Units                transform.Units
	Accumulator          transform.Accumulator
	Targets              transform.Targets
	DefaultWindowMinutes int
	ToastMaxItems        int
	ToastTimeout         time.Duration

	LogLevel  slog.Level
	LogFormat string
}

// AuthEnabled reports whether both Auth0 settings are present.
func (c Config) AuthEnabled() bool {
	return c.Auth0Issuer != "" && c.Auth0Audience != ""
}

// LoadConfig loads a .env file when present, then reads the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on system environment variables")
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from environment variables.
func FromEnv() (Config, error) {
	p := &parser{}

	cfg := Config{
		FeedSource:  strings.ToLower(getEnv("FEED_SOURCE", SourceHTTP)),
		FeedURL:     os.Getenv("FEED_URL"),
		FeedFile:    os.Getenv("FEED_FILE"),
		FeedTimeout: p.getDuration("FEED_TIMEOUT", 10*time.Second),

		InfluxDBURL:         os.Getenv("INFLUXDB_URL"),
		InfluxDBToken:       os.Getenv("INFLUXDB_TOKEN"),
		InfluxDBOrg:         os.Getenv("INFLUXDB_ORG"),
		InfluxDBBucket:      os.Getenv("INFLUXDB_BUCKET"),
		InfluxDBMeasurement: getEnv("INFLUXDB_MEASUREMENT", "sensor_data"),
		InfluxDBLookback:    p.getDuration("INFLUXDB_LOOKBACK", time.Hour),

		Port:               getEnv("PORT", "8000"),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),
		Auth0Issuer:        os.Getenv("AUTH0_ISSUER"),
		Auth0Audience:      os.Getenv("AUTH0_AUDIENCE"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisKey:           getEnv("REDIS_REFRESH_KEY", "powerfeed:refresh"),

		RefreshInterval: p.getDuration("REFRESH_INTERVAL", 5*time.Second),
		Units: transform.Units{
			TemperatureScale:  p.getFloat("TEMPERATURE_SCALE", 0.1),
			TemperatureOffset: p.getFloat("TEMPERATURE_OFFSET", 273.15),
			PowerScale:        p.getFloat("POWER_SCALE", 1000),
		},
		Accumulator: transform.Accumulator{
			IntervalSeconds: p.getInt("SAMPLE_INTERVAL_SECONDS", 5),
			WindowSeconds:   p.getInt("ENERGY_WINDOW_SECONDS", 3600),
		},
		DefaultWindowMinutes: p.getInt("DEFAULT_WINDOW_MINUTES", 60),
		ToastMaxItems:        p.getInt("TOAST_MAX_ITEMS", 5),
		ToastTimeout:         p.getDuration("TOAST_TIMEOUT", 5*time.Second),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
	}

	if raw := os.Getenv("DOWNSAMPLE_TARGETS"); raw != "" {
		targets, err := ParseTargets(raw)
		if err != nil {
			p.fail("DOWNSAMPLE_TARGETS", err)
		}
		cfg.Targets = targets
	} else {
		cfg.Targets = transform.DefaultTargets()
	}

	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		p.fail("LOG_LEVEL", err)
	}
	cfg.LogLevel = level

	tz, err := time.LoadLocation(getEnv("TIME_ZONE", "UTC"))
	if err != nil {
		p.fail("TIME_ZONE", err)
	}
	cfg.TimeZone = tz

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the source selection and the numeric constants.
func (c Config) Validate() error {
	var errs []error

	switch c.FeedSource {
	case SourceHTTP:
		if c.FeedURL == "" {
			errs = append(errs, errors.New("FEED_URL must be set when FEED_SOURCE=http"))
		}
	case SourceFile:
		if c.FeedFile == "" {
			errs = append(errs, errors.New("FEED_FILE must be set when FEED_SOURCE=file"))
		}
	case SourceInflux:
		if c.InfluxDBURL == "" || c.InfluxDBToken == "" || c.InfluxDBOrg == "" || c.InfluxDBBucket == "" {
			errs = append(errs, errors.New("InfluxDB configuration is incomplete. Please set INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG and INFLUXDB_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("FEED_SOURCE must be one of http, file, influx (got %q)", c.FeedSource))
	}

	if (c.Auth0Issuer == "") != (c.Auth0Audience == "") {
		errs = append(errs, errors.New("AUTH0_ISSUER and AUTH0_AUDIENCE must be set together"))
	}

	positive := map[string]float64{
		"REFRESH_INTERVAL":        c.RefreshInterval.Seconds(),
		"TEMPERATURE_SCALE":       c.Units.TemperatureScale,
		"POWER_SCALE":             c.Units.PowerScale,
		"SAMPLE_INTERVAL_SECONDS": float64(c.Accumulator.IntervalSeconds),
		"ENERGY_WINDOW_SECONDS":   float64(c.Accumulator.WindowSeconds),
		"DEFAULT_WINDOW_MINUTES":  float64(c.DefaultWindowMinutes),
		"TOAST_MAX_ITEMS":         float64(c.ToastMaxItems),
		"TOAST_TIMEOUT":           c.ToastTimeout.Seconds(),
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.Targets.Default <= 0 {
		errs = append(errs, errors.New("DOWNSAMPLE_TARGETS default must be positive"))
	}
	return errors.Join(errs...)
}

// ParseTargets reads a downsampling table such as
// "1:12,5:30,10:60,30:90,60:120,default:150". The default entry is required.
func ParseTargets(raw string) (transform.Targets, error) {
	t := transform.Targets{ByWindow: map[int]int{}}
	for _, entry := range splitAndTrim(raw, ",") {
		key, value, ok := strings.Cut(entry, ":")
		if !ok {
			return transform.Targets{}, fmt.Errorf("entry %q is not window:target", entry)
		}
		target, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || target <= 0 {
			return transform.Targets{}, fmt.Errorf("entry %q has an invalid target", entry)
		}
		key = strings.TrimSpace(key)
		if key == "default" {
			t.Default = target
			continue
		}
		window, err := strconv.Atoi(key)
		if err != nil || window <= 0 {
			return transform.Targets{}, fmt.Errorf("entry %q has an invalid window", entry)
		}
		t.ByWindow[window] = target
	}
	if t.Default == 0 {
		return transform.Targets{}, errors.New("missing default entry")
	}
	return t, nil
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return i
}

func (p *parser) getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Package transform holds the pure numeric stages of the pipeline:
// value normalization, unit conversion, energy accumulation and
// shape-preserving downsampling.
package transform

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"CapIot.powerfeed/internal/models"
)

var errNotFinite = errors.New("not a finite number")

// Normalize coerces a feed value into a float64. Strings may use a decimal
// comma; only the first comma is replaced.
func Normalize(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		return parseDecimal(string(v), raw)
	case string:
		return parseDecimal(v, raw)
	default:
		return 0, &models.MalformedValueError{Raw: raw, Err: errors.New("unsupported value type")}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &models.MalformedValueError{Raw: raw, Err: errNotFinite}
	}
	return f, nil
}

func parseDecimal(s string, raw any) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &models.MalformedValueError{Raw: raw, Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &models.MalformedValueError{Raw: raw, Err: errNotFinite}
	}
	return f, nil
}

// Package timecodec converts between "HH:MM:SS" wall-clock strings and
// seconds since midnight.
package timecodec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"CapIot.powerfeed/internal/models"
)

const (
	SecondsPerMinute = 60
	SecondsPerHour   = 3600
	SecondsPerDay    = 86400
)

// ToSeconds parses "HH:MM:SS" into seconds since midnight (0..86399).
func ToSeconds(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, &models.FormatError{Input: s, Reason: fmt.Sprintf("expected 3 fields, got %d", len(parts))}
	}

	limits := [3]int{23, 59, 59}
	names := [3]string{"hours", "minutes", "seconds"}
	var fields [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return 0, &models.FormatError{Input: s, Reason: fmt.Sprintf("%s field %q is not a number", names[i], p)}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, &models.FormatError{Input: s, Reason: fmt.Sprintf("%s field %q is not a number", names[i], p)}
		}
		if n < 0 || n > limits[i] {
			return 0, &models.FormatError{Input: s, Reason: fmt.Sprintf("%s field %d out of range 0-%d", names[i], n, limits[i])}
		}
		fields[i] = n
	}

	return fields[0]*SecondsPerHour + fields[1]*SecondsPerMinute + fields[2], nil
}

// isDigits reports whether p is one or two ASCII digits. Signs and spaces
// are not part of the wire format.
func isDigits(p string) bool {
	if len(p) == 0 || len(p) > 2 {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}

// FromSeconds formats seconds since midnight as zero-padded "HH:MM:SS".
// Values outside a day wrap around.
func FromSeconds(sec int) string {
	sec %= SecondsPerDay
	if sec < 0 {
		sec += SecondsPerDay
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/SecondsPerHour, (sec%SecondsPerHour)/SecondsPerMinute, sec%SecondsPerMinute)
}

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NowAsSeconds returns the clock's current second of the day.
func NowAsSeconds(c Clock) int {
	now := c.Now()
	return now.Hour()*SecondsPerHour + now.Minute()*SecondsPerMinute + now.Second()
}

// NowAsHMS returns the clock's current time as "HH:MM:SS".
func NowAsHMS(c Clock) string {
	return FromSeconds(NowAsSeconds(c))
}

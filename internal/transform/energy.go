package transform

import (
	"fmt"

	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/timecodec"
)

// Defaults of the feed's sampling cadence and the energy window.
const (
	DefaultIntervalSeconds = 5
	DefaultWindowSeconds   = 3600
)

// Accumulator derives the trailing-window energy of a power series.
//
// Each power sample stands for one IntervalSeconds slice. The window of a
// sample at t is the closed range [t-WindowSeconds, t], so on a regular feed
// a full window holds WindowSeconds/IntervalSeconds+1 slices. Timestamps are seconds of the day and are not unwrapped at midnight: a
// sample shortly after midnight gets a negative window start, so the
// comparison against the previous day's samples is meaningless there.
type Accumulator struct {
	IntervalSeconds int
	WindowSeconds   int
}

// DefaultAccumulator returns a one-hour accumulator for a 5 s feed.
func DefaultAccumulator() Accumulator {
	return Accumulator{IntervalSeconds: DefaultIntervalSeconds, WindowSeconds: DefaultWindowSeconds}
}

// Accumulate returns, for every power sample (kW), the energy (kWh) of the
// samples inside its trailing window. The output is index-aligned with the
// input and carries the same timestamps. A malformed timestamp fails the
// whole call.
func (a Accumulator) Accumulate(power []models.Sample) ([]models.Sample, error) {
	if a.IntervalSeconds <= 0 || a.WindowSeconds <= 0 {
		return nil, fmt.Errorf("invalid accumulator: interval=%ds window=%ds", a.IntervalSeconds, a.WindowSeconds)
	}

	seconds := make([]int, len(power))
	for i, p := range power {
		s, err := timecodec.ToSeconds(p.Time)
		if err != nil {
			return nil, fmt.Errorf("power sample %d: %w", i, err)
		}
		seconds[i] = s
	}

	intervalHours := float64(a.IntervalSeconds) / timecodec.SecondsPerHour
	out := make([]models.Sample, len(power))
	for i, p := range power {
		windowStart := seconds[i] - a.WindowSeconds

		var energy float64
		// Samples are expected in time order, so the first one outside the
		// window ends the scan.
		for j := i; j >= 0; j-- {
			if seconds[j] < windowStart {
				break
			}
			energy += power[j].Value * intervalHours
		}

		out[i] = models.Sample{Time: p.Time, Value: energy}
	}
	return out, nil
}

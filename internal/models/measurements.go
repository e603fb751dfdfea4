package models

// Sample is one timestamped reading. Time is a wall-clock "HH:MM:SS" string.
type Sample struct {
	Time  string  `json:"time" yaml:"time"`
	Value float64 `json:"value" yaml:"value"`
}

// Series is a unit-tagged sequence of samples for one measured quantity.
// Unit is informational; conversions are chosen by channel, not by unit.
type Series struct {
	Unit   string   `json:"unit" yaml:"unit"`
	Values []Sample `json:"values" yaml:"values"`
}

// Measurements is one processed snapshot of the feed.
// AccumulatedEnergy is nil until the pipeline computes it; afterwards it has
// the same length and timestamps as Power.Values.
type Measurements struct {
	Temperature       Series   `json:"temperature"`
	Power             Series   `json:"power"`
	AccumulatedEnergy []Sample `json:"accumulatedEnergy,omitempty"`
}

package transform

// Default calibration constants of the feed.
const (
	DefaultTemperatureScale  = 0.1    // raw temperature is deci-Kelvin
	DefaultTemperatureOffset = 273.15 // Kelvin to Celsius
	DefaultPowerScale        = 1000   // feed scale to kilowatts
)

// Units applies the feed's fixed affine conversions. The conversion is picked
// by channel, never by the series' unit string.
type Units struct {
	TemperatureScale  float64
	TemperatureOffset float64
	PowerScale        float64
}

// DefaultUnits returns the calibration used by the production feed.
func DefaultUnits() Units {
	return Units{
		TemperatureScale:  DefaultTemperatureScale,
		TemperatureOffset: DefaultTemperatureOffset,
		PowerScale:        DefaultPowerScale,
	}
}

// TemperatureToCelsius converts a raw temperature code to degrees Celsius.
func (u Units) TemperatureToCelsius(raw float64) float64 {
	return raw*u.TemperatureScale - u.TemperatureOffset
}

// PowerToKilowatts converts a raw power reading to kilowatts.
func (u Units) PowerToKilowatts(raw float64) float64 {
	return raw * u.PowerScale
}

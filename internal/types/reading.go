package types

import "time"

// Analog channel bounds. Raw values outside this range indicate a wiring or
// conversion fault and are replaced with per-channel fallbacks by the gateway.
const (
	AnalogMin = 0
	AnalogMax = 1023
)

// Reading is the per-cycle snapshot of all sensor channels. It is overwritten
// once per sensing cycle and owned exclusively by the controller; the
// decision engine, renderer, and uploader only ever see it by value.
//
// Valid is an AND over all sub-checks: it is false if any individual read
// failed, even though the remaining fields still carry usable fallback or
// stale data.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Light       int       `json:"light"`
	Rain        int       `json:"rain"`
	AirRaw      int       `json:"air_raw"`
	AirPPM      float64   `json:"air_ppm"`
	Soil        int       `json:"soil"`
	Valid       bool      `json:"valid"`
	Timestamp   time.Time `json:"timestamp"`
}

// InAnalogRange reports whether a raw analog value is inside the valid
// sensor range.
func InAnalogRange(v int) bool {
	return v >= AnalogMin && v <= AnalogMax
}

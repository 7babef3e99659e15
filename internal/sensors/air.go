// Package sensors turns raw hardware reads into a validated Reading. The
// gateway owns the fixed check order, per-sensor fallbacks and fault
// reporting; the air model owns the gas-concentration math.
package sensors

import (
	"math"

	"pumphouse/internal/types"
)

// MQ-135 power-law model constants. Scale and exponent come from the
// sensor's datasheet curve for CO2; the load resistance is the 10k on the
// breakout board.
const (
	airLoadResistance = 10.0
	airScale          = 116.6020682
	airExponent       = -2.769034857

	// DefaultRZero is the clean-air sensor resistance in kilo-ohms assumed
	// until the board is calibrated with the aircal tool.
	DefaultRZero = 76.63

	// atmosphericCO2PPM anchors calibration: a reading taken in clean air is
	// defined to mean this concentration.
	atmosphericCO2PPM = 397.13
)

// AirModel converts raw MQ-135 readings to a CO2-equivalent concentration.
// The conversion is deterministic: no smoothing, no state.
type AirModel struct {
	rZero float64
}

// NewAirModel creates a model around the calibrated clean-air resistance.
// Non-positive values fall back to DefaultRZero.
func NewAirModel(rZero float64) *AirModel {
	if rZero <= 0 {
		rZero = DefaultRZero
	}
	return &AirModel{rZero: rZero}
}

// RZero returns the clean-air resistance the model was built with.
func (m *AirModel) RZero() float64 {
	return m.rZero
}

// PPM converts a raw analog value to parts per million. Raw values at or
// beyond the rail (<=0, >=1023) have no defined resistance and map to 0.
// The result is strictly decreasing in the raw value: more conductive
// sensor, dirtier air, lower raw.
func (m *AirModel) PPM(raw int) float64 {
	if raw <= types.AnalogMin || raw >= types.AnalogMax {
		return 0
	}
	rs := airLoadResistance * float64(raw) / float64(types.AnalogMax-raw)
	return airScale * math.Pow(rs/m.rZero, airExponent)
}

// BaselineFromRaw derives the clean-air resistance from a raw reading taken
// in known-clean air, such that a model built on the result reports
// atmospheric concentration for that reading. Rail values return 0.
func BaselineFromRaw(raw int) float64 {
	if raw <= types.AnalogMin || raw >= types.AnalogMax {
		return 0
	}
	rs := airLoadResistance * float64(raw) / float64(types.AnalogMax-raw)
	return rs / math.Pow(atmosphericCO2PPM/airScale, 1.0/airExponent)
}

package display

import "pumphouse/internal/types"

// Default band edges: the raw range split in thirds.
const (
	bandLow  = 341
	bandHigh = 682
)

// LevelFor maps a raw value onto LOW, MEDIUM or HIGH bands. For sensors
// where a lower raw value means more of the phenomenon (rain, light), pass
// inverted so the label tracks the phenomenon rather than the electronics.
func LevelFor(value, low, high int, inverted bool) types.Level {
	if inverted {
		value = types.AnalogMax - value
	}
	switch {
	case value < low:
		return types.LevelLow
	case value < high:
		return types.LevelMedium
	default:
		return types.LevelHigh
	}
}

// level applies the default thirds bands.
func level(value int, inverted bool) types.Level {
	return LevelFor(value, bandLow, bandHigh, inverted)
}

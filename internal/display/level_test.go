package display

import (
	"testing"

	"pumphouse/internal/types"
)

// TestLevelForBands verifies the band partition.
func TestLevelForBands(t *testing.T) {
	tests := []struct {
		value int
		want  types.Level
	}{
		{value: 0, want: types.LevelLow},
		{value: 340, want: types.LevelLow},
		{value: 341, want: types.LevelMedium},
		{value: 681, want: types.LevelMedium},
		{value: 682, want: types.LevelHigh},
		{value: 1023, want: types.LevelHigh},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.value, 341, 682, false); got != tt.want {
			t.Errorf("LevelFor(%d) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

// TestLevelForInverted verifies the mirror for low-means-more sensors.
func TestLevelForInverted(t *testing.T) {
	tests := []struct {
		value int
		want  types.Level
	}{
		{value: 0, want: types.LevelHigh},
		{value: 341, want: types.LevelHigh},
		{value: 342, want: types.LevelMedium},
		{value: 682, want: types.LevelMedium},
		{value: 683, want: types.LevelLow},
		{value: 1023, want: types.LevelLow},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.value, 341, 682, true); got != tt.want {
			t.Errorf("LevelFor(%d, inverted) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

// TestLevelForMirrorSymmetry verifies the inverted mapping is the exact
// mirror of the direct one over the whole range.
func TestLevelForMirrorSymmetry(t *testing.T) {
	for v := 0; v <= 1023; v++ {
		direct := LevelFor(v, 341, 682, false)
		mirrored := LevelFor(1023-v, 341, 682, true)
		if direct != mirrored {
			t.Fatalf("asymmetry at %d: direct %s, mirrored %s", v, direct, mirrored)
		}
	}
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackBeatGridBounds(t *testing.T) {
	cases := []struct {
		duration float64
		interval float64
	}{
		{12, 0.5},  // 12/24 = 0.5, at the floor
		{6, 0.5},   // 6/24 = 0.25 clamps up to the floor
		{48, 2.0},  // 48/24 = 2.0, at the ceiling
		{120, 2.0}, // 120/24 = 5.0 clamps down to the ceiling
	}

	for _, tc := range cases {
		grid := FallbackBeatGrid(tc.duration)
		require.NotEmpty(t, grid, "duration %.0f", tc.duration)

		assert.InDelta(t, tc.interval, grid[0], 1e-9)
		for i := 1; i < len(grid); i++ {
			assert.InDelta(t, tc.interval, grid[i]-grid[i-1], 1e-9)
		}

		// All ticks fall strictly inside the clip.
		assert.Greater(t, grid[0], 0.0)
		assert.Less(t, grid[len(grid)-1], tc.duration)
	}
}

func TestFallbackBeatGridDegenerate(t *testing.T) {
	assert.Nil(t, FallbackBeatGrid(0))
	assert.Nil(t, FallbackBeatGrid(-3))
}

func TestFallbackBeatGridDeterministic(t *testing.T) {
	assert.Equal(t, FallbackBeatGrid(37.5), FallbackBeatGrid(37.5))
}

func TestQuantizeFrames(t *testing.T) {
	frames := QuantizeFrames([]float64{-1, 0, 0.5, 2.04, 100}, 900)

	require.Len(t, frames, 5)
	assert.Equal(t, 0, frames[0], "negative timestamps clamp to zero")
	assert.Equal(t, 0, frames[1])
	assert.Equal(t, 15, frames[2])
	assert.Equal(t, 61, frames[3], "rounds to nearest frame")
	assert.Equal(t, 900, frames[4], "clamps to the final frame")
}

func TestQuantizeFramesEmpty(t *testing.T) {
	assert.Empty(t, QuantizeFrames(nil, 900))
}

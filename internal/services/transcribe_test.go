package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

func TestMergeWordTimings(t *testing.T) {
	cues := []models.CaptionCue{
		{Start: 0, End: 2, Text: "hello there"},
		{Start: 2, End: 4, Text: "general viewer"},
	}
	words := []models.WordTiming{
		{Word: "hello", Start: 0.1, End: 0.8},
		{Word: "there", Start: 0.8, End: 1.9},
		{Word: "general", Start: 2.1, End: 2.9},
		{Word: "viewer", Start: 2.9, End: 3.8},
	}

	merged := MergeWordTimings(cues, words)

	require.Len(t, merged, 2)
	assert.Len(t, merged[0].Words, 2)
	assert.Len(t, merged[1].Words, 2)
	assert.Equal(t, "hello", merged[0].Words[0].Word)
	assert.Equal(t, "viewer", merged[1].Words[1].Word)

	// Originals are untouched.
	assert.Empty(t, cues[0].Words)
}

func TestMergeWordTimingsOutOfRangeDropped(t *testing.T) {
	cues := []models.CaptionCue{{Start: 0, End: 1, Text: "short"}}
	words := []models.WordTiming{
		{Word: "short", Start: 0.2, End: 0.6},
		{Word: "orphan", Start: 5.0, End: 5.5}, // midpoint outside every cue
	}

	merged := MergeWordTimings(cues, words)
	require.Len(t, merged[0].Words, 1)
	assert.Equal(t, "short", merged[0].Words[0].Word)
}

func TestMergeWordTimingsBoundaryMidpoint(t *testing.T) {
	// A word whose midpoint lands exactly on a cue boundary belongs to the
	// later cue (intervals are half-open).
	cues := []models.CaptionCue{
		{Start: 0, End: 2, Text: "first"},
		{Start: 2, End: 4, Text: "second"},
	}
	words := []models.WordTiming{{Word: "edge", Start: 1.5, End: 2.5}}

	merged := MergeWordTimings(cues, words)
	assert.Empty(t, merged[0].Words)
	require.Len(t, merged[1].Words, 1)
}

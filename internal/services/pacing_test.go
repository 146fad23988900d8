package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

func TestClampDurationFrames(t *testing.T) {
	// 10 seconds of narration lands below the short bucket's 30s floor.
	assert.Equal(t, 30*VideoFPS, ClampDurationFrames(10*VideoFPS, models.BucketShort))

	// Above the ceiling clamps down.
	assert.Equal(t, 90*VideoFPS, ClampDurationFrames(120*VideoFPS, models.BucketShort))

	// In range passes through.
	assert.Equal(t, 60*VideoFPS, ClampDurationFrames(60*VideoFPS, models.BucketShort))
	assert.Equal(t, 120*VideoFPS, ClampDurationFrames(120*VideoFPS, models.BucketMedium))

	// Unknown bucket uses the long bucket's policy.
	assert.Equal(t, 180*VideoFPS, ClampDurationFrames(60*VideoFPS, models.DurationBucket("mystery")))
	assert.Equal(t, 600*VideoFPS, ClampDurationFrames(700*VideoFPS, models.DurationBucket("mystery")))
}

func TestTransitionOverlapFrames(t *testing.T) {
	assert.Equal(t, 15, TransitionOverlapFrames(models.PacingSmooth))
	assert.Equal(t, 12, TransitionOverlapFrames(models.PacingDramatic))
	assert.Equal(t, 10, TransitionOverlapFrames(models.PacingRhythmic))
	assert.Equal(t, 8, TransitionOverlapFrames(models.PacingViral))

	// Unknown styles behave as smooth.
	assert.Equal(t, 15, TransitionOverlapFrames(models.PacingStyle("jazzy")))
}

func TestBuildScenesEqualSplit(t *testing.T) {
	assets := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}
	total := 900 // 30s
	overlap := 15

	scenes, err := BuildScenes(assets, total, nil, models.PacingSmooth, overlap)
	require.NoError(t, err)
	require.Len(t, scenes, 4)

	// Every asset gets identical widened screen time.
	perScene := (total + 3*overlap) / 4
	for i, s := range scenes {
		assert.Equal(t, assets[i], s.AssetRef)
		assert.Equal(t, perScene, s.DurationFrames)
		assert.Equal(t, i, s.Index)
		assert.Greater(t, s.DurationFrames, 0)
	}

	// The perceived total after cross-fading (sum minus overlaps) stays
	// within one rounding step per scene of the target.
	perceived := models.TotalSceneFrames(scenes) - 3*overlap
	assert.LessOrEqual(t, perceived, total)
	assert.GreaterOrEqual(t, perceived, total-len(assets))
}

func TestBuildScenesZeroAssets(t *testing.T) {
	scenes, err := BuildScenes(nil, 900, nil, models.PacingSmooth, 15)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, PlaceholderAssetRef, scenes[0].AssetRef)
	assert.Equal(t, 900, scenes[0].DurationFrames)
}

func TestBuildScenesInvalidDuration(t *testing.T) {
	_, err := BuildScenes([]string{"a.jpg"}, 0, nil, models.PacingSmooth, 15)
	assert.Error(t, err)
}

func TestBuildScenesWithCutPoints(t *testing.T) {
	// Two assets across three segments: round-robin wraps to the first.
	scenes, err := BuildScenes([]string{"a.jpg", "b.jpg"}, 900, []int{300, 600}, models.PacingRhythmic, 10)
	require.NoError(t, err)
	require.Len(t, scenes, 3)

	assert.Equal(t, "a.jpg", scenes[0].AssetRef)
	assert.Equal(t, "b.jpg", scenes[1].AssetRef)
	assert.Equal(t, "a.jpg", scenes[2].AssetRef)

	for _, s := range scenes {
		assert.Equal(t, 300, s.DurationFrames)
	}
}

func TestBuildScenesCutPointsOutOfRangeDropped(t *testing.T) {
	// Boundaries at or beyond the ends are ignored.
	scenes, err := BuildScenes([]string{"a.jpg"}, 600, []int{0, 300, 600, 900}, models.PacingRhythmic, 10)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, 300, scenes[0].DurationFrames)
	assert.Equal(t, 300, scenes[1].DurationFrames)
}

func TestDetectStrongBeatsDramatic(t *testing.T) {
	// 20 beats, one every 15 frames. Dramatic emphasizes every 2nd beat.
	beats := make([]int, 20)
	for i := range beats {
		beats[i] = (i + 1) * 15
	}

	strong := DetectStrongBeats(beats, models.PacingDramatic)
	assert.Len(t, strong, 10)
	assert.Equal(t, 30, strong[0])
	assert.Equal(t, 300, strong[9])
}

func TestDetectStrongBeatsRhythmic(t *testing.T) {
	beats := make([]int, 20)
	for i := range beats {
		beats[i] = (i + 1) * 15
	}

	// Rhythmic emphasizes every 4th beat: gap 15 * period 4 = 60 frames,
	// exactly at the density ceiling.
	strong := DetectStrongBeats(beats, models.PacingRhythmic)
	assert.Len(t, strong, 5)
	assert.Equal(t, 60, strong[0])
}

func TestDetectStrongBeatsDensityFloor(t *testing.T) {
	// Sparse beats (1.5s apart): the nominal every-4th period would put
	// strong beats 6s apart, so the period collapses to keep them within
	// 2 seconds.
	beats := make([]int, 10)
	for i := range beats {
		beats[i] = (i + 1) * 45
	}

	strong := DetectStrongBeats(beats, models.PacingRhythmic)
	require.NotEmpty(t, strong)

	// Period reduces to 60/45 = 1: every beat is strong.
	assert.Len(t, strong, 10)
}

func TestDetectStrongBeatsEmpty(t *testing.T) {
	assert.Nil(t, DetectStrongBeats(nil, models.PacingDramatic))
}

func TestBuildBeatSync(t *testing.T) {
	beats := []float64{0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0}
	total := 900

	sync := BuildBeatSync(beats, total, models.PacingDramatic)

	require.Len(t, sync.BeatFrames, len(beats))
	for _, f := range sync.BeatFrames {
		assert.GreaterOrEqual(t, f, 0)
		assert.LessOrEqual(t, f, total)
	}

	// Strong beats are a subset of beats.
	beatSet := map[int]bool{}
	for _, f := range sync.BeatFrames {
		beatSet[f] = true
	}
	for _, f := range sync.StrongBeatFrames {
		assert.True(t, beatSet[f], "strong beat %d not in beat set", f)
	}

	// Cut points are empty under the current policy: beats inform emphasis,
	// not segment boundaries.
	assert.Empty(t, sync.CutFrames)
}

func TestBuildBeatSyncDeterministic(t *testing.T) {
	beats := []float64{0.5, 1.1, 1.9, 2.4, 3.3}

	first := BuildBeatSync(beats, 900, models.PacingViral)
	second := BuildBeatSync(beats, 900, models.PacingViral)

	assert.Equal(t, first, second)
}

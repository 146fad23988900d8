package services

import (
	"fmt"
	"sort"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

// ---------------------------------------------------------------------------
// Pacing Engine: converts beat/duration data and a pacing style into an
// ordered list of per-asset display durations (scenes).
// ---------------------------------------------------------------------------

const (
	// maxStrongBeatGapFrames caps how far apart strong beats may land
	// (~2 seconds at 30fps). When the nominal style period would exceed it,
	// the period shrinks to keep a minimum emphasis density.
	maxStrongBeatGapFrames = 2 * VideoFPS

	// PlaceholderAssetRef stands in when a job carries no visual assets.
	PlaceholderAssetRef = "placeholder://black"
)

// Per-bucket duration clamp, in frames at VideoFPS. Applied before beat
// extraction so beat data and scene building always operate on a bounded
// range.
var bucketClamps = map[models.DurationBucket]struct{ Min, Max int }{
	models.BucketShort:  {Min: 30 * VideoFPS, Max: 90 * VideoFPS},
	models.BucketMedium: {Min: 90 * VideoFPS, Max: 180 * VideoFPS},
	models.BucketLong:   {Min: 180 * VideoFPS, Max: 600 * VideoFPS},
}

// ClampDurationFrames bounds the job's total duration to the bucket's fixed
// floor/ceiling. Unknown buckets use the longest bucket's policy.
func ClampDurationFrames(totalFrames int, bucket models.DurationBucket) int {
	clamp, ok := bucketClamps[bucket]
	if !ok {
		clamp = bucketClamps[models.BucketLong]
	}
	if totalFrames < clamp.Min {
		return clamp.Min
	}
	if totalFrames > clamp.Max {
		return clamp.Max
	}
	return totalFrames
}

// TransitionOverlapFrames returns the cross-fade overlap for a pacing style.
func TransitionOverlapFrames(style models.PacingStyle) int {
	switch style {
	case models.PacingDramatic:
		return 12
	case models.PacingRhythmic:
		return 10
	case models.PacingViral:
		return 8
	default: // smooth
		return 15
	}
}

// strongBeatPeriod is the nominal every-k-th-beat period per style: dramatic
// emphasizes more often than rhythmic/viral.
func strongBeatPeriod(style models.PacingStyle) int {
	if style == models.PacingDramatic {
		return 2
	}
	return 4
}

// DetectStrongBeats selects every k-th beat as a strong beat, where k
// depends on the pacing style. If the median inter-beat gap implies strong
// beats farther apart than the fixed ceiling, the period is reduced to
// guarantee a minimum density. Deterministic for identical beat input.
func DetectStrongBeats(beatFrames []int, style models.PacingStyle) []int {
	if len(beatFrames) == 0 {
		return nil
	}

	period := strongBeatPeriod(style)

	if gap := medianGapFrames(beatFrames); gap > 0 && gap*period > maxStrongBeatGapFrames {
		period = maxStrongBeatGapFrames / gap
		if period < 1 {
			period = 1
		}
	}

	var strong []int
	for i, f := range beatFrames {
		if (i+1)%period == 0 {
			strong = append(strong, f)
		}
	}
	return strong
}

// medianGapFrames computes the median gap between consecutive beats.
// Returns 0 when fewer than two beats exist.
func medianGapFrames(beatFrames []int) int {
	if len(beatFrames) < 2 {
		return 0
	}

	gaps := make([]int, 0, len(beatFrames)-1)
	for i := 1; i < len(beatFrames); i++ {
		g := beatFrames[i] - beatFrames[i-1]
		if g < 0 {
			g = 0
		}
		gaps = append(gaps, g)
	}
	sort.Ints(gaps)
	return gaps[len(gaps)/2]
}

// GenerateCutPoints returns the beat-driven segment boundaries for scene
// building. The current policy is an empty cut set: every scene receives
// equal screen time regardless of beat data. Beat and strong-beat frames
// are still computed and carried for visual-emphasis effects (punch-ins),
// they just do not move segment boundaries.
func GenerateCutPoints(beatFrames, strongBeatFrames []int, totalFrames int) []int {
	return nil
}

// BuildScenes allocates screen time per visual asset.
//
// With no cut points (the current default), total duration splits evenly
// across assets and each scene is widened by the transition overlap so the
// perceived total after cross-fading still equals the target:
//
//	perScene = floor((total + (n-1)*overlap) / n)
//
// With cut points, segments are the gaps between sorted boundaries
// [0, cut1, ..., cutK, total]; assets are assigned round-robin when there
// are more segments than assets, and any shortfall is absorbed into the
// final scene.
func BuildScenes(assetRefs []string, totalDurationFrames int, cutFrames []int, style models.PacingStyle, overlapFrames int) ([]models.Scene, error) {
	if totalDurationFrames < 1 {
		return nil, fmt.Errorf("total duration must be positive, got %d frames", totalDurationFrames)
	}

	// Zero assets behaves as exactly one placeholder asset.
	if len(assetRefs) == 0 {
		assetRefs = []string{PlaceholderAssetRef}
	}

	n := len(assetRefs)

	if len(cutFrames) == 0 {
		perScene := (totalDurationFrames + (n-1)*overlapFrames) / n
		if perScene < 1 {
			perScene = 1
		}

		scenes := make([]models.Scene, n)
		for i, ref := range assetRefs {
			scenes[i] = models.Scene{AssetRef: ref, DurationFrames: perScene, Index: i}
		}
		return scenes, nil
	}

	// Beat-driven path: boundaries are [0, cuts..., total].
	cuts := append([]int(nil), cutFrames...)
	sort.Ints(cuts)

	boundaries := make([]int, 0, len(cuts)+2)
	boundaries = append(boundaries, 0)
	for _, c := range cuts {
		if c > 0 && c < totalDurationFrames {
			boundaries = append(boundaries, c)
		}
	}
	boundaries = append(boundaries, totalDurationFrames)

	var scenes []models.Scene
	for i := 0; i+1 < len(boundaries); i++ {
		dur := boundaries[i+1] - boundaries[i]
		if dur < 1 {
			dur = 1
		}
		ref := assetRefs[i%n] // round-robin when segments outnumber assets
		scenes = append(scenes, models.Scene{AssetRef: ref, DurationFrames: dur, Index: i})
	}

	// Guard: fewer segments than assets should not occur given the boundary
	// construction, but any shortfall is absorbed into the final scene.
	if len(scenes) < n {
		missing := 0
		for i := len(scenes); i < n; i++ {
			missing += overlapFrames + 1
		}
		scenes[len(scenes)-1].DurationFrames += missing
	}

	return scenes, nil
}

// BuildBeatSync runs the full beat pipeline for one attempt: quantize,
// detect strong beats, generate cut points. All outputs are bounded by
// totalFrames.
func BuildBeatSync(beatSeconds []float64, totalFrames int, style models.PacingStyle) models.BeatSyncResult {
	beatFrames := QuantizeFrames(beatSeconds, totalFrames)
	strong := DetectStrongBeats(beatFrames, style)
	cuts := GenerateCutPoints(beatFrames, strong, totalFrames)
	return models.BeatSyncResult{
		BeatFrames:       beatFrames,
		StrongBeatFrames: strong,
		CutFrames:        cuts,
	}
}

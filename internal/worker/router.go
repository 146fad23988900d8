package worker

import "github.com/Vatsal2401/Auto-Reels-Render/internal/models"

// RouteStrategy picks the render path for a job. Short videos go to the
// hosted renderer when it is enabled; everything else, including jobs with
// an unrecognized bucket, encodes locally. Pure function so routing is
// trivially testable and never consults job state.
func RouteStrategy(bucket models.DurationBucket, remoteEnabled bool) models.RenderStrategy {
	if bucket == models.BucketShort && remoteEnabled {
		return models.StrategyRemoteRender
	}
	return models.StrategyLocalEncode
}

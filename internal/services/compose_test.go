package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

func testScenes(durations ...int) ([]models.Scene, []string) {
	scenes := make([]models.Scene, len(durations))
	paths := make([]string, len(durations))
	for i, d := range durations {
		scenes[i] = models.Scene{AssetRef: fmt.Sprintf("ref-%d", i), DurationFrames: d, Index: i}
		paths[i] = fmt.Sprintf("/tmp/visual_%d.jpg", i)
	}
	return scenes, paths
}

func baseRequest(durations ...int) CompositionRequest {
	scenes, paths := testScenes(durations...)
	return CompositionRequest{
		Scenes:        scenes,
		ScenePaths:    paths,
		NarrationPath: "/tmp/narration.mp3",
		Width:         1080,
		Height:        1920,
		OverlapFrames: 15,
		PickEffect:    FixedEffectPicker(EffectZoomIn),
	}
}

func TestBuildCompositionSingleScene(t *testing.T) {
	plan, err := BuildComposition(baseRequest(300))
	require.NoError(t, err)

	fc := plan.FilterComplex()
	assert.Contains(t, fc, "zoompan")
	assert.NotContains(t, fc, "xfade", "single scene needs no transition")
	assert.Contains(t, fc, "[vout]")
	assert.Contains(t, fc, "[aout]")
	assert.Equal(t, []ClipEffect{EffectZoomIn}, plan.Effects)
}

func TestBuildCompositionXfadeOffsets(t *testing.T) {
	// Three scenes of 300 frames (10s) each with a 15-frame (0.5s) overlap.
	// Each source is held 0.5s longer than its allocation, so offsets land
	// at 10.0s and 20.0s.
	plan, err := BuildComposition(baseRequest(300, 300, 300))
	require.NoError(t, err)

	fc := plan.FilterComplex()
	assert.Contains(t, fc, "xfade=transition=fade:duration=0.500:offset=10.000")
	assert.Contains(t, fc, "xfade=transition=fade:duration=0.500:offset=20.000")

	// Every still input is held one overlap longer than its allocation.
	held := 0
	for _, arg := range plan.InputArgs {
		if arg == "10.500" {
			held++
		}
	}
	assert.Equal(t, 3, held)
}

func TestBuildCompositionDeterministicEffects(t *testing.T) {
	req := baseRequest(300, 300, 300, 300)
	req.PickEffect = FixedEffectPicker(EffectPanLeft, EffectPanRight)

	plan, err := BuildComposition(req)
	require.NoError(t, err)

	assert.Equal(t, []ClipEffect{EffectPanLeft, EffectPanRight, EffectPanLeft, EffectPanRight}, plan.Effects)
}

func TestBuildCompositionMusicDucking(t *testing.T) {
	req := baseRequest(300, 300)
	req.MusicPath = "/tmp/music.mp3"

	plan, err := BuildComposition(req)
	require.NoError(t, err)

	fc := plan.FilterComplex()
	assert.Contains(t, fc, "asplit")
	assert.Contains(t, fc, "sidechaincompress")
	assert.Contains(t, fc, "amix=inputs=2:duration=first:dropout_transition=3")

	// Music input loops behind the narration.
	assert.Contains(t, strings.Join(plan.InputArgs, " "), "-stream_loop -1 -i /tmp/music.mp3")
}

func TestBuildCompositionNoMusic(t *testing.T) {
	plan, err := BuildComposition(baseRequest(300, 300))
	require.NoError(t, err)

	fc := plan.FilterComplex()
	assert.NotContains(t, fc, "sidechaincompress")
	assert.NotContains(t, fc, "amix")
	assert.Contains(t, fc, "anull[aout]")
}

func TestBuildCompositionWatermarkGating(t *testing.T) {
	req := baseRequest(300)
	req.Watermark = models.Watermark{Enabled: true, Type: "text", Value: "made with reels"}

	plan, err := BuildComposition(req)
	require.NoError(t, err)
	assert.Contains(t, plan.FilterComplex(), "made with reels")

	// Disabled or non-text watermarks render nothing.
	req.Watermark = models.Watermark{Enabled: false, Type: "text", Value: "made with reels"}
	plan, err = BuildComposition(req)
	require.NoError(t, err)
	assert.NotContains(t, plan.FilterComplex(), "made with reels")

	req.Watermark = models.Watermark{Enabled: true, Type: "image", Value: "logo.png"}
	plan, err = BuildComposition(req)
	require.NoError(t, err)
	assert.NotContains(t, plan.FilterComplex(), "logo.png")
}

func TestBuildCompositionASSCaptions(t *testing.T) {
	req := baseRequest(300)
	req.CaptionMode = CaptionModeASS
	req.SubtitlePath = "/tmp/subtitles.ass"
	req.FontsDir = "/opt/fonts"

	plan, err := BuildComposition(req)
	require.NoError(t, err)

	fc := plan.FilterComplex()
	assert.Contains(t, fc, "ass=filename=")
	assert.Contains(t, fc, "fontsdir=")

	// ASS mode without a document is a caller bug.
	req.SubtitlePath = ""
	_, err = BuildComposition(req)
	assert.Error(t, err)
}

func TestBuildCompositionDrawtextCaptions(t *testing.T) {
	req := baseRequest(300)
	req.CaptionMode = CaptionModeDrawtext
	req.Cues = []models.CaptionCue{
		{Start: 0, End: 2, Text: "first cue"},
		{Start: 2, End: 4, Text: "second cue"},
	}
	req.CaptionPreset = models.CaptionPresetPlain
	req.CaptionPosition = models.CaptionPositionBottom

	plan, err := BuildComposition(req)
	require.NoError(t, err)

	fc := plan.FilterComplex()
	assert.Contains(t, fc, "enable='between(t,0.000,2.000)'")
	assert.Contains(t, fc, "enable='between(t,2.000,4.000)'")
	assert.Contains(t, fc, "first cue")
}

func TestBuildCompositionInputValidation(t *testing.T) {
	_, err := BuildComposition(CompositionRequest{NarrationPath: "/tmp/n.mp3", Width: 1080, Height: 1920})
	assert.Error(t, err, "no scenes")

	req := baseRequest(300, 300)
	req.ScenePaths = req.ScenePaths[:1]
	_, err = BuildComposition(req)
	assert.Error(t, err, "scene/path mismatch")

	req = baseRequest(300)
	req.NarrationPath = ""
	_, err = BuildComposition(req)
	assert.Error(t, err, "missing narration")
}

func TestMotionArgsMinimumDuration(t *testing.T) {
	args := motionArgs(EffectZoomIn, 5, 1080, 1920)
	assert.Contains(t, args, fmt.Sprintf("d=%d", VideoFPS), "very short scenes stretch to one second")
	assert.Contains(t, args, "s=1080x1920")
}

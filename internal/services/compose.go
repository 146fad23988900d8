package services

import (
	"fmt"
	"math/rand"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

// ---------------------------------------------------------------------------
// Motion effect types. Each scene gets one, chosen by an injectable picker
// so tests can pin a deterministic sequence.
// ---------------------------------------------------------------------------

// ClipEffect defines the pan/zoom motion curve applied to a still visual.
type ClipEffect string

const (
	EffectZoomIn         ClipEffect = "zoom_in"           // Strong zoom toward center
	EffectZoomOut        ClipEffect = "zoom_out"          // Starts zoomed, pulls back wide
	EffectPanDown        ClipEffect = "pan_down"          // Drifts top to bottom
	EffectPanUp          ClipEffect = "pan_up"            // Drifts bottom to top
	EffectPanLeft        ClipEffect = "pan_left"          // Drifts right to left
	EffectPanRight       ClipEffect = "pan_right"         // Drifts left to right
	EffectZoomInPanUp    ClipEffect = "zoom_in_pan_up"    // Zoom in while drifting up
	EffectZoomInPanDown  ClipEffect = "zoom_in_pan_down"  // Zoom in while drifting down
	EffectZoomInPanLeft  ClipEffect = "zoom_in_pan_left"  // Zoom in while drifting left
	EffectZoomInPanRight ClipEffect = "zoom_in_pan_right" // Zoom in while drifting right
)

// allEffects is the pool the default picker draws from.
var allEffects = []ClipEffect{
	EffectZoomIn,
	EffectZoomOut,
	EffectPanDown,
	EffectPanUp,
	EffectPanLeft,
	EffectPanRight,
	EffectZoomInPanUp,
	EffectZoomInPanDown,
	EffectZoomInPanLeft,
	EffectZoomInPanRight,
}

// EffectPicker selects a motion effect for the scene at the given index.
type EffectPicker func(sceneIndex int) ClipEffect

// RandomEffectPicker returns the production picker. Injecting a picker
// instead of reading global randomness keeps compositions reproducible
// under test.
func RandomEffectPicker() EffectPicker {
	return func(int) ClipEffect {
		return allEffects[rand.Intn(len(allEffects))]
	}
}

// FixedEffectPicker cycles a fixed effect sequence, for deterministic plans.
func FixedEffectPicker(sequence ...ClipEffect) EffectPicker {
	if len(sequence) == 0 {
		sequence = []ClipEffect{EffectZoomIn}
	}
	return func(i int) ClipEffect {
		return sequence[i%len(sequence)]
	}
}

const (
	// Breathing pulse: a subtle zoom oscillation layered on the primary
	// motion. Amplitude 0.03 at ~0.12 rad/frame, roughly one full breath every
	// ~2 seconds.
	breathAmplitude = 0.03
	breathFrequency = 0.12

	// Music level under narration before the sidechain ducking kicks in.
	duckedMusicVolume = 0.15
)

// ---------------------------------------------------------------------------
// Composition planner
// ---------------------------------------------------------------------------

// CaptionMode selects how captions are composited.
type CaptionMode int

const (
	CaptionModeNone CaptionMode = iota
	// CaptionModeDrawtext overlays each cue as a timed drawtext, used for
	// simple cue input without word timings.
	CaptionModeDrawtext
	// CaptionModeASS burns a pre-rendered subtitle document, used for
	// karaoke and legacy inputs.
	CaptionModeASS
)

// CompositionRequest carries everything the planner needs to assemble one
// encoder invocation.
type CompositionRequest struct {
	Scenes     []models.Scene
	ScenePaths []string // local file per scene, same order

	NarrationPath string
	MusicPath     string // empty = no background music

	CaptionMode     CaptionMode
	SubtitlePath    string // ASS document, CaptionModeASS
	FontsDir        string // bundled fonts for non-default scripts, optional
	Cues            []models.CaptionCue
	CaptionPreset   models.CaptionPreset
	CaptionPosition models.CaptionPosition

	Watermark models.Watermark

	Width         int
	Height        int
	OverlapFrames int

	PickEffect EffectPicker
}

// CompositionPlan is a validated, ready-to-serialize encoder invocation.
type CompositionPlan struct {
	InputArgs  []string
	Graph      *FilterGraph
	VideoLabel string
	AudioLabel string
	Effects    []ClipEffect // effect chosen per scene, in order
}

// FilterComplex serializes the plan's graph.
func (p *CompositionPlan) FilterComplex() string {
	return p.Graph.String()
}

// BuildComposition assembles the filter graph for the local encode path:
// per-scene scale/crop + motion, cross-fade sequencing, caption overlay,
// optional watermark, and the narration/music mix. The returned plan's
// graph has been validated against its terminal labels.
func BuildComposition(req CompositionRequest) (*CompositionPlan, error) {
	if len(req.Scenes) == 0 {
		return nil, fmt.Errorf("composition requires at least one scene")
	}
	if len(req.Scenes) != len(req.ScenePaths) {
		return nil, fmt.Errorf("scene/path count mismatch: %d scenes, %d paths", len(req.Scenes), len(req.ScenePaths))
	}
	if req.NarrationPath == "" {
		return nil, fmt.Errorf("composition requires a narration track")
	}

	pick := req.PickEffect
	if pick == nil {
		pick = RandomEffectPicker()
	}

	g := NewFilterGraph()
	n := len(req.Scenes)

	// Inputs
	// Visual inputs 0..n-1, narration n, music n+1 (when present).
	var inputArgs []string
	for i, scene := range req.Scenes {
		// Each still is held one overlap longer than its allocation so the
		// dissolve into the next scene has frames to blend.
		holdSec := framesToSeconds(scene.DurationFrames + req.OverlapFrames)
		inputArgs = append(inputArgs,
			"-loop", "1",
			"-t", fmt.Sprintf("%.3f", holdSec),
			"-i", req.ScenePaths[i],
		)
	}
	narrationIdx := n
	inputArgs = append(inputArgs, "-i", req.NarrationPath)

	musicIdx := -1
	if req.MusicPath != "" {
		musicIdx = n + 1
		inputArgs = append(inputArgs, "-stream_loop", "-1", "-i", req.MusicPath)
	}

	// Per-scene motion chains
	effects := make([]ClipEffect, n)
	sceneLabels := make([]string, n)
	for i, scene := range req.Scenes {
		effects[i] = pick(i)
		frames := scene.DurationFrames + req.OverlapFrames

		scaled := fmt.Sprintf("s%d", i)
		cropped := fmt.Sprintf("c%d", i)
		moved := fmt.Sprintf("v%d", i)

		g.Add("scale",
			fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", req.Width, req.Height),
			[]string{fmt.Sprintf("%d:v", i)}, scaled)
		g.Add("crop",
			fmt.Sprintf("%d:%d", req.Width, req.Height),
			[]string{scaled}, cropped)
		g.Add("zoompan",
			motionArgs(effects[i], frames, req.Width, req.Height),
			[]string{cropped}, moved)

		sceneLabels[i] = moved
	}

	// Cross-fade sequencing
	// Each dissolve starts `overlap` before the end of the running chain,
	// so the final non-dissolved duration per scene equals the pacing
	// engine's allocation.
	overlapSec := framesToSeconds(req.OverlapFrames)
	current := sceneLabels[0]
	runningSec := framesToSeconds(req.Scenes[0].DurationFrames + req.OverlapFrames)

	for i := 1; i < n; i++ {
		offset := runningSec - overlapSec
		if offset < 0 {
			offset = 0
		}
		out := fmt.Sprintf("x%d", i)
		g.Add("xfade",
			fmt.Sprintf("transition=fade:duration=%.3f:offset=%.3f", overlapSec, offset),
			[]string{current, sceneLabels[i]}, out)
		current = out
		runningSec = offset + framesToSeconds(req.Scenes[i].DurationFrames+req.OverlapFrames)
	}

	// Caption overlay
	switch req.CaptionMode {
	case CaptionModeASS:
		if req.SubtitlePath == "" {
			return nil, fmt.Errorf("caption mode ASS requires a subtitle path")
		}
		args := fmt.Sprintf("filename='%s'", escapeFilterPath(req.SubtitlePath))
		if req.FontsDir != "" {
			args += fmt.Sprintf(":fontsdir='%s'", escapeFilterPath(req.FontsDir))
		}
		g.Add("ass", args, []string{current}, "vcap")
		current = "vcap"

	case CaptionModeDrawtext:
		for i, cue := range req.Cues {
			out := fmt.Sprintf("t%d", i)
			g.Add("drawtext", drawtextArgs(cue, req.CaptionPreset, req.CaptionPosition, req.Height), []string{current}, out)
			current = out
		}
	}

	// Watermark
	if req.Watermark.Active() {
		args := fmt.Sprintf(
			"text='%s':fontsize=%d:fontcolor=white@0.5:borderw=2:bordercolor=black@0.5:x=w-text_w-40:y=40",
			escapeDrawtext(req.Watermark.Value), req.Height/40,
		)
		g.Add("drawtext", args, []string{current}, "vwm")
		current = "vwm"
	}

	g.Add("format", "yuv420p", []string{current}, "vout")

	// Audio
	// Narration always plays; with music present the narration is split
	// into a clean copy and a sidechain trigger that ducks the music, so
	// narration stays intelligible without manual mixing.
	narrationPad := fmt.Sprintf("%d:a", narrationIdx)
	if musicIdx >= 0 {
		g.Add("asplit", "2", []string{narrationPad}, "nclean", "nside")
		g.Add("volume", fmt.Sprintf("%.2f", duckedMusicVolume), []string{fmt.Sprintf("%d:a", musicIdx)}, "mquiet")
		g.Add("sidechaincompress",
			"threshold=0.05:ratio=8:attack=100:release=400",
			[]string{"mquiet", "nside"}, "mduck")
		g.Add("amix", "inputs=2:duration=first:dropout_transition=3", []string{"nclean", "mduck"}, "aout")
	} else {
		g.Add("anull", "", []string{narrationPad}, "aout")
	}

	if err := g.Validate("vout", "aout"); err != nil {
		return nil, fmt.Errorf("invalid composition graph: %w", err)
	}

	return &CompositionPlan{
		InputArgs:  inputArgs,
		Graph:      g,
		VideoLabel: "vout",
		AudioLabel: "aout",
		Effects:    effects,
	}, nil
}

// motionArgs constructs the zoompan argument string for a motion effect.
// A gentle sine "breathing" pulse rides on top of the primary motion so
// still visuals never feel frozen.
func motionArgs(effect ClipEffect, totalFrames, width, height int) string {
	if totalFrames < VideoFPS {
		totalFrames = VideoFPS // minimum 1 second
	}

	breath := fmt.Sprintf("%.3f*sin(on*%.3f)", breathAmplitude, breathFrequency)

	var zExpr, xExpr, yExpr string
	switch effect {

	case EffectZoomIn:
		zExpr = fmt.Sprintf("1.0+0.5*on/%d+%s", totalFrames, breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectZoomOut:
		zExpr = fmt.Sprintf("1.5-0.5*on/%d+%s", totalFrames, breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectPanDown:
		zExpr = fmt.Sprintf("1.3+%s", breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*on/%d", totalFrames)

	case EffectPanUp:
		zExpr = fmt.Sprintf("1.3+%s", breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*(1-on/%d)", totalFrames)

	case EffectPanRight:
		zExpr = fmt.Sprintf("1.3+%s", breath)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*on/%d", totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectPanLeft:
		zExpr = fmt.Sprintf("1.3+%s", breath)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*(1-on/%d)", totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectZoomInPanUp:
		zExpr = fmt.Sprintf("1.0+0.4*on/%d+%s", totalFrames, breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("max(0,(ih-ih/zoom)*(1-on/%d))", totalFrames)

	case EffectZoomInPanDown:
		zExpr = fmt.Sprintf("1.0+0.4*on/%d+%s", totalFrames, breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("min(ih-ih/zoom,(ih-ih/zoom)*on/%d)", totalFrames)

	case EffectZoomInPanRight:
		zExpr = fmt.Sprintf("1.0+0.4*on/%d+%s", totalFrames, breath)
		xExpr = fmt.Sprintf("min(iw-iw/zoom,(iw-iw/zoom)*on/%d)", totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectZoomInPanLeft:
		zExpr = fmt.Sprintf("1.0+0.4*on/%d+%s", totalFrames, breath)
		xExpr = fmt.Sprintf("max(0,(iw-iw/zoom)*(1-on/%d))", totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	default:
		zExpr = fmt.Sprintf("1.0+0.4*on/%d+%s", totalFrames, breath)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"
	}

	return fmt.Sprintf(
		"z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		zExpr, xExpr, yExpr, totalFrames, width, height, VideoFPS,
	)
}

// drawtextArgs renders one cue as a timed drawtext overlay with the preset's
// look baked in.
func drawtextArgs(cue models.CaptionCue, preset models.CaptionPreset, pos models.CaptionPosition, height int) string {
	style, ok := presetTable[preset]
	if !ok {
		style = presetTable[models.CaptionPresetPlain]
	}

	var y string
	switch pos {
	case models.CaptionPositionTop:
		y = "h*0.08"
	case models.CaptionPositionCenter:
		y = "(h-text_h)/2"
	default:
		y = "h-text_h-h*0.12"
	}

	end := cue.End
	if end < cue.Start {
		end = cue.Start
	}

	return fmt.Sprintf(
		"text='%s':fontsize=%d:fontcolor=white:borderw=%d:bordercolor=black:x=(w-text_w)/2:y=%s:enable='between(t,%.3f,%.3f)'",
		escapeDrawtext(cue.Text), style.FontSize*height/1920, style.OutlineW, y, cue.Start, end,
	)
}

// framesToSeconds converts a frame count to seconds at VideoFPS.
func framesToSeconds(frames int) float64 {
	return float64(frames) / float64(VideoFPS)
}

package services

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Frame rate for all output video and frame quantization.
const VideoFPS = 30

const (
	// DurationUnknown is the sentinel returned when probing fails.
	DurationUnknown = -1.0

	// FallbackDurationSeconds is substituted when the narration cannot be
	// probed, keeping the attempt alive in degraded mode.
	FallbackDurationSeconds = 30.0

	// Synthetic beat grid bounds. The interval scales with clip length so short
	// clips feel denser and long clips avoid a mechanical tick.
	gridMinIntervalSec = 0.5
	gridMaxIntervalSec = 2.0
	gridDivisor        = 24.0
)

// Extractor derives audio duration and beat timestamps from local audio
// files by shelling out to ffprobe and the aubio CLI. Both tools are
// optional at runtime: failures degrade to documented fallbacks instead of
// failing the job.
type Extractor struct {
	aubioBin string // empty = beat detection unavailable
}

func NewExtractor(aubioBin string) *Extractor {
	return &Extractor{aubioBin: aubioBin}
}

// ProbeDuration returns the audio duration in seconds, or DurationUnknown
// when ffprobe fails. It never returns an error to the caller's control
// flow; degraded-mode substitution is the caller's job.
func (e *Extractor) ProbeDuration(ctx context.Context, audioPath string) float64 {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		log.Printf("[Extract] ffprobe failed for %s: %v", audioPath, err)
		return DurationUnknown
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		log.Printf("[Extract] could not parse ffprobe duration %q: %v", strings.TrimSpace(string(output)), err)
		return DurationUnknown
	}

	return durationSec
}

// AudioDuration probes the narration and substitutes the fixed fallback on
// failure, logging the degraded mode.
func (e *Extractor) AudioDuration(ctx context.Context, audioPath string) float64 {
	d := e.ProbeDuration(ctx, audioPath)
	if d <= 0 {
		log.Printf("[Extract] Warning: duration unknown for %s, using %.0fs fallback", audioPath, FallbackDurationSeconds)
		return FallbackDurationSeconds
	}
	return d
}

// ExtractBeats runs beat detection on the audio and returns ordered beat
// timestamps in seconds. Any failure, including the tool not being
// configured, yields an empty slice; the caller falls back to the
// synthetic grid.
func (e *Extractor) ExtractBeats(ctx context.Context, audioPath string) []float64 {
	if e.aubioBin == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, e.aubioBin, "beat", audioPath)
	output, err := cmd.Output()
	if err != nil {
		log.Printf("[Extract] Warning: beat detection failed for %s: %v", audioPath, err)
		return nil
	}

	var beats []float64
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		t, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue // aubio interleaves non-numeric diagnostics on some builds
		}
		beats = append(beats, t)
	}

	return beats
}

// FallbackBeatGrid produces a deterministic synthetic beat grid for the
// given duration. The interval scales with duration, denser for short
// clips and sparser for long ones, and the result is purely a function of the
// input, fully reproducible across attempts.
func FallbackBeatGrid(durationSeconds float64) []float64 {
	if durationSeconds <= 0 {
		return nil
	}

	interval := durationSeconds / gridDivisor
	if interval < gridMinIntervalSec {
		interval = gridMinIntervalSec
	}
	if interval > gridMaxIntervalSec {
		interval = gridMaxIntervalSec
	}

	var grid []float64
	for t := interval; t < durationSeconds; t += interval {
		grid = append(grid, t)
	}
	return grid
}

// QuantizeFrames converts second timestamps to frame numbers at VideoFPS,
// rounding to nearest and clamping into [0, maxFrame].
func QuantizeFrames(seconds []float64, maxFrame int) []int {
	frames := make([]int, 0, len(seconds))
	for _, s := range seconds {
		f := int(math.Round(s * VideoFPS))
		if f < 0 {
			f = 0
		}
		if f > maxFrame {
			f = maxFrame
		}
		frames = append(frames, f)
	}
	return frames
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// FFmpegService shells out to ffmpeg for the local encode path.
type FFmpegService struct {
	tempDir       string
	encodeTimeout time.Duration
}

// NewFFmpegService creates the encoder runner. tempDir hosts per-job scratch
// directories; an empty value falls back to the OS default.
func NewFFmpegService(tempDir string, encodeTimeout time.Duration) *FFmpegService {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if encodeTimeout <= 0 {
		encodeTimeout = 30 * time.Minute
	}
	return &FFmpegService{tempDir: tempDir, encodeTimeout: encodeTimeout}
}

// CreateScratchDir makes a per-job working directory under the service's
// temp root. Callers own cleanup via Cleanup.
func (f *FFmpegService) CreateScratchDir(jobID string) (string, error) {
	if err := os.MkdirAll(f.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(f.tempDir, "render-"+jobID+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return dir, nil
}

// Cleanup removes a scratch directory, logging rather than failing the job
// if the removal itself errors.
func (f *FFmpegService) Cleanup(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("[FFmpeg] Warning: failed to clean up %s: %v", dir, err)
	}
}

// Encode runs ffmpeg with the given composition plan and writes the result
// to outputPath. It blocks until the encode finishes, the context is
// cancelled, or the encode timeout elapses.
func (f *FFmpegService) Encode(ctx context.Context, plan *CompositionPlan, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.encodeTimeout)
	defer cancel()

	args := []string{"-y"}
	args = append(args, plan.InputArgs...)
	args = append(args,
		"-filter_complex", plan.FilterComplex(),
		"-map", "["+plan.VideoLabel+"]",
		"-map", "["+plan.AudioLabel+"]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "21",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-r", fmt.Sprintf("%d", VideoFPS),
		// Constrained threading keeps concurrent encodes from starving
		// each other on small worker hosts.
		"-threads", "2",
		"-filter_complex_threads", "1",
		outputPath,
	)

	log.Printf("[FFmpeg] Encoding %s (%d inputs, %d filter nodes)",
		filepath.Base(outputPath), countInputs(plan.InputArgs), len(plan.Graph.Nodes()))

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", f.encodeTimeout)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tailOf(stderr.String(), 4096))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty file")
	}

	log.Printf("[FFmpeg] Encoded %s (%.1f MB) in %s",
		filepath.Base(outputPath), float64(info.Size())/(1024*1024), time.Since(start).Round(time.Second))
	return nil
}

// CreateBlackFrame writes a single black PNG at the given size, used as the
// placeholder visual when a job arrives with no visual assets.
func (f *FFmpegService) CreateBlackFrame(ctx context.Context, path string, width, height int) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=black:s=%dx%d", width, height),
		"-frames:v", "1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to create placeholder frame: %w: %s", err, tailOf(stderr.String(), 1024))
	}
	return nil
}

// countInputs counts "-i" occurrences in an input arg list.
func countInputs(args []string) int {
	n := 0
	for _, a := range args {
		if a == "-i" {
			n++
		}
	}
	return n
}

// tailOf returns the last max bytes of s. ffmpeg front-loads banner noise;
// the failure reason is at the end.
func tailOf(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}

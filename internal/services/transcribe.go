package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

// Transcriber recovers word-level timings for narration tracks whose caption
// documents arrived without them, so karaoke presets still work.
type Transcriber struct {
	client *openai.Client
}

func NewTranscriber(apiKey string) *Transcriber {
	return &Transcriber{client: openai.NewClient(apiKey)}
}

// WordTimings sends narration audio to Whisper and returns per-word timings
// in track time.
func (t *Transcriber) WordTimings(ctx context.Context, audioData []byte, language string) ([]models.WordTiming, error) {
	if language == "" {
		language = "en"
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audioData),
		FilePath: "narration.mp3", // filename hint required by the library
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	if len(resp.Words) == 0 {
		return nil, fmt.Errorf("whisper returned no word timestamps (text: %q)", resp.Text)
	}

	words := make([]models.WordTiming, len(resp.Words))
	for i, w := range resp.Words {
		words[i] = models.WordTiming{
			Word:  strings.TrimSpace(w.Word),
			Start: w.Start,
			End:   w.End,
		}
	}

	log.Printf("[Whisper] Transcribed %d words (duration: %.1fs, text: %q)",
		len(words), resp.Duration, truncate(resp.Text, 80))

	return words, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// MergeWordTimings distributes flat word timings across existing cues by
// time overlap, preferring the cue whose span contains the word's midpoint.
func MergeWordTimings(cues []models.CaptionCue, words []models.WordTiming) []models.CaptionCue {
	merged := make([]models.CaptionCue, len(cues))
	copy(merged, cues)

	for _, w := range words {
		mid := (w.Start + w.End) / 2
		for i := range merged {
			if mid >= merged[i].Start && mid < merged[i].End {
				merged[i].Words = append(merged[i].Words, w)
				break
			}
		}
	}
	return merged
}

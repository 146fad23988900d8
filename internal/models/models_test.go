package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestWatermarkActive(t *testing.T) {
	cases := []struct {
		name string
		wm   Watermark
		want bool
	}{
		{"enabled text", Watermark{Enabled: true, Type: "text", Value: "made with reels"}, true},
		{"disabled", Watermark{Enabled: false, Type: "text", Value: "made with reels"}, false},
		{"wrong type", Watermark{Enabled: true, Type: "image", Value: "logo.png"}, false},
		{"empty value", Watermark{Enabled: true, Type: "text", Value: ""}, false},
		{"zero value", Watermark{}, false},
	}

	for _, tc := range cases {
		if got := tc.wm.Active(); got != tc.want {
			t.Errorf("%s: Active() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRenderJobValidate(t *testing.T) {
	valid := RenderJob{
		StepID:   uuid.New(),
		ReelID:   uuid.New(),
		UserID:   uuid.New(),
		AudioRef: "reels/abc/narration.mp3",
		Options:  RenderOptions{Width: 1080, Height: 1920},
		Bucket:   BucketShort,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid job, got %v", err)
	}

	missingStep := valid
	missingStep.StepID = uuid.Nil
	if err := missingStep.Validate(); err == nil {
		t.Error("expected error for missing step id")
	}

	missingReel := valid
	missingReel.ReelID = uuid.Nil
	if err := missingReel.Validate(); err == nil {
		t.Error("expected error for missing reel id")
	}

	missingAudio := valid
	missingAudio.AudioRef = ""
	if err := missingAudio.Validate(); err == nil {
		t.Error("expected error for missing audio ref")
	}

	badSize := valid
	badSize.Options.Width = 0
	if err := badSize.Validate(); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestCaptionDocumentHasWordTimings(t *testing.T) {
	plain := CaptionDocument{
		Cues: []CaptionCue{
			{Start: 0, End: 2, Text: "hello world"},
			{Start: 2, End: 4, Text: "more text"},
		},
	}
	if plain.HasWordTimings() {
		t.Error("expected no word timings")
	}

	karaoke := plain
	karaoke.Cues = append([]CaptionCue{}, plain.Cues...)
	karaoke.Cues[1].Words = []WordTiming{{Word: "more", Start: 2, End: 2.5}}
	if !karaoke.HasWordTimings() {
		t.Error("expected word timings to be detected")
	}
}

func TestTotalSceneFrames(t *testing.T) {
	scenes := []Scene{
		{AssetRef: "a", DurationFrames: 90, Index: 0},
		{AssetRef: "b", DurationFrames: 120, Index: 1},
		{AssetRef: "c", DurationFrames: 45, Index: 2},
	}

	if got := TotalSceneFrames(scenes); got != 255 {
		t.Errorf("TotalSceneFrames = %d, want 255", got)
	}

	if got := TotalSceneFrames(nil); got != 0 {
		t.Errorf("TotalSceneFrames(nil) = %d, want 0", got)
	}
}

func TestStepStatusValues(t *testing.T) {
	statuses := []StepStatus{
		StepStatusProcessing,
		StepStatusSuccess,
		StepStatusFailed,
	}

	for _, s := range statuses {
		if s == "" {
			t.Error("status should not be empty")
		}
	}
}

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums

type RenderStrategy string

const (
	StrategyLocalEncode  RenderStrategy = "local_encode"
	StrategyRemoteRender RenderStrategy = "remote_render"
)

// DurationBucket is a coarse classification of the target output length.
// It drives strategy routing and the duration clamp applied before pacing.
type DurationBucket string

const (
	BucketShort  DurationBucket = "short"
	BucketMedium DurationBucket = "medium"
	BucketLong   DurationBucket = "long"
)

// PacingStyle controls transition overlap and strong-beat density.
type PacingStyle string

const (
	PacingSmooth   PacingStyle = "smooth"
	PacingRhythmic PacingStyle = "rhythmic"
	PacingViral    PacingStyle = "viral"
	PacingDramatic PacingStyle = "dramatic"
)

type StepStatus string

const (
	StepStatusProcessing StepStatus = "processing"
	StepStatusSuccess    StepStatus = "success"
	StepStatusFailed     StepStatus = "failed"
)

type ReelStatus string

const (
	ReelStatusQueued    ReelStatus = "queued"
	ReelStatusRendering ReelStatus = "rendering"
	ReelStatusCompleted ReelStatus = "completed"
	ReelStatusFailed    ReelStatus = "failed"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

type AssetType string

const (
	AssetTypeNarration  AssetType = "narration"
	AssetTypeCaptions   AssetType = "captions"
	AssetTypeVisual     AssetType = "visual"
	AssetTypeMusic      AssetType = "music"
	AssetTypeFinalVideo AssetType = "final_video"
)

// CaptionPreset names a fixed style table entry (font, colors, outline, box).
type CaptionPreset string

const (
	CaptionPresetBoldStroke   CaptionPreset = "bold_stroke"
	CaptionPresetRedHighlight CaptionPreset = "red_highlight"
	CaptionPresetCardStyle    CaptionPreset = "card_style"
	CaptionPresetPlain        CaptionPreset = "plain"
)

type CaptionPosition string

const (
	CaptionPositionTop    CaptionPosition = "top"
	CaptionPositionCenter CaptionPosition = "center"
	CaptionPositionBottom CaptionPosition = "bottom"
)

// WordTiming is one word-level sub-timing inside a caption cue, in seconds.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// CaptionCue is a caption's time interval and text, optionally with
// word-level sub-timings for karaoke highlighting. End >= Start is expected
// from the producer; word timings that drift outside the interval are
// tolerated and clamped downstream.
type CaptionCue struct {
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Text  string       `json:"text"`
	Words []WordTiming `json:"words,omitempty"`
}

// CaptionDocument is the parsed shape of a caption source asset.
type CaptionDocument struct {
	Language string       `json:"language,omitempty"`
	Cues     []CaptionCue `json:"cues"`
}

// HasWordTimings reports whether any cue carries word-level sub-timings.
func (d *CaptionDocument) HasWordTimings() bool {
	for _, c := range d.Cues {
		if len(c.Words) > 0 {
			return true
		}
	}
	return false
}

// Scene is one visual asset's allocated screen-time segment.
// Derived per attempt by the pacing engine and never persisted.
type Scene struct {
	AssetRef       string `json:"asset_ref"`
	DurationFrames int    `json:"duration_frames"`
	Index          int    `json:"index"`
}

// TotalSceneFrames sums the per-scene allocations.
func TotalSceneFrames(scenes []Scene) int {
	total := 0
	for _, s := range scenes {
		total += s.DurationFrames
	}
	return total
}

// BeatSyncResult holds frame-quantized beat data for one job attempt.
// Empty slices mean detection was unavailable or not requested; all frame
// values are non-negative and bounded by the clamped total duration.
type BeatSyncResult struct {
	BeatFrames       []int `json:"beat_frames"`
	StrongBeatFrames []int `json:"strong_beat_frames"`
	CutFrames        []int `json:"cut_frames"`
}

// Watermark is the job's monetization directive. The overlay only renders
// when Enabled is true, Type is "text", and Value is non-empty.
type Watermark struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type,omitempty"`
	Value   string `json:"value,omitempty"`
}

func (w Watermark) Active() bool {
	return w.Enabled && w.Type == "text" && w.Value != ""
}

// RenderOptions are the styling and pacing hints on a render job.
type RenderOptions struct {
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	CaptionPreset   CaptionPreset   `json:"caption_preset"`
	CaptionPosition CaptionPosition `json:"caption_position"`
	Language        string          `json:"language,omitempty"`
	Pacing          PacingStyle     `json:"pacing"`
	EncoderPreset   string          `json:"encoder_preset,omitempty"`
	Watermark       Watermark       `json:"watermark"`
}

// RenderJob is the work unit pulled from the queue: asset references plus
// rendering options. The engine only reads it, never mutates it.
type RenderJob struct {
	StepID     uuid.UUID      `json:"step_id"`
	ReelID     uuid.UUID      `json:"reel_id"`
	ProjectID  *uuid.UUID     `json:"project_id,omitempty"`
	UserID     uuid.UUID      `json:"user_id"`
	AudioRef   string         `json:"audio_ref"`
	CaptionRef string         `json:"caption_ref,omitempty"`
	MusicRef   string         `json:"music_ref,omitempty"`
	VisualRefs []string       `json:"visual_refs"`
	Options    RenderOptions  `json:"options"`
	Bucket     DurationBucket `json:"bucket"`
}

// Validate checks the invariants the queue boundary guarantees downstream.
func (j *RenderJob) Validate() error {
	if j.StepID == uuid.Nil {
		return fmt.Errorf("render job missing step id")
	}
	if j.ReelID == uuid.Nil {
		return fmt.Errorf("render job missing reel id")
	}
	if j.AudioRef == "" {
		return fmt.Errorf("render job missing audio ref")
	}
	if j.Options.Width <= 0 || j.Options.Height <= 0 {
		return fmt.Errorf("render job has invalid frame size %dx%d", j.Options.Width, j.Options.Height)
	}
	return nil
}

// Models

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	Credits     int       `json:"credits"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reel is the parent media entity a render step belongs to. The engine
// issues conditional transitions against it and never assumes exclusive
// ownership; retried attempts may race.
type Reel struct {
	ID                uuid.UUID      `json:"id"`
	ProjectID         *uuid.UUID     `json:"project_id,omitempty"`
	UserID            uuid.UUID      `json:"user_id"`
	Title             string         `json:"title"`
	Status            ReelStatus     `json:"status"`
	Bucket            DurationBucket `json:"bucket"`
	AudioRef          string         `json:"audio_ref"`
	CaptionRef        *string        `json:"caption_ref,omitempty"`
	MusicRef          *string        `json:"music_ref,omitempty"`
	VisualRefs        []string       `json:"visual_refs"`
	Options           RenderOptions  `json:"options"`
	FinalVideoAssetID *uuid.UUID     `json:"final_video_asset_id,omitempty"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Project is the outer aggregate a reel may belong to; completion
// propagates to it once every reel in the project is completed.
type Project struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Name      string        `json:"name"`
	Status    ProjectStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RenderStep is one render attempt's persisted record. Status transitions
// processing to success or failed exactly once via the conditional update.
type RenderStep struct {
	ID            uuid.UUID      `json:"id"`
	ReelID        uuid.UUID      `json:"reel_id"`
	Strategy      RenderStrategy `json:"strategy"`
	Status        StepStatus     `json:"status"`
	Attempts      int            `json:"attempts"`
	ResultAssetID *uuid.UUID     `json:"result_asset_id,omitempty"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Asset struct {
	ID            uuid.UUID `json:"id"`
	ReelID        uuid.UUID `json:"reel_id"`
	Type          AssetType `json:"type"`
	StorageBucket string    `json:"storage_bucket"`
	StoragePath   string    `json:"storage_path"`
	ContentType   *string   `json:"content_type,omitempty"`
	ByteSize      *int64    `json:"byte_size,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DTOs for API responses

type ReelResponse struct {
	Reel
	FinalVideoURL *string      `json:"final_video_url,omitempty"`
	Steps         []RenderStep `json:"steps,omitempty"`
}

type CreateRenderResponse struct {
	StepID   uuid.UUID      `json:"step_id"`
	Strategy RenderStrategy `json:"strategy"`
	Status   StepStatus     `json:"status"`
}

type CreateReelRequest struct {
	UserID     uuid.UUID      `json:"user_id"`
	ProjectID  *uuid.UUID     `json:"project_id,omitempty"`
	Title      string         `json:"title"`
	Bucket     DurationBucket `json:"bucket"`
	AudioRef   string         `json:"audio_ref"`
	CaptionRef *string        `json:"caption_ref,omitempty"`
	MusicRef   *string        `json:"music_ref,omitempty"`
	VisualRefs []string       `json:"visual_refs,omitempty"`
	Options    *RenderOptions `json:"options,omitempty"` // Defaults: 1080x1920, smooth pacing
}

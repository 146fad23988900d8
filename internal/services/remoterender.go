package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

const (
	remotePollInterval = 10 * time.Second
	remotePollDeadline = 20 * time.Minute
)

// RemoteRenderClient talks to the hosted composition renderer used for the
// short-form strategy. The protocol is submit, poll, download.
type RemoteRenderClient struct {
	baseURL     string
	apiKey      string
	composition string
	httpClient  *http.Client

	pollInterval  time.Duration
	pollDeadline  time.Duration
	downloadDelay time.Duration
}

// NewRemoteRenderClient creates the client. composition names the server-side
// composition template the props are fed into.
func NewRemoteRenderClient(baseURL, apiKey, composition string) *RemoteRenderClient {
	return &RemoteRenderClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		composition:   composition,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		pollInterval:  remotePollInterval,
		pollDeadline:  remotePollDeadline,
		downloadDelay: 2 * time.Second,
	}
}

// RemoteScene is one visual slot in the remote composition.
type RemoteScene struct {
	SourceURL      string  `json:"sourceUrl"`
	DurationFrames int     `json:"durationInFrames"`
	Effect         string  `json:"effect"`
	StartSeconds   float64 `json:"startSeconds"`
}

// RemoteCaptionWord mirrors models.WordTiming for the remote wire format.
type RemoteCaptionWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// RemoteCaptionCue is one caption span with optional word-level timings.
type RemoteCaptionCue struct {
	Text  string              `json:"text"`
	Start float64             `json:"start"`
	End   float64             `json:"end"`
	Words []RemoteCaptionWord `json:"words,omitempty"`
}

// RemoteInputProps is the full prop payload for one render.
type RemoteInputProps struct {
	Scenes          []RemoteScene      `json:"scenes"`
	NarrationURL    string             `json:"narrationUrl"`
	MusicURL        string             `json:"musicUrl,omitempty"`
	Captions        []RemoteCaptionCue `json:"captions,omitempty"`
	CaptionPreset   string             `json:"captionPreset"`
	CaptionPosition string             `json:"captionPosition"`
	FontFamily      string             `json:"fontFamily"`
	WatermarkText   string             `json:"watermarkText,omitempty"`
	Width           int                `json:"width"`
	Height          int                `json:"height"`
	FPS             int                `json:"fps"`
	DurationFrames  int                `json:"durationInFrames"`
}

type remoteSubmitRequest struct {
	Composition string           `json:"composition"`
	InputProps  RemoteInputProps `json:"inputProps"`
}

type remoteSubmitResponse struct {
	RenderID string `json:"renderId"`
}

type remoteProgressResponse struct {
	Done                  bool     `json:"done"`
	OverallProgress       float64  `json:"overallProgress"`
	FatalErrorEncountered bool     `json:"fatalErrorEncountered"`
	Errors                []string `json:"errors"`
	OutputKey             string   `json:"outputKey"`
}

// BuildRemoteProps converts planner output into the remote prop payload.
// URLs must already be signed; the remote service has no storage credentials.
func BuildRemoteProps(scenes []models.Scene, sceneURLs []string, effects []ClipEffect,
	narrationURL, musicURL string, cues []models.CaptionCue,
	opts models.RenderOptions) RemoteInputProps {

	remoteScenes := make([]RemoteScene, len(scenes))
	cursor := 0.0
	for i, s := range scenes {
		effect := EffectZoomIn
		if i < len(effects) {
			effect = effects[i]
		}
		remoteScenes[i] = RemoteScene{
			SourceURL:      sceneURLs[i],
			DurationFrames: s.DurationFrames,
			Effect:         string(effect),
			StartSeconds:   cursor,
		}
		cursor += float64(s.DurationFrames) / float64(VideoFPS)
	}

	remoteCues := make([]RemoteCaptionCue, len(cues))
	for i, c := range cues {
		rc := RemoteCaptionCue{Text: c.Text, Start: c.Start, End: c.End}
		for _, w := range c.Words {
			rc.Words = append(rc.Words, RemoteCaptionWord{Text: w.Word, Start: w.Start, End: w.End})
		}
		remoteCues[i] = rc
	}

	watermark := ""
	if opts.Watermark.Active() {
		watermark = opts.Watermark.Value
	}

	return RemoteInputProps{
		Scenes:          remoteScenes,
		NarrationURL:    narrationURL,
		MusicURL:        musicURL,
		Captions:        remoteCues,
		CaptionPreset:   string(opts.CaptionPreset),
		CaptionPosition: string(opts.CaptionPosition),
		FontFamily:      FontForLanguage(opts.Language),
		WatermarkText:   watermark,
		Width:           opts.Width,
		Height:          opts.Height,
		FPS:             VideoFPS,
		DurationFrames:  models.TotalSceneFrames(scenes),
	}
}

// Submit starts a render and returns its ID.
func (c *RemoteRenderClient) Submit(ctx context.Context, props RemoteInputProps) (string, error) {
	body, err := json.Marshal(remoteSubmitRequest{Composition: c.composition, InputProps: props})
	if err != nil {
		return "", fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/renders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("render submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("render submit returned %d: %s", resp.StatusCode, string(data))
	}

	var out remoteSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if out.RenderID == "" {
		return "", fmt.Errorf("render submit returned no render ID")
	}

	log.Printf("[RemoteRender] Submitted render %s (composition %s, %d scenes)",
		out.RenderID, c.composition, len(props.Scenes))
	return out.RenderID, nil
}

// WaitForOutput polls the render until it completes and returns the output
// object key. Fatal remote errors and the poll deadline both fail the wait.
func (c *RemoteRenderClient) WaitForOutput(ctx context.Context, renderID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollDeadline)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("render %s did not finish within %s", renderID, c.pollDeadline)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		progress, err := c.fetchProgress(ctx, renderID)
		if err != nil {
			// Transient poll failures are retried on the next tick.
			log.Printf("[RemoteRender] Warning: progress poll for %s failed: %v", renderID, err)
			continue
		}

		if progress.FatalErrorEncountered {
			msg := "unknown remote error"
			if len(progress.Errors) > 0 {
				msg = strings.Join(progress.Errors, "; ")
			}
			return "", fmt.Errorf("render %s failed remotely: %s", renderID, msg)
		}

		if progress.Done {
			if progress.OutputKey == "" {
				return "", fmt.Errorf("render %s finished without an output key", renderID)
			}
			log.Printf("[RemoteRender] Render %s complete, output %s", renderID, progress.OutputKey)
			return progress.OutputKey, nil
		}

		log.Printf("[RemoteRender] Render %s at %.0f%%", renderID, progress.OverallProgress*100)
	}
}

func (c *RemoteRenderClient) fetchProgress(ctx context.Context, renderID string) (*remoteProgressResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/renders/"+renderID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("progress returned %d: %s", resp.StatusCode, string(data))
	}

	var out remoteProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode progress response: %w", err)
	}
	return &out, nil
}

// DownloadOutput fetches the finished render by its output key with bounded
// retries, returning the video bytes.
func (c *RemoteRenderClient) DownloadOutput(ctx context.Context, outputKey string) ([]byte, error) {
	const maxAttempts = 5

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := c.downloadOnce(ctx, outputKey)
		if err == nil {
			return data, nil
		}
		lastErr = err
		log.Printf("[RemoteRender] Download attempt %d/%d for %s failed: %v",
			attempt, maxAttempts, outputKey, err)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.downloadDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to download render output after %d attempts: %w", maxAttempts, lastErr)
}

func (c *RemoteRenderClient) downloadOnce(ctx context.Context, outputKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/outputs/"+outputKey, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("output download returned %d: %s", resp.StatusCode, string(data))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read output body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("output download returned empty body")
	}
	return data, nil
}

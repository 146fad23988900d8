package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/db"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/queue"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/services"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/storage"
)

// maxJobAttempts bounds delivery retries before an attempt is finalized as
// a permanent failure.
const maxJobAttempts = 3

// intakeRouters is how many goroutines drain the intake queue. Routing is
// cheap; two is enough to keep the strategy queues fed.
const intakeRouters = 2

type Worker struct {
	db          *db.DB
	queue       *queue.Queue
	storage     *storage.Storage
	extractor   *services.Extractor
	ffmpeg      *services.FFmpegService
	remote      *services.RemoteRenderClient // nil when the hosted renderer is disabled
	transcriber *services.Transcriber        // nil when transcription is unconfigured
	finalizer   *Finalizer

	fontsDir          string
	localConcurrency  int
	remoteConcurrency int
	pickEffect        services.EffectPicker
}

func New(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	extractor *services.Extractor,
	ffmpegSvc *services.FFmpegService,
	remote *services.RemoteRenderClient,
	transcriber *services.Transcriber,
	finalizer *Finalizer,
	fontsDir string,
	localConcurrency, remoteConcurrency int,
) *Worker {
	if localConcurrency < 1 {
		localConcurrency = 1
	}
	if remoteConcurrency < 1 {
		remoteConcurrency = 1
	}
	return &Worker{
		db:                database,
		queue:             q,
		storage:           stor,
		extractor:         extractor,
		ffmpeg:            ffmpegSvc,
		remote:            remote,
		transcriber:       transcriber,
		finalizer:         finalizer,
		fontsDir:          fontsDir,
		localConcurrency:  localConcurrency,
		remoteConcurrency: remoteConcurrency,
		pickEffect:        services.RandomEffectPicker(),
	}
}

// Start begins draining the intake and strategy queues. Local encodes are
// CPU-bound and get a small pool; remote renders mostly wait on polling and
// get a wider one. Blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("Worker started (local=%d, remote=%d, remote renderer %s)",
		w.localConcurrency, w.remoteConcurrency, enabledString(w.remote != nil))

	if backlog, err := w.queue.GetQueueLength(ctx, queue.QueueRenderRequests); err == nil && backlog > 0 {
		log.Printf("Worker found %d queued render requests from a previous run", backlog)
	}

	for i := 0; i < intakeRouters; i++ {
		go w.processQueue(ctx, queue.QueueRenderRequests, w.withRetry(w.handleIntake, w.requeueIntake))
	}
	for i := 0; i < w.localConcurrency; i++ {
		go w.processQueue(ctx, queue.QueueLocalEncode, w.withRetry(w.handleLocalEncode, w.requeueStrategy))
	}
	if w.remote != nil {
		for i := 0; i < w.remoteConcurrency; i++ {
			go w.processQueue(ctx, queue.QueueRemoteRender, w.withRetry(w.handleRemoteRender, w.requeueStrategy))
		}
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func enabledString(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Envelope) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			env, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}
			if env == nil {
				continue // no job available
			}

			if err := handler(ctx, env); err != nil {
				log.Printf("Job for step %s failed on %s: %v", env.Job.StepID, queueName, err)
			}
		}
	}
}

// withRetry wraps a queue handler with bounded redelivery. A failed attempt
// goes back on its queue via requeue until maxJobAttempts, then the failure
// is finalized so the step record reflects the lost job. Finalization itself
// is conditional, so a redelivered job whose step already finished becomes a
// no-op inside the handler.
func (w *Worker) withRetry(handler, requeue func(context.Context, *queue.Envelope) error) func(context.Context, *queue.Envelope) error {
	return func(ctx context.Context, env *queue.Envelope) error {
		err := handler(ctx, env)
		if err == nil {
			return nil
		}

		attempt := env.Attempts + 1
		if attempt < maxJobAttempts {
			log.Printf("Step %s attempt %d/%d failed, re-enqueueing: %v",
				env.Job.StepID, attempt, maxJobAttempts, err)
			retry := *env
			retry.Attempts = attempt
			if enqErr := requeue(ctx, &retry); enqErr != nil {
				return fmt.Errorf("retry enqueue failed after %v: %w", err, enqErr)
			}
			return err
		}

		log.Printf("Step %s exhausted %d attempts, finalizing failure", env.Job.StepID, maxJobAttempts)
		if _, finErr := w.finalizer.FinalizeFailure(ctx, env.Job, err); finErr != nil {
			return fmt.Errorf("failure finalization failed after %v: %w", err, finErr)
		}
		return err
	}
}

func (w *Worker) requeueIntake(ctx context.Context, env *queue.Envelope) error {
	return w.queue.Enqueue(ctx, queue.QueueRenderRequests, env)
}

func (w *Worker) requeueStrategy(ctx context.Context, env *queue.Envelope) error {
	return w.queue.EnqueueForStrategy(ctx, env)
}

// handleIntake routes a fresh render request onto its strategy queue.
func (w *Worker) handleIntake(ctx context.Context, env *queue.Envelope) error {
	env.Strategy = RouteStrategy(env.Job.Bucket, w.remote != nil)
	log.Printf("Routing step %s (bucket %s) to %s", env.Job.StepID, env.Job.Bucket, env.Strategy)
	return w.queue.EnqueueForStrategy(ctx, env)
}

// ---------------------------------------------------------------------------
// Local encode path
// ---------------------------------------------------------------------------

func (w *Worker) handleLocalEncode(ctx context.Context, env *queue.Envelope) error {
	job := env.Job
	log.Printf("[LocalEncode] Starting step %s (reel %s, attempt %d)", job.StepID, job.ReelID, env.Attempts+1)

	if err := w.db.MarkStepStarted(ctx, job.StepID); err != nil {
		log.Printf("[LocalEncode] Warning: failed to mark step %s started: %v", job.StepID, err)
	}
	if err := w.db.UpdateReelStatus(ctx, job.ReelID, models.ReelStatusRendering); err != nil {
		log.Printf("[LocalEncode] Warning: failed to mark reel %s rendering: %v", job.ReelID, err)
	}

	reel, err := w.db.GetReel(ctx, job.ReelID)
	if err != nil {
		return fmt.Errorf("failed to load reel %s: %w", job.ReelID, err)
	}

	scratch, err := w.ffmpeg.CreateScratchDir(job.StepID.String())
	if err != nil {
		return err
	}
	defer w.ffmpeg.Cleanup(scratch)

	// Fetch every input concurrently. The narration track is mandatory;
	// music and captions are optional per job.
	narrationPath := filepath.Join(scratch, "narration"+filepath.Ext(job.AudioRef))
	musicPath := ""
	visualPaths := make(map[string]string, len(job.VisualRefs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.storage.DownloadToFile(gctx, job.AudioRef, narrationPath)
	})
	if job.MusicRef != "" {
		musicPath = filepath.Join(scratch, "music"+filepath.Ext(job.MusicRef))
		g.Go(func() error {
			return w.storage.DownloadToFile(gctx, job.MusicRef, musicPath)
		})
	}
	for i, ref := range job.VisualRefs {
		i, ref := i, ref
		local := filepath.Join(scratch, fmt.Sprintf("visual_%d%s", i, filepath.Ext(ref)))
		visualPaths[ref] = local
		g.Go(func() error {
			return w.storage.DownloadToFile(gctx, ref, local)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to download job inputs: %w", err)
	}

	doc, err := w.prepareCaptions(ctx, job, narrationPath)
	if err != nil {
		return err
	}

	totalFrames, scenes, overlap, err := w.buildTimeline(ctx, job, narrationPath)
	if err != nil {
		return err
	}

	// Placeholder scenes need a real file for the encoder.
	if _, ok := visualPaths[services.PlaceholderAssetRef]; !ok && usesPlaceholder(scenes) {
		placeholder := filepath.Join(scratch, "placeholder.png")
		if err := w.ffmpeg.CreateBlackFrame(ctx, placeholder, job.Options.Width, job.Options.Height); err != nil {
			return err
		}
		visualPaths[services.PlaceholderAssetRef] = placeholder
	}

	scenePaths := make([]string, len(scenes))
	for i, s := range scenes {
		local, ok := visualPaths[s.AssetRef]
		if !ok {
			return fmt.Errorf("no local file for visual %q", s.AssetRef)
		}
		scenePaths[i] = local
	}

	captionMode := captionModeFor(doc)
	subtitlePath := ""
	fontsDir := ""
	var cues []models.CaptionCue
	switch captionMode {
	case services.CaptionModeASS:
		subtitlePath = filepath.Join(scratch, "subtitles.ass")
		assDoc := services.GenerateASS(doc.Cues, job.Options.CaptionPreset, job.Options.CaptionPosition,
			job.Options.Language, job.Options.Width, job.Options.Height)
		if err := os.WriteFile(subtitlePath, []byte(assDoc), 0o644); err != nil {
			return fmt.Errorf("failed to write subtitle file: %w", err)
		}
		if services.NeedsBundledFonts(job.Options.Language) {
			fontsDir = w.fontsDir
		}
	case services.CaptionModeDrawtext:
		cues = doc.Cues
	}

	plan, err := services.BuildComposition(services.CompositionRequest{
		Scenes:          scenes,
		ScenePaths:      scenePaths,
		NarrationPath:   narrationPath,
		MusicPath:       musicPath,
		CaptionMode:     captionMode,
		SubtitlePath:    subtitlePath,
		FontsDir:        fontsDir,
		Cues:            cues,
		CaptionPreset:   job.Options.CaptionPreset,
		CaptionPosition: job.Options.CaptionPosition,
		Watermark:       job.Options.Watermark,
		Width:           job.Options.Width,
		Height:          job.Options.Height,
		OverlapFrames:   overlap,
		PickEffect:      w.pickEffect,
	})
	if err != nil {
		return err
	}

	outputPath := filepath.Join(scratch, "output.mp4")
	if err := w.ffmpeg.Encode(ctx, plan, outputPath); err != nil {
		return err
	}

	asset, err := w.storeResult(ctx, job, outputPath)
	if err != nil {
		return err
	}

	_, err = w.finalizer.FinalizeSuccess(ctx, job, reel.Title, asset.ID, asset.StoragePath)
	if err != nil {
		return err
	}

	log.Printf("[LocalEncode] Step %s done (%d scenes, %d frames)", job.StepID, len(scenes), totalFrames)
	return nil
}

// ---------------------------------------------------------------------------
// Remote render path
// ---------------------------------------------------------------------------

func (w *Worker) handleRemoteRender(ctx context.Context, env *queue.Envelope) error {
	job := env.Job
	log.Printf("[RemoteRender] Starting step %s (reel %s, attempt %d)", job.StepID, job.ReelID, env.Attempts+1)

	if err := w.db.MarkStepStarted(ctx, job.StepID); err != nil {
		log.Printf("[RemoteRender] Warning: failed to mark step %s started: %v", job.StepID, err)
	}
	if err := w.db.UpdateReelStatus(ctx, job.ReelID, models.ReelStatusRendering); err != nil {
		log.Printf("[RemoteRender] Warning: failed to mark reel %s rendering: %v", job.ReelID, err)
	}

	reel, err := w.db.GetReel(ctx, job.ReelID)
	if err != nil {
		return fmt.Errorf("failed to load reel %s: %w", job.ReelID, err)
	}

	// Pacing still runs locally: the narration is fetched for duration and
	// beat analysis even though the frames render remotely.
	scratch, err := w.ffmpeg.CreateScratchDir(job.StepID.String())
	if err != nil {
		return err
	}
	defer w.ffmpeg.Cleanup(scratch)

	narrationPath := filepath.Join(scratch, "narration"+filepath.Ext(job.AudioRef))
	if err := w.storage.DownloadToFile(ctx, job.AudioRef, narrationPath); err != nil {
		return fmt.Errorf("failed to download narration: %w", err)
	}

	doc, err := w.prepareCaptions(ctx, job, narrationPath)
	if err != nil {
		return err
	}

	_, scenes, _, err := w.buildTimeline(ctx, job, narrationPath)
	if err != nil {
		return err
	}

	// The hosted renderer pulls inputs itself, so every reference becomes a
	// signed URL. Expiry covers the poll deadline with margin.
	const urlTTLSeconds = 4 * 3600

	signed := func(ref string) (string, error) {
		if ref == services.PlaceholderAssetRef {
			return ref, nil // the remote composition renders its own black slate
		}
		return w.storage.GetSignedURL(ctx, ref, urlTTLSeconds)
	}

	sceneURLs := make([]string, len(scenes))
	for i, s := range scenes {
		url, err := signed(s.AssetRef)
		if err != nil {
			return fmt.Errorf("failed to sign visual %q: %w", s.AssetRef, err)
		}
		sceneURLs[i] = url
	}
	narrationURL, err := w.storage.GetSignedURL(ctx, job.AudioRef, urlTTLSeconds)
	if err != nil {
		return fmt.Errorf("failed to sign narration: %w", err)
	}
	musicURL := ""
	if job.MusicRef != "" {
		if musicURL, err = w.storage.GetSignedURL(ctx, job.MusicRef, urlTTLSeconds); err != nil {
			return fmt.Errorf("failed to sign music: %w", err)
		}
	}

	effects := make([]services.ClipEffect, len(scenes))
	for i := range scenes {
		effects[i] = w.pickEffect(i)
	}

	var cues []models.CaptionCue
	if doc != nil {
		cues = doc.Cues
	}

	props := services.BuildRemoteProps(scenes, sceneURLs, effects, narrationURL, musicURL, cues, job.Options)

	renderID, err := w.remote.Submit(ctx, props)
	if err != nil {
		return err
	}
	outputKey, err := w.remote.WaitForOutput(ctx, renderID)
	if err != nil {
		return err
	}
	data, err := w.remote.DownloadOutput(ctx, outputKey)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(scratch, "output.mp4")
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write remote output: %w", err)
	}

	asset, err := w.storeResult(ctx, job, outputPath)
	if err != nil {
		return err
	}

	_, err = w.finalizer.FinalizeSuccess(ctx, job, reel.Title, asset.ID, asset.StoragePath)
	if err != nil {
		return err
	}

	log.Printf("[RemoteRender] Step %s done (render %s)", job.StepID, renderID)
	return nil
}

// ---------------------------------------------------------------------------
// Shared stages
// ---------------------------------------------------------------------------

// captionModeFor picks the burn-in strategy for a caption document: word
// timings (native or transcribed) render as a karaoke ASS document, plain
// cue-level input overlays as timed drawtext.
func captionModeFor(doc *models.CaptionDocument) services.CaptionMode {
	switch {
	case doc == nil || len(doc.Cues) == 0:
		return services.CaptionModeNone
	case doc.HasWordTimings():
		return services.CaptionModeASS
	default:
		return services.CaptionModeDrawtext
	}
}

// prepareCaptions downloads and parses the caption document, recovering word
// timings via transcription when the document lacks them. A job without a
// caption reference renders without captions.
func (w *Worker) prepareCaptions(ctx context.Context, job models.RenderJob, narrationPath string) (*models.CaptionDocument, error) {
	if job.CaptionRef == "" {
		return nil, nil
	}

	data, err := w.storage.Download(ctx, job.CaptionRef)
	if err != nil {
		return nil, fmt.Errorf("failed to download captions: %w", err)
	}

	var doc models.CaptionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse caption document: %w", err)
	}
	if doc.Language == "" {
		doc.Language = job.Options.Language
	}

	if !doc.HasWordTimings() && w.transcriber != nil && len(doc.Cues) > 0 {
		audio, err := os.ReadFile(narrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read narration for transcription: %w", err)
		}
		words, err := w.transcriber.WordTimings(ctx, audio, doc.Language)
		if err != nil {
			// Word timings are an enhancement: karaoke degrades to plain
			// cue highlighting rather than failing the render.
			log.Printf("[Captions] Warning: transcription for step %s failed, using cue-level timing: %v",
				job.StepID, err)
		} else {
			doc.Cues = services.MergeWordTimings(doc.Cues, words)
		}
	}

	return &doc, nil
}

// buildTimeline probes the narration, clamps the total duration to the
// bucket, runs beat analysis, and allocates per-scene durations.
func (w *Worker) buildTimeline(ctx context.Context, job models.RenderJob, narrationPath string) (int, []models.Scene, int, error) {
	durationSec := w.extractor.AudioDuration(ctx, narrationPath)

	totalFrames := int(math.Round(durationSec * services.VideoFPS))
	totalFrames = services.ClampDurationFrames(totalFrames, job.Bucket)

	beats := w.extractor.ExtractBeats(ctx, narrationPath)
	if len(beats) == 0 {
		beats = services.FallbackBeatGrid(durationSec)
	}

	style := job.Options.Pacing
	sync := services.BuildBeatSync(beats, totalFrames, style)
	overlap := services.TransitionOverlapFrames(style)

	scenes, err := services.BuildScenes(job.VisualRefs, totalFrames, sync.CutFrames, style, overlap)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("failed to build scenes: %w", err)
	}

	return totalFrames, scenes, overlap, nil
}

// storeResult uploads the finished video and records its asset row.
func (w *Worker) storeResult(ctx context.Context, job models.RenderJob, outputPath string) (*models.Asset, error) {
	storagePath := w.storage.GenerateStoragePath(job.ReelID, fmt.Sprintf("final_%s.mp4", job.StepID))
	if err := w.storage.UploadFile(ctx, storagePath, outputPath, "video/mp4"); err != nil {
		return nil, fmt.Errorf("failed to upload result: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat result: %w", err)
	}

	contentType := "video/mp4"
	size := info.Size()
	asset := &models.Asset{
		ID:            uuid.New(),
		ReelID:        job.ReelID,
		Type:          models.AssetTypeFinalVideo,
		StorageBucket: w.storage.Bucket,
		StoragePath:   storagePath,
		ContentType:   &contentType,
		ByteSize:      &size,
	}
	if err := w.db.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to record result asset: %w", err)
	}
	return asset, nil
}

func usesPlaceholder(scenes []models.Scene) bool {
	for _, s := range scenes {
		if s.AssetRef == services.PlaceholderAssetRef {
			return true
		}
	}
	return false
}

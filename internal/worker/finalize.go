package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
)

// FinalizeStore is the slice of the database layer finalization needs. The
// conditional updates are the whole point: every transition is a compare-
// and-swap so concurrent or retried attempts cannot double-apply.
type FinalizeStore interface {
	UpdateStepStatusIfProcessing(ctx context.Context, id uuid.UUID, status models.StepStatus, resultAssetID *uuid.UUID, errorMessage *string) (bool, error)
	CompleteReelIfNotCompleted(ctx context.Context, id uuid.UUID, finalVideoAssetID uuid.UUID) (bool, error)
	FailReelIfNotCompleted(ctx context.Context, id uuid.UUID, errorMessage string) error
	CompleteProjectIfAllReelsDone(ctx context.Context, projectID uuid.UUID) (bool, error)
	DeductCredits(ctx context.Context, id uuid.UUID, amount int) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CompletionNotifier sends the "your video is ready" email. Satisfied by
// services.Mailer.
type CompletionNotifier interface {
	Enabled() bool
	SendRenderComplete(ctx context.Context, to, reelTitle, videoURL string) error
}

// creditCost is the per-render billing amount by duration bucket.
var creditCost = map[models.DurationBucket]int{
	models.BucketShort:  1,
	models.BucketMedium: 2,
	models.BucketLong:   4,
}

// Finalizer applies the terminal transitions for a render attempt. The step
// update is the single idempotency gate: if this attempt does not win the
// step transition, nothing else runs.
type Finalizer struct {
	store    FinalizeStore
	notifier CompletionNotifier
	videoURL func(storagePath string) string
}

func NewFinalizer(store FinalizeStore, notifier CompletionNotifier, videoURL func(string) string) *Finalizer {
	if videoURL == nil {
		videoURL = func(string) string { return "" }
	}
	return &Finalizer{store: store, notifier: notifier, videoURL: videoURL}
}

// postCommitAction is one side effect to run after the parent reel completes.
// Actions are independent: each failure is logged and swallowed so one bad
// integration never blocks the others or fails the render.
type postCommitAction struct {
	Name string
	Run  func(ctx context.Context) error
}

// FinalizeSuccess records a finished render. It transitions the step, then
// the reel, then fires the post-commit side effects. Returns whether this
// attempt won the step transition.
func (f *Finalizer) FinalizeSuccess(ctx context.Context, job models.RenderJob, reelTitle string, resultAssetID uuid.UUID, resultPath string) (bool, error) {
	won, err := f.store.UpdateStepStatusIfProcessing(ctx, job.StepID, models.StepStatusSuccess, &resultAssetID, nil)
	if err != nil {
		return false, fmt.Errorf("failed to finalize step %s: %w", job.StepID, err)
	}
	if !won {
		// Another attempt already finalized this step. Everything downstream
		// belongs to that attempt.
		log.Printf("[Finalize] Step %s already finalized, skipping", job.StepID)
		return false, nil
	}

	completed, err := f.store.CompleteReelIfNotCompleted(ctx, job.ReelID, resultAssetID)
	if err != nil {
		return true, fmt.Errorf("step %s finalized but reel %s completion failed: %w", job.StepID, job.ReelID, err)
	}
	if !completed {
		log.Printf("[Finalize] Reel %s was already completed, skipping post-commit actions", job.ReelID)
		return true, nil
	}

	log.Printf("[Finalize] Reel %s completed (step %s, asset %s)", job.ReelID, job.StepID, resultAssetID)

	for _, action := range f.successActions(job, reelTitle, resultPath) {
		if err := action.Run(ctx); err != nil {
			log.Printf("[Finalize] Warning: post-commit action %q for reel %s failed: %v",
				action.Name, job.ReelID, err)
		}
	}
	return true, nil
}

func (f *Finalizer) successActions(job models.RenderJob, reelTitle, resultPath string) []postCommitAction {
	actions := []postCommitAction{
		{
			Name: "deduct credits",
			Run: func(ctx context.Context) error {
				cost, ok := creditCost[job.Bucket]
				if !ok {
					cost = creditCost[models.BucketLong]
				}
				return f.store.DeductCredits(ctx, job.UserID, cost)
			},
		},
	}

	if job.ProjectID != nil {
		projectID := *job.ProjectID
		actions = append(actions, postCommitAction{
			Name: "propagate project completion",
			Run: func(ctx context.Context) error {
				done, err := f.store.CompleteProjectIfAllReelsDone(ctx, projectID)
				if err != nil {
					return err
				}
				if done {
					log.Printf("[Finalize] Project %s completed", projectID)
				}
				return nil
			},
		})
	}

	if f.notifier != nil && f.notifier.Enabled() {
		actions = append(actions, postCommitAction{
			Name: "send completion email",
			Run: func(ctx context.Context) error {
				user, err := f.store.GetUser(ctx, job.UserID)
				if err != nil {
					return err
				}
				return f.notifier.SendRenderComplete(ctx, user.Email, reelTitle, f.videoURL(resultPath))
			},
		})
	}

	return actions
}

// FinalizeFailure records a permanently failed render. The reel only moves
// to failed if no other attempt has already completed it.
func (f *Finalizer) FinalizeFailure(ctx context.Context, job models.RenderJob, renderErr error) (bool, error) {
	msg := renderErr.Error()
	won, err := f.store.UpdateStepStatusIfProcessing(ctx, job.StepID, models.StepStatusFailed, nil, &msg)
	if err != nil {
		return false, fmt.Errorf("failed to record step %s failure: %w", job.StepID, err)
	}
	if !won {
		log.Printf("[Finalize] Step %s already finalized, skipping failure record", job.StepID)
		return false, nil
	}

	if err := f.store.FailReelIfNotCompleted(ctx, job.ReelID, msg); err != nil {
		return true, fmt.Errorf("step %s failed but reel %s update failed: %w", job.StepID, job.ReelID, err)
	}

	log.Printf("[Finalize] Reel %s marked failed (step %s): %s", job.ReelID, job.StepID, msg)
	return true, nil
}

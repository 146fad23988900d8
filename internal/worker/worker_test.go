package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/queue"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/services"
)

func TestCaptionModeSelection(t *testing.T) {
	cueOnly := &models.CaptionDocument{
		Cues: []models.CaptionCue{{Start: 0, End: 2, Text: "plain cue"}},
	}
	karaoke := &models.CaptionDocument{
		Cues: []models.CaptionCue{{
			Start: 0, End: 2, Text: "timed cue",
			Words: []models.WordTiming{{Word: "timed", Start: 0, End: 1}, {Word: "cue", Start: 1, End: 2}},
		}},
	}

	cases := []struct {
		name string
		doc  *models.CaptionDocument
		want services.CaptionMode
	}{
		{"no document", nil, services.CaptionModeNone},
		{"empty cues", &models.CaptionDocument{}, services.CaptionModeNone},
		{"cue-level timings only", cueOnly, services.CaptionModeDrawtext},
		{"word timings", karaoke, services.CaptionModeASS},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, captionModeFor(tc.doc))
		})
	}
}

// retryHarness wires withRetry to fakes so redelivery can be driven without
// a live queue.
type retryHarness struct {
	worker   *Worker
	store    *fakeStore
	requeued []*queue.Envelope
}

func newRetryHarness() *retryHarness {
	h := &retryHarness{store: newFakeStore()}
	h.worker = &Worker{
		finalizer: NewFinalizer(h.store, &fakeNotifier{}, nil),
	}
	return h
}

func (h *retryHarness) requeue(_ context.Context, env *queue.Envelope) error {
	h.requeued = append(h.requeued, env)
	return nil
}

func failingHandler(_ context.Context, _ *queue.Envelope) error {
	return errors.New("render exploded")
}

func TestWithRetryRequeuesFailedAttempt(t *testing.T) {
	h := newRetryHarness()
	env := &queue.Envelope{Job: testJob(models.BucketShort)}

	wrapped := h.worker.withRetry(failingHandler, h.requeue)
	err := wrapped(context.Background(), env)
	require.Error(t, err)

	require.Len(t, h.requeued, 1)
	assert.Equal(t, 1, h.requeued[0].Attempts)
	assert.Equal(t, env.Job.StepID, h.requeued[0].Job.StepID)

	// The job is still in flight, so the step must not be finalized.
	assert.Equal(t, models.StepStatusProcessing, h.store.stepStatus)
	assert.Zero(t, h.store.stepUpdates)
}

func TestWithRetryFinalizesAfterLastAttempt(t *testing.T) {
	h := newRetryHarness()
	env := &queue.Envelope{
		Job:      testJob(models.BucketShort),
		Attempts: maxJobAttempts - 1,
	}

	wrapped := h.worker.withRetry(failingHandler, h.requeue)
	err := wrapped(context.Background(), env)
	require.Error(t, err)

	assert.Empty(t, h.requeued)
	assert.Equal(t, models.StepStatusFailed, h.store.stepStatus)
	assert.True(t, h.store.reelFailed)
}

func TestWithRetrySuccessTouchesNothing(t *testing.T) {
	h := newRetryHarness()
	env := &queue.Envelope{Job: testJob(models.BucketShort)}

	wrapped := h.worker.withRetry(func(context.Context, *queue.Envelope) error { return nil }, h.requeue)
	require.NoError(t, wrapped(context.Background(), env))

	assert.Empty(t, h.requeued)
	assert.Equal(t, models.StepStatusProcessing, h.store.stepStatus)
}

func TestWithRetrySurfacesRequeueFailure(t *testing.T) {
	h := newRetryHarness()
	env := &queue.Envelope{Job: testJob(models.BucketShort)}

	requeueErr := errors.New("redis gone")
	wrapped := h.worker.withRetry(failingHandler, func(context.Context, *queue.Envelope) error {
		return requeueErr
	})

	err := wrapped(context.Background(), env)
	require.Error(t, err)
	assert.ErrorIs(t, err, requeueErr)
}

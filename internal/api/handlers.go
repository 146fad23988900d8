package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/db"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/queue"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/storage"
	"github.com/Vatsal2401/Auto-Reels-Render/internal/worker"
)

// signedURLTTL is how long download links stay valid.
const signedURLTTL = 3600

type Handler struct {
	db            *db.DB
	queue         *queue.Queue
	storage       *storage.Storage
	remoteEnabled bool
}

func NewHandler(database *db.DB, q *queue.Queue, stor *storage.Storage, remoteEnabled bool) *Handler {
	return &Handler{
		db:            database,
		queue:         q,
		storage:       stor,
		remoteEnabled: remoteEnabled,
	}
}

// CreateReel handles POST /v1/reels. The reel is registered as queued;
// rendering starts only when a render request comes in for it.
func (h *Handler) CreateReel(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate
	if req.UserID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if req.AudioRef == "" {
		respondError(w, http.StatusBadRequest, "Audio ref is required")
		return
	}
	switch req.Bucket {
	case models.BucketShort, models.BucketMedium, models.BucketLong:
	default:
		respondError(w, http.StatusBadRequest, "Bucket must be short, medium, or long")
		return
	}

	// Set defaults
	options := models.RenderOptions{Width: 1080, Height: 1920, Pacing: models.PacingSmooth}
	if req.Options != nil {
		options = *req.Options
		if options.Width <= 0 {
			options.Width = 1080
		}
		if options.Height <= 0 {
			options.Height = 1920
		}
		if options.Pacing == "" {
			options.Pacing = models.PacingSmooth
		}
	}

	if req.ProjectID != nil {
		if _, err := h.db.GetProject(r.Context(), *req.ProjectID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				respondError(w, http.StatusNotFound, "Project not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to load project")
			return
		}
	}

	reel := &models.Reel{
		ID:         uuid.New(),
		ProjectID:  req.ProjectID,
		UserID:     req.UserID,
		Title:      req.Title,
		Status:     models.ReelStatusQueued,
		Bucket:     req.Bucket,
		AudioRef:   req.AudioRef,
		CaptionRef: req.CaptionRef,
		MusicRef:   req.MusicRef,
		VisualRefs: req.VisualRefs,
		Options:    options,
	}
	if err := h.db.CreateReel(r.Context(), reel); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create reel")
		return
	}

	respondJSON(w, http.StatusCreated, reel)
}

// StartRender handles POST /v1/reels/{id}/render. It records a processing
// step and places the job on the intake queue. The strategy in the response
// is advisory; the worker routes for real at dequeue time.
func (h *Handler) StartRender(w http.ResponseWriter, r *http.Request) {
	reelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid reel ID")
		return
	}

	reel, err := h.db.GetReel(r.Context(), reelID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Reel not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load reel")
		return
	}

	if reel.Status == models.ReelStatusCompleted {
		respondError(w, http.StatusConflict, "Reel is already completed")
		return
	}

	strategy := worker.RouteStrategy(reel.Bucket, h.remoteEnabled)

	step := &models.RenderStep{
		ID:        uuid.New(),
		ReelID:    reel.ID,
		Strategy:  strategy,
		Status:    models.StepStatusProcessing,
		CreatedAt: time.Now(),
	}
	if err := h.db.CreateRenderStep(r.Context(), step); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create render step")
		return
	}

	job := models.RenderJob{
		StepID:     step.ID,
		ReelID:     reel.ID,
		ProjectID:  reel.ProjectID,
		UserID:     reel.UserID,
		AudioRef:   reel.AudioRef,
		VisualRefs: reel.VisualRefs,
		Options:    reel.Options,
		Bucket:     reel.Bucket,
	}
	if reel.CaptionRef != nil {
		job.CaptionRef = *reel.CaptionRef
	}
	if reel.MusicRef != nil {
		job.MusicRef = *reel.MusicRef
	}

	if err := h.queue.EnqueueRenderRequest(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue render")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateRenderResponse{
		StepID:   step.ID,
		Strategy: strategy,
		Status:   step.Status,
	})
}

// GetReel handles GET /v1/reels/{id}
func (h *Handler) GetReel(w http.ResponseWriter, r *http.Request) {
	reelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid reel ID")
		return
	}

	reel, err := h.db.GetReel(r.Context(), reelID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Reel not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load reel")
		return
	}

	resp := models.ReelResponse{Reel: *reel}

	steps, err := h.db.GetReelSteps(r.Context(), reelID)
	if err == nil {
		resp.Steps = steps
	}

	if reel.FinalVideoAssetID != nil {
		if asset, err := h.db.GetAsset(r.Context(), *reel.FinalVideoAssetID); err == nil {
			if url, err := h.storage.GetSignedURL(r.Context(), asset.StoragePath, signedURLTTL); err == nil {
				resp.FinalVideoURL = &url
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetRenderStep handles GET /v1/steps/{id}
func (h *Handler) GetRenderStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid step ID")
		return
	}

	step, err := h.db.GetRenderStep(r.Context(), stepID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Render step not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load render step")
		return
	}

	respondJSON(w, http.StatusOK, step)
}

// GetReelDownload handles GET /v1/reels/{id}/download
func (h *Handler) GetReelDownload(w http.ResponseWriter, r *http.Request) {
	reelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid reel ID")
		return
	}

	reel, err := h.db.GetReel(r.Context(), reelID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Reel not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load reel")
		return
	}

	if reel.Status != models.ReelStatusCompleted || reel.FinalVideoAssetID == nil {
		respondError(w, http.StatusConflict, "Reel has no finished video yet")
		return
	}

	asset, err := h.db.GetAsset(r.Context(), *reel.FinalVideoAssetID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load video asset")
		return
	}

	url, err := h.storage.GetSignedURL(r.Context(), asset.StoragePath, signedURLTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to sign download URL")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

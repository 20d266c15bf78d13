package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/ratelimit"
)

const maxFeedbackBody = 64 << 10

// FeedbackRequest is the public feedback payload.
type FeedbackRequest struct {
	ExperienceID string `json:"experienceId" validate:"notblank,max=128"`
	Rating       int    `json:"rating" validate:"min=1,max=5"`
	Comment      string `json:"comment,omitempty" validate:"max=2000"`
	Email        string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// Feedback is an accepted submission.
type Feedback struct {
	ID         string    `json:"id"`
	ClientKey  string    `json:"-"`
	ReceivedAt time.Time `json:"receivedAt"`
	FeedbackRequest
}

// FeedbackReceipt is returned on 201.
type FeedbackReceipt struct {
	ID           string    `json:"id"`
	ExperienceID string    `json:"experienceId"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// LogSink only logs submissions.
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) Submit(ctx context.Context, fb Feedback) error {
	s.Logger.WithContext(ctx).Info("Feedback received",
		logging.Field{Key: "feedback_id", Value: fb.ID},
		logging.Field{Key: "experience_id", Value: fb.ExperienceID},
		logging.Field{Key: "rating", Value: fb.Rating},
	)
	return nil
}

// SubmitFeedback accepts public feedback, at most three submissions per
// client per fifteen minutes.
//
// @Summary Submit feedback
// @Tags feedback
// @Accept json
// @Produce json
// @Success 201 {object} FeedbackReceipt
// @Failure 400 {object} errorResponse
// @Failure 429 {object} ratelimit.RejectionBody
// @Router /feedback [post]
func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	limiter, err := h.registry.GetOrCreate(ratelimit.PresetFeedback, nil)
	if err != nil {
		h.logger.Error("Feedback limiter unavailable", err)
		writeError(w, err)
		return
	}

	decision := limiter.CheckLimit(r)
	if !decision.Allowed {
		ratelimit.WriteRejection(w, decision, limiter.Config().Message)
		return
	}
	ratelimit.SetHeaders(w, decision)

	var req FeedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBody)).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("request body must be a JSON feedback object"))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	fb := Feedback{
		ID:              uuid.NewString(),
		ClientKey:       limiter.Config().KeyGenerator(r),
		ReceivedAt:      h.now().UTC(),
		FeedbackRequest: req,
	}
	if err := h.sink.Submit(r.Context(), fb); err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to store feedback", err,
			logging.Field{Key: "feedback_id", Value: fb.ID},
		)
		writeError(w, errors.InternalError("failed to store feedback", err))
		return
	}

	writeJSON(w, http.StatusCreated, FeedbackReceipt{
		ID:           fb.ID,
		ExperienceID: fb.ExperienceID,
		ReceivedAt:   fb.ReceivedAt,
	})
}

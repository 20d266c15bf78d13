// Package handlers serves the HTTP endpoints guarded by the rate limiters.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/common/validation"
	"github.com/RkayG/Cxperia-sub002/internal/ratelimit"
)

// FeedbackSink persists accepted feedback. Storage lives outside this service.
type FeedbackSink interface {
	Submit(ctx context.Context, fb Feedback) error
}

type Handlers struct {
	registry  *ratelimit.Registry
	validator *validation.Validator
	sink      FeedbackSink
	logger    logging.Logger
	now       func() time.Time
}

// New wires the handlers. A nil sink logs accepted feedback instead of storing it.
func New(registry *ratelimit.Registry, sink FeedbackSink, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &Handlers{
		registry:  registry,
		validator: validation.New(),
		sink:      sink,
		logger:    logger.WithFields(logging.Field{Key: "component", Value: "handlers"}),
		now:       time.Now,
	}
}

type errorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an AppError type to a status code.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	switch appErr.Type {
	case errors.ErrTypeValidation:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: appErr.Message, Fields: validation.Fields(err)})
	case errors.ErrTypeTimeout, errors.ErrTypeConnection:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

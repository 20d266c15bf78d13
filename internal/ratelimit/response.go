package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Response header names.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// isoLayout renders timestamps in UTC with millisecond precision, e.g. 2024-01-02T03:04:05.000Z.
const isoLayout = "2006-01-02T15:04:05.000Z"

// FormatResetTime renders t the way X-RateLimit-Reset and resetTime carry it.
func FormatResetTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// RejectionBody is the JSON body of a 429 response.
type RejectionBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	ResetTime  string `json:"resetTime"`
}

// SetHeaders decorates a response with the limit, remaining and reset headers.
// Retry-After is added only for rejected decisions.
func SetHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, FormatResetTime(d.ResetTime))
	if !d.Allowed && d.RetryAfter > 0 {
		h.Set(HeaderRetryAfter, strconv.Itoa(d.RetryAfter))
	}
}

// NewRejectionBody builds the 429 body for d.
func NewRejectionBody(d Decision, message string) RejectionBody {
	if message == "" {
		message = DefaultMessage
	}
	return RejectionBody{
		Error:      message,
		RetryAfter: d.RetryAfter,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		ResetTime:  FormatResetTime(d.ResetTime),
	}
}

// WriteRejection writes a complete 429 response for d.
func WriteRejection(w http.ResponseWriter, d Decision, message string) {
	SetHeaders(w, d)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(NewRejectionBody(d, message))
}

package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReset = time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC)

func TestFormatResetTime(t *testing.T) {
	assert.Equal(t, "2024-03-01T12:15:00.000Z", FormatResetTime(testReset))

	cet := time.FixedZone("CET", 3600)
	assert.Equal(t, "2024-03-01T12:15:00.250Z", FormatResetTime(testReset.Add(250*time.Millisecond).In(cet)))
}

func TestSetHeaders_Allowed(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec, Decision{Allowed: true, Limit: 100, Remaining: 99, ResetTime: testReset})

	assert.Equal(t, "100", rec.Header().Get(HeaderLimit))
	assert.Equal(t, "99", rec.Header().Get(HeaderRemaining))
	assert.Equal(t, "2024-03-01T12:15:00.000Z", rec.Header().Get(HeaderReset))
	assert.Empty(t, rec.Header().Get(HeaderRetryAfter))
}

func TestWriteRejection(t *testing.T) {
	rec := httptest.NewRecorder()
	d := Decision{Allowed: false, Limit: 3, Remaining: 0, ResetTime: testReset, RetryAfter: 840}
	WriteRejection(rec, d, "Too many feedback submissions, please try again later.")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get(HeaderLimit))
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
	assert.Equal(t, "2024-03-01T12:15:00.000Z", rec.Header().Get(HeaderReset))
	assert.Equal(t, "840", rec.Header().Get(HeaderRetryAfter))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 5)
	assert.Equal(t, "Too many feedback submissions, please try again later.", body["error"])
	assert.Equal(t, float64(840), body["retryAfter"])
	assert.Equal(t, float64(3), body["limit"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, "2024-03-01T12:15:00.000Z", body["resetTime"])
}

func TestWriteRejection_DefaultMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRejection(rec, Decision{Limit: 1, ResetTime: testReset, RetryAfter: 1}, "")

	var body RejectionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, DefaultMessage, body.Error)
}

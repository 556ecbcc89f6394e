package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/logger"
)

var answers = assessment.Answers{
	ProjectName:      "Client portal",
	ProjectType:      "webapp",
	MainGoals:        []string{"Reduce support calls"},
	MustHaveFeatures: []string{"user-auth"},
}

func TestSuggest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["prompt"], "Client portal")
		assert.EqualValues(t, 400, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  Start with a clickable prototype.  "}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, logger.NewTestLogger(t))
	text, err := c.Suggest(context.Background(), answers)

	require.NoError(t, err)
	assert.Equal(t, "Start with a clickable prototype.", text)
}

func TestSuggest_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body), "retried request must resend the body")
		_, _ = w.Write([]byte(`{"text": "ok"}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, MaxRetries: 2}, logger.NewNoOpLogger())
	text, err := c.Suggest(context.Background(), answers)

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSuggest_GivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, MaxRetries: 1}, logger.NewNoOpLogger())
	_, err := c.Suggest(context.Background(), answers)

	assert.ErrorIs(t, err, ErrSuggestionFailed)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSuggest_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, logger.NewNoOpLogger())
	_, err := c.Suggest(context.Background(), answers)

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSuggest_EmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": ""}`))
	}))
	defer server.Close()

	text, err := NewClient(Config{BaseURL: server.URL}, logger.NewNoOpLogger()).Suggest(context.Background(), answers)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestBuildPrompt_SkipsEmptyFields(t *testing.T) {
	p := BuildPrompt(assessment.Answers{ProjectName: "Bare", ProjectType: "website"})
	assert.Contains(t, p, "Project: Bare (website)")
	assert.NotContains(t, p, "Goals:")
	assert.NotContains(t, p, "Description:")
}

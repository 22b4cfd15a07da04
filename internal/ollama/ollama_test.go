// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

// recordingTimer fires immediately and remembers each requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *recordingTimer) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestClient(t *testing.T, url string) (*Client, *recordingTimer) {
	t.Helper()
	c := NewClientWithConfig(&ClientConfig{
		BaseURL:    url,
		Timeout:    2 * time.Second,
		RetryDelay: 10 * time.Millisecond,
	})
	timer := &recordingTimer{}
	c.timer = timer
	return c, timer
}

func writeGenerate(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GenerateResponse{Model: "m", Response: text, Done: true})
}

// downURL returns an address that refuses connections.
func downURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// =============================================================================
// CONNECT TESTS
// =============================================================================

func TestConnect_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{
			{Name: "llama3.2:1b", Size: 1 << 30},
			{Name: "mistral:7b"},
		}})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	res := c.Connect(context.Background())

	assert.True(t, res.Success)
	assert.Equal(t, []string{"llama3.2:1b", "mistral:7b"}, res.Models)
	assert.Empty(t, res.Error)
}

func TestConnect_ServerDown(t *testing.T) {
	c, timer := newTestClient(t, downURL(t))

	res := c.Connect(context.Background())

	assert.False(t, res.Success)
	assert.NotNil(t, res.Models)
	assert.Contains(t, res.Error, "service unreachable")
	assert.Len(t, timer.Delays(), 2)
}

func TestConnect_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(OllamaError{Error: "out of memory"})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	res := c.Connect(context.Background())

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "service error")
}

func TestListModels_Cached(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{{Name: "a"}}})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.ListModels(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	c.ClearCache()
	_, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

// =============================================================================
// GENERATE TESTS
// =============================================================================

func TestGenerate_RequestBody(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeGenerate(w, "ok")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	c.SetOptions(Options{Temperature: 0.2, TopP: 0.5, NumPredict: 256})

	out, err := c.Generate(context.Background(), "llama3.1:8b", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "llama3.1:8b", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 0.2, got.Options.Temperature)
	assert.Equal(t, 0.5, got.Options.TopP)
	assert.Equal(t, 256, got.Options.NumPredict)
}

func TestGenerate_RetriesWithBackoff(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeGenerate(w, "third time lucky")
	}))
	defer srv.Close()

	c, timer := newTestClient(t, srv.URL)
	out, err := c.Generate(context.Background(), "m", "p")

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	// Two failures, two delays, each double the last.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, timer.Delays())
}

func TestGenerate_GivesUpAfterThreeAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), "m", "p")

	require.Error(t, err)
	assert.True(t, IsServiceError(err))
	assert.True(t, errors.Is(err, ErrServiceError))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGenerate_ModelNotFoundNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(OllamaError{Error: "model 'nope' not found"})
	}))
	defer srv.Close()

	c, timer := newTestClient(t, srv.URL)
	_, err := c.Generate(context.Background(), "nope", "p")

	require.Error(t, err)
	assert.True(t, IsModelNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Empty(t, timer.Delays())
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{
		BaseURL:    srv.URL,
		Timeout:    30 * time.Millisecond,
		MaxRetries: 1,
	})
	_, err := c.Generate(context.Background(), "m", "p")

	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestGenerate_ResponseCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeGenerate(w, "cached answer")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := c.Generate(ctx, "m", "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", out)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// Different sampling options are a different cache entry.
	c.SetOptions(Options{Temperature: 1.5, TopP: 0.9})
	_, err := c.Generate(ctx, "m", "same prompt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	c.SetCacheEnabled(false)
	_, err = c.Generate(ctx, "m", "same prompt")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestSetCacheSize_EvictsOldest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeGenerate(w, "answer")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	ctx := context.Background()
	for _, p := range []string{"first", "second", "third"} {
		_, err := c.Generate(ctx, "m", p)
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.responses.Len())

	c.SetCacheSize(2)
	assert.Equal(t, 2, c.CacheSize())
	assert.Equal(t, 2, c.responses.Len())

	_, err := c.Generate(ctx, "m", "third")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "recent entries survive the resize")
	_, err = c.Generate(ctx, "m", "first")
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits), "the oldest entry was evicted")

	c.SetCacheSize(0)
	assert.Equal(t, 2, c.CacheSize())
}

// =============================================================================
// STUDY OPERATION TESTS
// =============================================================================

func TestAskQuestion_ServerDownReturnsFallback(t *testing.T) {
	c, _ := newTestClient(t, downURL(t))

	out := c.AskQuestion(context.Background(), "What is ATP?", "", "")

	assert.Contains(t, out, "Check your connection")
	assert.Contains(t, out, "Ollama is running")
}

func TestGenerateSummary_ModelMissingFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	out := c.GenerateSummary(context.Background(), "text", SummaryShort, FormatBullets, "qwen2.5:14b")

	assert.Contains(t, out, "ollama pull qwen2.5:14b")
}

func TestGenerateSummary_PromptShape(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		writeGenerate(w, "- point")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	out := c.GenerateSummary(context.Background(), "Mitochondria make ATP.", SummaryShort, FormatBullets, "")

	assert.Equal(t, "- point", out)
	assert.Contains(t, prompt, "3 to 5 sentences")
	assert.Contains(t, prompt, "bulleted list")
	assert.Contains(t, prompt, "Mitochondria make ATP.")
}

func TestGenerateStudyMaterial_Flashcards(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		writeGenerate(w, "Q: a\nA: b")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	out := c.GenerateStudyMaterial(context.Background(), "content", MaterialFlashcards, "")

	assert.Equal(t, "Q: a\nA: b", out)
	assert.Contains(t, prompt, "flashcards")
}

func TestGenerateTopic_Formats(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		writeGenerate(w, "\n\nEntropy measures disorder.\n\n\n\nIt always increases.\n")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	out := c.GenerateTopic(context.Background(), TopicRequest{
		Topic: "Entropy",
		Type:  TopicDefinition,
		Depth: DepthBrief,
	})

	assert.Equal(t, "📖 Entropy measures disorder.\n\nIt always increases.", out)
	assert.Contains(t, prompt, "2-3 paragraphs")
}

func TestFormatTopic(t *testing.T) {
	tests := []struct {
		typ  TopicType
		want string
	}{
		{TopicDefinition, "📖 text"},
		{TopicExample, "💡 text"},
		{TopicExplanation, "🔍 text"},
		{TopicStudyGuide, "📚 text"},
		{TopicType("other"), "🔍 text"},
	}
	for _, tc := range tests {
		if got := FormatTopic("text", tc.typ); got != tc.want {
			t.Errorf("FormatTopic(%q) = %q, want %q", tc.typ, got, tc.want)
		}
	}
	// Already marked text is left alone.
	assert.Equal(t, "📖 x", FormatTopic("📖 x", TopicDefinition))
}

func TestDepthParagraphs(t *testing.T) {
	assert.Equal(t, "2-3", DepthParagraphs(DepthBrief))
	assert.Equal(t, "3-5", DepthParagraphs(DepthDetailed))
	assert.Equal(t, "4-6", DepthParagraphs(DepthComprehensive))
}

func TestResolveModel(t *testing.T) {
	c := NewClient()
	assert.Equal(t, "llama3.2:3b", c.ResolveModel("", "x"))
	assert.Equal(t, "mistral:7b", c.ResolveModel("mistral:7b", "x"))
	assert.Equal(t, "llama3.2:1b", c.ResolveModel(AutoModel, "short text"))

	c.SetDefaultModel("qwen2.5:14b")
	assert.Equal(t, "qwen2.5:14b", c.ResolveModel("", "x"))
}

func TestSuggestTopics_DoesNotCallServer(t *testing.T) {
	c, _ := newTestClient(t, downURL(t))
	got := c.SuggestTopics("The Krebs Cycle and the Krebs Cycle produce ATP.", nil)
	require.NotEmpty(t, got)
	topics := make([]string, 0, len(got))
	for _, s := range got {
		topics = append(topics, s.Topic)
	}
	assert.Contains(t, strings.Join(topics, ","), "Krebs Cycle")
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError_UserMessage(t *testing.T) {
	tests := []struct {
		err  *ClientError
		want string
	}{
		{&ClientError{Type: ErrTypeNotRunning}, "AI service unavailable: service unreachable"},
		{&ClientError{Type: ErrTypeTimeout}, "AI service unavailable: timeout"},
		{&ClientError{Type: ErrTypeServiceError}, "AI service unavailable: service error"},
		{&ClientError{Type: ErrTypeModelNotFound}, "model not found"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.err.UserMessage())
	}
	assert.True(t, (&ClientError{Type: ErrTypeTimeout}).Unavailable())
	assert.False(t, (&ClientError{Type: ErrTypeModelNotFound}).Unavailable())
}

func TestClientError_Is(t *testing.T) {
	err := &ClientError{Type: ErrTypeNotRunning, Message: "x", Cause: errors.New("refused")}
	assert.True(t, errors.Is(err, ErrNotRunning))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, IsNotRunning(err))
}

func TestModelInfo_FormatSize(t *testing.T) {
	m := ModelInfo{Size: 2 << 30}
	assert.Equal(t, "2.0 GiB", m.FormatSize())
}

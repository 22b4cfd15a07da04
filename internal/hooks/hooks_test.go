// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/analyzer"
	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/storage"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

// fakeClient answers every generation with reply or err. When gate is set
// each call blocks until gate yields.
type fakeClient struct {
	mu           sync.Mutex
	opts         ollama.Options
	defaultModel string
	cacheEnabled bool
	cacheSize    int

	reply string
	err   error
	gate  chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
	prompts   []string
}

func (f *fakeClient) Connect(context.Context) ollama.ConnectResult {
	if f.err != nil {
		return ollama.ConnectResult{Success: false, Models: []string{}, Error: "AI service unavailable: service unreachable"}
	}
	return ollama.ConnectResult{Success: true, Models: []string{"llama3.2:3b"}}
}

func (f *fakeClient) generate(ctx context.Context, input string) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, input)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeClient) Summarize(ctx context.Context, req ollama.SummaryRequest) (string, error) {
	return f.generate(ctx, req.Content)
}

func (f *fakeClient) CreateStudyMaterial(ctx context.Context, req ollama.MaterialRequest) (string, error) {
	return f.generate(ctx, req.Content)
}

func (f *fakeClient) Answer(ctx context.Context, req ollama.QuestionRequest) (string, error) {
	return f.generate(ctx, req.Question)
}

func (f *fakeClient) ExploreTopic(ctx context.Context, req ollama.TopicRequest) (string, error) {
	return f.generate(ctx, req.Topic)
}

func (f *fakeClient) ResolveModel(m, content string) string {
	switch m {
	case ollama.AutoModel:
		return analyzer.Analyze(content).RecommendedModel
	case "":
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.defaultModel
	}
	return m
}

func (f *fakeClient) SetOptions(o ollama.Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = o
}

func (f *fakeClient) SetDefaultModel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultModel = name
}

func (f *fakeClient) SetCacheEnabled(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheEnabled = on
}

func (f *fakeClient) SetCacheSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheSize = n
}

func (f *fakeClient) options() ollama.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

func newHooks(t *testing.T, client ModelClient) *Hooks {
	t.Helper()
	st := store.New(storage.NewService(storage.NewMemoryBackend(), storage.Options{}))
	h := New(client, st, nil)
	t.Cleanup(h.Close)
	return h
}

func downURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func realClient(url string) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:    url,
		Timeout:    2 * time.Second,
		RetryDelay: time.Millisecond,
	})
}

// =============================================================================
// GENERATION
// =============================================================================

func TestAskQuestion_ServiceUnreachable(t *testing.T) {
	h := newHooks(t, realClient(downURL(t)))

	text, err := h.AskQuestion(context.Background(), "What is a derivative?", "", "")
	require.Error(t, err)
	assert.True(t, ollama.IsNotRunning(err))
	assert.Contains(t, text, "Check your connection")

	log := h.Store().Activity(0)
	require.Len(t, log, 1)
	assert.False(t, log[0].Success)
	assert.Equal(t, model.ActivityQuestion, log[0].Type)
	assert.Equal(t, "AI service unavailable: service unreachable", log[0].Error)

	state := h.Store().State()
	assert.False(t, state.UI.Connection.Connected)
	assert.Equal(t, "AI service unavailable: service unreachable", state.UI.Connection.Error)
	assert.Equal(t, 1, state.Activity.FailedRequests)

	notes := h.Store().ActiveNotifications()
	require.Len(t, notes, 1)
	assert.Equal(t, store.NotifyError, notes[0].Type)
}

func TestGenerateSummary_Success(t *testing.T) {
	var got ollama.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "Motion has three laws.", Done: true})
	}))
	defer srv.Close()

	h := newHooks(t, realClient(srv.URL))
	text, err := h.GenerateSummary(context.Background(), "Newton's laws describe motion.", ollama.SummaryShort, ollama.FormatBullets, ollama.AutoModel)
	require.NoError(t, err)
	assert.Equal(t, "Motion has three laws.", text)
	assert.Equal(t, "llama3.2:1b", got.Model)
	require.NotNil(t, got.Options)
	assert.Equal(t, config.DefaultSettings().AI.Temperature, got.Options.Temperature)

	log := h.Store().Activity(0)
	require.Len(t, log, 1)
	assert.True(t, log[0].Success)
	assert.Equal(t, "llama3.2:1b", log[0].Model)
	assert.Equal(t, len("Newton's laws describe motion."), log[0].ContentLength)
	assert.True(t, h.Store().State().UI.Connection.Connected)
}

func TestGenerate_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'qwen2.5:14b' not found"}`))
	}))
	defer srv.Close()

	h := newHooks(t, realClient(srv.URL))
	h.Store().SetConnection(true, nil, "")

	text, err := h.GenerateTopic(context.Background(), ollama.TopicRequest{Topic: "entropy", Model: "qwen2.5:14b"})
	require.Error(t, err)
	assert.Contains(t, text, "ollama pull qwen2.5:14b")
	assert.True(t, h.Store().State().UI.Connection.Connected, "a missing model is not a connectivity failure")
	assert.Equal(t, "model not found", h.Store().Activity(1)[0].Error)
}

func TestSettingsFlowIntoClient(t *testing.T) {
	fc := &fakeClient{reply: "ok"}
	h := newHooks(t, fc)
	assert.Equal(t, config.DefaultSettings().AI.Model, fc.ResolveModel("", ""))

	require.NoError(t, h.Store().UpdateSettings(context.Background(), func(s *config.Settings) {
		s.SetTemperature(5)
		s.SetMaxTokens(512)
		s.SetModel("mistral:7b")
	}))
	opts := fc.options()
	assert.Equal(t, 2.0, opts.Temperature)
	assert.Equal(t, 512, opts.NumPredict)
	assert.Equal(t, "mistral:7b", fc.ResolveModel("", ""))
}

func TestSettingsResizeResponseCache(t *testing.T) {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: downURL(t)})
	h := newHooks(t, client)
	assert.Equal(t, config.DefaultSettings().Performance.CacheSize, client.CacheSize())

	require.NoError(t, h.Store().UpdateSettings(context.Background(), func(s *config.Settings) {
		s.SetCacheSize(25)
	}))
	assert.Equal(t, 25, client.CacheSize())

	require.NoError(t, h.Store().UpdateSettings(context.Background(), func(s *config.Settings) {
		s.SetCacheSize(5000)
	}))
	assert.Equal(t, 1000, client.CacheSize(), "the setting is clamped before it reaches the client")
}

func TestConcurrencyLimit(t *testing.T) {
	fc := &fakeClient{reply: "ok", gate: make(chan struct{})}
	h := newHooks(t, fc)
	require.NoError(t, h.Store().UpdateSettings(context.Background(), func(s *config.Settings) {
		s.SetConcurrencyLimit(2)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.AskQuestion(context.Background(), "q", "", "m")
		}()
	}
	// Let the calls pile up, then release them one by one.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 6; i++ {
		fc.gate <- struct{}{}
	}
	wg.Wait()

	assert.LessOrEqual(t, fc.maxActive.Load(), int32(2))
	assert.Equal(t, 6, h.Store().State().Activity.SuccessfulRequests)
}

func TestCancelledWhileWaitingIsRecorded(t *testing.T) {
	fc := &fakeClient{reply: "ok", gate: make(chan struct{})}
	h := newHooks(t, fc)
	require.NoError(t, h.Store().UpdateSettings(context.Background(), func(s *config.Settings) {
		s.SetConcurrencyLimit(1)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.AskQuestion(context.Background(), "holder", "", "m")
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.AskQuestion(ctx, "waiter", "", "m")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	fc.gate <- struct{}{}
	<-done
	stats := h.Store().State().Activity
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.FailedRequests)
}

func TestConnect(t *testing.T) {
	h := newHooks(t, &fakeClient{})
	res := h.Connect(context.Background())
	assert.True(t, res.Success)
	conn := h.Store().State().UI.Connection
	assert.True(t, conn.Connected)
	assert.Equal(t, []string{"llama3.2:3b"}, conn.Models)

	h2 := newHooks(t, &fakeClient{err: errors.New("down")})
	res = h2.Connect(context.Background())
	assert.False(t, res.Success)
	assert.False(t, h2.Store().State().UI.Connection.Connected)
}

func TestSuggestTopicsRecordsNoActivity(t *testing.T) {
	h := newHooks(t, &fakeClient{})
	got := h.SuggestTopics("The Krebs Cycle produces ATP. The Krebs Cycle runs in mitochondria. ATP stores energy.")
	assert.NotEmpty(t, got)
	assert.Empty(t, h.Store().Activity(0))
	assert.Equal(t, 14, h.Analyze("The Krebs Cycle produces ATP. The Krebs Cycle runs in mitochondria. ATP stores energy.").WordCount)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestImportDocument(t *testing.T) {
	h := newHooks(t, &fakeClient{})
	ctx := context.Background()

	rec, err := h.ImportDocument(ctx, "/tmp/physics/notes.txt", strings.NewReader("Newton's laws describe motion. Force equals mass times acceleration: F = m * a"), "c1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", rec.Name)
	assert.Equal(t, model.FileTypeTXT, rec.Type)
	assert.Equal(t, "c1", rec.CourseID)
	require.NotNil(t, rec.Metadata)
	assert.NotEmpty(t, rec.Metadata.Formulas)

	files := h.Store().State().Files.Items
	require.Len(t, files, 1)
	assert.Equal(t, rec.ID, files[0].ID)

	_, err = h.ImportDocument(ctx, "virus.exe", strings.NewReader("MZ"), "c1")
	assert.True(t, errors.Is(err, ErrExtensionNotAllowed))
}

func TestSummarizeFile(t *testing.T) {
	fc := &fakeClient{reply: "Short summary."}
	h := newHooks(t, fc)
	ctx := context.Background()
	rec, err := h.ImportDocument(ctx, "notes.txt", strings.NewReader("Cells divide by mitosis."), "c1")
	require.NoError(t, err)

	updated, err := h.SummarizeFile(ctx, rec.ID, ollama.SummaryShort, ollama.FormatParagraph)
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", updated.Summary)
	require.NotNil(t, updated.LastProcessed)

	stored, err := h.File(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", stored.Summary)

	_, err = h.SummarizeFile(ctx, "missing", ollama.SummaryShort, ollama.FormatParagraph)
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestSummarizeFile_FailureLeavesFileUntouched(t *testing.T) {
	fc := &fakeClient{err: &ollama.ClientError{Type: ollama.ErrTypeTimeout, Message: "request timed out"}}
	h := newHooks(t, fc)
	ctx := context.Background()
	rec, err := h.ImportDocument(ctx, "notes.txt", strings.NewReader("Cells divide by mitosis."), "c1")
	require.NoError(t, err)

	_, err = h.SummarizeFile(ctx, rec.ID, ollama.SummaryShort, ollama.FormatParagraph)
	require.Error(t, err)
	stored, _ := h.File(rec.ID)
	assert.Empty(t, stored.Summary)
	assert.Nil(t, stored.LastProcessed)
}

func TestCreateStudyMaterialFromFile(t *testing.T) {
	fc := &fakeClient{reply: "Q: What is mitosis?\nA: Cell division."}
	h := newHooks(t, fc)
	ctx := context.Background()
	rec, err := h.ImportDocument(ctx, "biology.txt", strings.NewReader("Cells divide by mitosis."), "c7")
	require.NoError(t, err)

	m, err := h.CreateStudyMaterialFromFile(ctx, rec.ID, ollama.MaterialFlashcards)
	require.NoError(t, err)
	assert.Equal(t, "Flashcards: biology", m.Title)
	assert.Equal(t, model.MaterialFlashcards, m.Type)
	assert.Equal(t, "c7", m.CourseID)
	assert.Equal(t, rec.ID, m.FileID)
	assert.Len(t, h.Store().State().Materials.Items, 1)
}

func TestWatchInbox(t *testing.T) {
	h := newHooks(t, &fakeClient{})
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := h.WatchInbox(ctx, dir, "c1", 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.png"), []byte("\x89PNG"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lecture.txt"), []byte("Entropy always increases."), 0600))

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, "lecture.txt", res.File.Name)
		assert.Equal(t, "c1", res.File.CourseID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbox import")
	}

	cancel()
	for range results {
	}
	assert.Len(t, h.Store().State().Files.Items, 1)
}

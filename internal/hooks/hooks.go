// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hooks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/analyzer"
	"github.com/des-work/Arcano-Desk-sub001/internal/config"
	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/ollama"
	"github.com/des-work/Arcano-Desk-sub001/internal/store"
	"github.com/des-work/Arcano-Desk-sub001/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ModelClient is the part of the model client the hooks use.
type ModelClient interface {
	Connect(ctx context.Context) ollama.ConnectResult
	Summarize(ctx context.Context, req ollama.SummaryRequest) (string, error)
	CreateStudyMaterial(ctx context.Context, req ollama.MaterialRequest) (string, error)
	Answer(ctx context.Context, req ollama.QuestionRequest) (string, error)
	ExploreTopic(ctx context.Context, req ollama.TopicRequest) (string, error)
	ResolveModel(model, content string) string
	SetOptions(opts ollama.Options)
	SetDefaultModel(name string)
	SetCacheEnabled(enabled bool)
	SetCacheSize(n int)
}

// FailureNoticeDuration is how long failure notifications stay visible.
const FailureNoticeDuration = 8 * time.Second

// Hooks runs model operations against a store.
type Hooks struct {
	client ModelClient
	store  *store.Store
	logger *zap.Logger
	tracer trace.Tracer

	mu    sync.Mutex
	sem   *semaphore.Weighted
	limit int

	unsubscribe func()
}

// New wires client to st and applies the store's current settings. The
// hooks keep following settings changes until Close.
func New(client ModelClient, st *store.Store, logger *zap.Logger) *Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hooks{
		client: client,
		store:  st,
		logger: logger,
		tracer: telemetry.Tracer(),
	}
	h.applySettings(st.State().Settings)
	h.unsubscribe = st.Subscribe(func(s store.State) { h.applySettings(s.Settings) })
	return h
}

// Close stops following settings changes.
func (h *Hooks) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// Store returns the store the hooks write to.
func (h *Hooks) Store() *store.Store { return h.store }

func (h *Hooks) applySettings(s config.Settings) {
	h.client.SetOptions(ollama.Options{
		Temperature: s.AI.Temperature,
		TopP:        s.AI.TopP,
		NumPredict:  s.AI.MaxTokens,
	})
	h.client.SetDefaultModel(s.AI.Model)
	h.client.SetCacheEnabled(s.Performance.CacheEnabled)
	h.client.SetCacheSize(s.Performance.CacheSize)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sem == nil || h.limit != s.Performance.ConcurrencyLimit {
		limit := s.Performance.ConcurrencyLimit
		if limit < 1 {
			limit = 1
		}
		// Calls already holding a slot release it on the old semaphore.
		h.sem = semaphore.NewWeighted(int64(limit))
		h.limit = s.Performance.ConcurrencyLimit
	}
}

func (h *Hooks) slots() *semaphore.Weighted {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sem
}

// =============================================================================
// CONNECTIVITY
// =============================================================================

// Connect checks the model service and records the result in the store.
func (h *Hooks) Connect(ctx context.Context) ollama.ConnectResult {
	ctx, span := h.tracer.Start(ctx, "model.connect")
	defer span.End()

	res := h.client.Connect(ctx)
	h.store.SetConnection(res.Success, res.Models, res.Error)
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	span.SetAttributes(attribute.Int("models", len(res.Models)))
	return res
}

// =============================================================================
// TRACKED GENERATION
// =============================================================================

type call struct {
	kind       model.ActivityType
	model      string
	contentLen int
	run        func(ctx context.Context) (string, error)
}

// track runs c with tracing, concurrency limiting and activity recording.
// On failure it returns the fallback text and the error.
func (h *Hooks) track(ctx context.Context, c call) (string, error) {
	ctx, span := h.tracer.Start(ctx, "generate."+string(c.kind), trace.WithAttributes(
		attribute.String("model", c.model),
		attribute.Int("content.length", c.contentLen),
	))
	defer span.End()

	start := time.Now()
	out, err := h.limited(ctx, c.run)
	elapsed := time.Since(start)

	rec := model.ModelActivityRecord{
		Type:          c.kind,
		Model:         c.model,
		ContentLength: c.contentLen,
		Success:       err == nil,
		ResponseTime:  elapsed,
	}
	if err != nil {
		rec.Error = UserMessage(err)
	}
	h.store.RecordActivity(rec)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, rec.Error)
		h.logger.Warn("GENERATION_FAILED",
			zap.String("type", string(c.kind)),
			zap.String("model", c.model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		h.reportFailure(err)
		return ollama.Fallback(err, c.model), err
	}

	h.logger.Debug("GENERATION_OK",
		zap.String("type", string(c.kind)),
		zap.String("model", c.model),
		zap.Duration("elapsed", elapsed))
	if !h.store.State().UI.Connection.Connected {
		conn := h.store.State().UI.Connection
		h.store.SetConnection(true, conn.Models, "")
	}
	return out, nil
}

func (h *Hooks) limited(ctx context.Context, run func(context.Context) (string, error)) (string, error) {
	sem := h.slots()
	if err := sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer sem.Release(1)
	return run(ctx)
}

func (h *Hooks) reportFailure(err error) {
	var ce *ollama.ClientError
	if errors.As(err, &ce) && ce.Unavailable() {
		h.store.SetConnection(false, nil, ce.UserMessage())
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	h.store.Notify(store.NotifyError, UserMessage(err), FailureNoticeDuration)
}

// UserMessage is the text users see for err; the full error goes to logs.
func UserMessage(err error) string {
	var ce *ollama.ClientError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "AI service unavailable: timeout"
	}
	return err.Error()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// GenerateSummary summarizes content. On failure the returned text is the
// fallback message.
func (h *Hooks) GenerateSummary(ctx context.Context, content string, length ollama.SummaryLength, format ollama.SummaryFormat, modelName string) (string, error) {
	resolved := h.client.ResolveModel(modelName, content)
	return h.track(ctx, call{
		kind:       model.ActivitySummary,
		model:      resolved,
		contentLen: len(content),
		run: func(ctx context.Context) (string, error) {
			return h.client.Summarize(ctx, ollama.SummaryRequest{Content: content, Length: length, Format: format, Model: resolved})
		},
	})
}

// GenerateStudyMaterial generates flashcards, questions or notes.
func (h *Hooks) GenerateStudyMaterial(ctx context.Context, content string, kind ollama.MaterialKind, modelName string) (string, error) {
	resolved := h.client.ResolveModel(modelName, content)
	return h.track(ctx, call{
		kind:       model.ActivityStudyMaterial,
		model:      resolved,
		contentLen: len(content),
		run: func(ctx context.Context) (string, error) {
			return h.client.CreateStudyMaterial(ctx, ollama.MaterialRequest{Content: content, Type: kind, Model: resolved})
		},
	})
}

// AskQuestion answers question using material as context.
func (h *Hooks) AskQuestion(ctx context.Context, question, material, modelName string) (string, error) {
	resolved := h.client.ResolveModel(modelName, material+" "+question)
	return h.track(ctx, call{
		kind:       model.ActivityQuestion,
		model:      resolved,
		contentLen: len(material) + len(question),
		run: func(ctx context.Context) (string, error) {
			return h.client.Answer(ctx, ollama.QuestionRequest{Question: question, Context: material, Model: resolved})
		},
	})
}

// GenerateTopic explains a topic.
func (h *Hooks) GenerateTopic(ctx context.Context, req ollama.TopicRequest) (string, error) {
	req.Model = h.client.ResolveModel(req.Model, req.Context+" "+req.Topic)
	return h.track(ctx, call{
		kind:       model.ActivityTopic,
		model:      req.Model,
		contentLen: len(req.Context) + len(req.Topic),
		run: func(ctx context.Context) (string, error) {
			return h.client.ExploreTopic(ctx, req)
		},
	})
}

// Analyze runs the content analyzer. It does not call the model.
func (h *Hooks) Analyze(content string) analyzer.ContentAnalysis {
	return analyzer.Analyze(content)
}

// SuggestTopics proposes topics found in content. It does not call the
// model and records no activity.
func (h *Hooks) SuggestTopics(content string) []analyzer.TopicSuggestion {
	a := analyzer.Analyze(content)
	return analyzer.SuggestTopics(content, &a)
}

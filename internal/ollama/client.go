// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches any ClientError of the same Type, so errors.Is works against
// the sentinels below.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Unavailable reports whether the error means the service could not serve
// the request at all.
func (e *ClientError) Unavailable() bool {
	switch e.Type {
	case ErrTypeNotRunning, ErrTypeConnection, ErrTypeTimeout, ErrTypeServiceError, ErrTypeInvalidResponse:
		return true
	}
	return false
}

// UserMessage is the short, non-technical description shown to users.
func (e *ClientError) UserMessage() string {
	switch e.Type {
	case ErrTypeModelNotFound:
		return "model not found"
	case ErrTypeNotRunning, ErrTypeConnection:
		return "AI service unavailable: service unreachable"
	case ErrTypeTimeout:
		return "AI service unavailable: timeout"
	case ErrTypeServiceError:
		return "AI service unavailable: service error"
	default:
		return "AI service unavailable"
	}
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeServiceError
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotRunning:
		return "not_running"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeServiceError:
		return "service_error"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrServiceError  = &ClientError{Type: ErrTypeServiceError, Message: "Ollama service error"}
)

// IsNotRunning reports whether err means the service was unreachable.
func IsNotRunning(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && (ce.Type == ErrTypeNotRunning || ce.Type == ErrTypeConnection)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeTimeout
}

// IsModelNotFound reports whether err means the requested model is missing.
func IsModelNotFound(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeModelNotFound
}

// IsServiceError reports whether the service answered with a 5xx status.
func IsServiceError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeServiceError
}

// classifyTransportError maps an http.Client error to a ClientError.
func classifyTransportError(err error) *ClientError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "cannot reach Ollama", Cause: err}
}

// classifyStatus maps a non-200 response to a ClientError.
func classifyStatus(resp *http.Response, what string) *ClientError {
	var ollamaErr OllamaError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := resp.Status
	if json.Unmarshal(body, &ollamaErr) == nil && ollamaErr.Error != "" {
		detail = ollamaErr.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + detail}
	case resp.StatusCode >= 500:
		return &ClientError{Type: ErrTypeServiceError, Message: what + " failed: " + detail}
	default:
		return &ClientError{Type: ErrTypeInvalidResponse, Message: what + " failed: " + detail}
	}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Timeout for each HTTP request (default: 30s)
	Timeout time.Duration

	// DefaultModel is used when a request names no model
	DefaultModel string

	// MaxRetries is the total attempt cap for a call (default: 3)
	MaxRetries int

	// RetryDelay is the first backoff delay; each later delay doubles (default: 1s)
	RetryDelay time.Duration

	// CacheSize is the response cache capacity; negative disables caching
	CacheSize int

	// CacheTTL is the lifetime of cached responses and model lists (default: 5m)
	CacheTTL time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "http://127.0.0.1:11434",
		Timeout:      30 * time.Second,
		DefaultModel: "llama3.2:3b",
		MaxRetries:   3,
		RetryDelay:   1 * time.Second,
		CacheSize:    100,
		CacheTTL:     5 * time.Minute,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a local Ollama server. Generation calls are retried with
// exponential backoff and their responses cached by prompt.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *zap.Logger

	responses *expirable.LRU[string, string]
	models    *expirable.LRU[string, []ModelInfo]

	mu           sync.RWMutex
	options      Options
	defaultModel string
	cacheEnabled bool
	cacheSize    int

	// timer is swapped in tests to observe backoff delays.
	timer retry.Timer
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	d := DefaultConfig()

	if config.BaseURL == "" {
		config.BaseURL = d.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = d.Timeout
	}
	if config.DefaultModel == "" {
		config.DefaultModel = d.DefaultModel
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = d.MaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = d.RetryDelay
	}
	if config.CacheSize == 0 {
		config.CacheSize = d.CacheSize
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = d.CacheTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		logger:       logger.Named("ollama"),
		models:       expirable.NewLRU[string, []ModelInfo](1, nil, config.CacheTTL),
		options:      Options{Temperature: 0.7, TopP: 0.9, NumPredict: 2048},
		defaultModel: config.DefaultModel,
		cacheEnabled: config.CacheSize > 0,
	}
	size := config.CacheSize
	if size < 1 {
		size = 1
	}
	c.cacheSize = size
	c.responses = expirable.NewLRU[string, string](size, nil, config.CacheTTL)
	return c
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetOptions replaces the sampling parameters used for generation.
func (c *Client) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = opts
}

// SetDefaultModel changes the model used when a request names none.
func (c *Client) SetDefaultModel(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultModel = name
}

// SetCacheEnabled toggles the response cache. Disabling it also purges it.
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled && c.config.CacheSize > 0
	c.mu.Unlock()
	if !enabled {
		c.responses.Purge()
	}
}

// SetCacheSize changes the response cache capacity, evicting the oldest
// entries when it shrinks. Sizes below one are ignored.
func (c *Client) SetCacheSize(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	if n == c.cacheSize {
		c.mu.Unlock()
		return
	}
	c.cacheSize = n
	c.mu.Unlock()
	if evicted := c.responses.Resize(n); evicted > 0 {
		c.logger.Debug("CACHE_RESIZED", zap.Int("size", n), zap.Int("evicted", evicted))
	}
}

// CacheSize returns the response cache capacity.
func (c *Client) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheSize
}

// ClearCache drops all cached responses and model lists.
func (c *Client) ClearCache() {
	c.responses.Purge()
	c.models.Purge()
}

func (c *Client) currentOptions() (Options, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options, c.defaultModel, c.cacheEnabled
}

// =============================================================================
// RETRY
// =============================================================================

// withRetry runs fn up to MaxRetries times with doubling delays. A missing
// model is permanent and returned immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(c.config.MaxRetries)),
		retry.Delay(c.config.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !IsModelNotFound(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("RETRY",
				zap.String("op", op),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}
	return retry.Do(fn, opts...)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

const modelsCacheKey = "models"

// ListModels retrieves installed models. Results are cached for CacheTTL.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if cached, ok := c.models.Get(modelsCacheKey); ok {
		return cached, nil
	}

	var models []ModelInfo
	err := c.withRetry(ctx, "list_models", func() error {
		var err error
		models, err = c.listModelsOnce(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.models.Add(modelsCacheKey, models)
	return models, nil
}

func (c *Client) listModelsOnce(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "list models")
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return result.Models, nil
}

// Connect checks connectivity and lists installed models. It never fails:
// problems are reported in the result.
func (c *Client) Connect(ctx context.Context) ConnectResult {
	models, err := c.ListModels(ctx)
	if err != nil {
		msg := err.Error()
		var ce *ClientError
		if errors.As(err, &ce) {
			msg = ce.UserMessage()
		}
		c.logger.Warn("CONNECT_FAILED", zap.String("url", c.config.BaseURL), zap.Error(err))
		return ConnectResult{Success: false, Models: []string{}, Error: msg}
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	c.logger.Debug("CONNECTED", zap.Int("models", len(names)))
	return ConnectResult{Success: true, Models: names}
}

// CheckRunning verifies that Ollama answers at all, without retries.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, "health check")
	}
	return nil
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate sends a non-streaming completion request. Identical requests
// within CacheTTL are served from the cache.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	opts, defaultModel, cacheOn := c.currentOptions()
	if model == "" {
		model = defaultModel
	}

	key := cacheKey(model, opts, prompt)
	if cacheOn {
		if cached, ok := c.responses.Get(key); ok {
			c.logger.Debug("CACHE_HIT", zap.String("model", model))
			return cached, nil
		}
	}

	body, err := json.Marshal(GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: &opts,
	})
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	start := time.Now()
	var result GenerateResponse
	err = c.withRetry(ctx, "generate", func() error {
		r, err := c.generateOnce(ctx, body)
		if err != nil {
			return err
		}
		result = *r
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("GENERATE_COMPLETE",
		zap.String("model", model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("eval_count", result.EvalCount),
		zap.Duration("elapsed", time.Since(start)))

	if cacheOn {
		c.responses.Add(key, result.Response)
	}
	return result.Response, nil
}

func (c *Client) generateOnce(ctx context.Context, body []byte) (*GenerateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "generate")
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

func cacheKey(model string, opts Options, prompt string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.3f|%.3f|%d|", model, opts.Temperature, opts.TopP, opts.NumPredict)
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

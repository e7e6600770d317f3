// internal/expert/client.go
// Package expert wraps the OpenRouter-compatible chat completions backend
// behind the Caller interface consumed by the clerk, the council and the
// chairman.
package expert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/logger"
)

var (
	ErrExpertTimeout = errors.New("EXPERT_TIMEOUT")
	ErrExpertBackend = errors.New("EXPERT_CALL_FAILED")
)

// Request describes one model invocation.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	WebSearch    bool
}

// Fragment is one incremental piece of a streamed completion. A non-nil
// Err terminates the stream; no further fragments follow it.
type Fragment struct {
	Text string
	Err  error
}

// Caller is the language-model invocation contract.
type Caller interface {
	Call(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (<-chan Fragment, error)
}

// Embedder produces query vectors for the retrieval backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client is the production Caller. A semaphore bounds concurrent upstream
// calls and a short stagger keeps bursts under per-second rate limits.
type Client struct {
	api     *openai.Client
	cfg     config.LLMConfig
	sem     chan struct{}
	stagger time.Duration
	logger  logger.Logger
}

func NewClient(cfg config.LLMConfig, log logger.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	if cfg.APIKey == "" {
		log.Warn("no LLM API key configured, expert calls will fail", nil)
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		sem:     make(chan struct{}, maxConcurrent),
		stagger: time.Duration(cfg.StaggerMillis) * time.Millisecond,
		logger:  log.With(map[string]interface{}{"component": "expert"}),
	}
}

// Call performs one blocking chat completion.
func (c *Client) Call(ctx context.Context, req Request) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", classifyError(ctx, err)
	}
	defer c.release()

	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", classifyError(ctx, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion from %s", ErrExpertBackend, req.Model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion and returns a channel of fragments.
// The channel is closed when the upstream stream ends, errors, or the
// context is cancelled.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan Fragment, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, classifyError(ctx, err)
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		c.release()
		return nil, classifyError(ctx, err)
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer c.release()
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				if !errors.Is(err, io.EOF) {
					select {
					case out <- Fragment{Err: classifyError(ctx, err)}:
					case <-ctx.Done():
					}
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- Fragment{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Embed produces a query embedding for vector search.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrExpertBackend)
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	// OpenRouter convention: the :online suffix enables the provider-side
	// web search plugin for this call.
	if req.WebSearch && !strings.HasSuffix(model, ":online") {
		model += ":online"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.stagger > 0 {
		select {
		case <-time.After(c.stagger):
		case <-ctx.Done():
			<-c.sem
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) release() {
	<-c.sem
}

// classifyError maps transport errors onto the package sentinels so that
// callers can distinguish timeouts from backend failures with errors.Is.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExpertTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", ErrExpertBackend, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrExpertBackend, err)
}

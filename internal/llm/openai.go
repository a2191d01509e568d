package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/sozercan/northwind-agent/internal/config"
)

// DefaultTimeout bounds one completion attempt when the config leaves it unset.
const DefaultTimeout = 60 * time.Second

const systemPersona = "You are a careful retail analytics assistant answering questions about the Northwind shop."

// OpenAI talks to any OpenAI-compatible chat completions endpoint. Ollama
// exposes one under /v1, which is the default deployment.
type OpenAI struct {
	client  *openai.Client
	cfg     *config.LLMConfig
	limiter *rate.Limiter
	timeout time.Duration
	backoff func() retry.Backoff
}

func NewOpenAI(cfg *config.LLMConfig) (*OpenAI, error) {
	if cfg == nil {
		return nil, errors.New("llm config cannot be nil")
	}

	var client *openai.Client

	switch cfg.Provider {
	case "azure":
		client = openai.NewClient(
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		)
	default: // "openai", "ollama"
		apiKey := cfg.APIKey
		if apiKey == "" {
			// ollama ignores the key but the header must be present
			apiKey = "ollama"
		}
		client = openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")+"/"),
			option.WithMaxRetries(0),
		)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	attempts := uint64(max(cfg.RetryAttempts, 0)) // #nosec G115 -- non-negative
	return &OpenAI{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		backoff: func() retry.Backoff {
			b := retry.NewExponential(500 * time.Millisecond)
			b = retry.WithCappedDuration(5*time.Second, b)
			return retry.WithMaxRetries(attempts, retry.WithJitter(100*time.Millisecond, b))
		},
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error) {
	// Apply options
	options := &Options{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(systemMessages)+len(userMessages)+1)
	messages = append(messages, openai.SystemMessage(systemPersona))
	for _, m := range systemMessages {
		messages = append(messages, openai.SystemMessage(m))
	}
	for _, m := range userMessages {
		messages = append(messages, openai.UserMessage(m))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.F(options.Model),
		Messages:    openai.F(messages),
		Temperature: openai.F(options.Temperature),
		MaxTokens:   openai.F(options.MaxTokens),
	}
	if len(options.Tools) > 0 {
		params.Tools = openai.F(options.Tools)
	}

	var resp *openai.ChatCompletion
	attempt := 0
	err := retry.Do(ctx, o.backoff(), func(ctx context.Context) error {
		attempt++
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		var callErr error
		resp, callErr = o.client.Chat.Completions.New(attemptCtx, params)
		if callErr != nil {
			if isRetryable(ctx, callErr) {
				slog.Warn("Transient LLM failure, retrying", "attempt", attempt, "error", callErr)
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed after %d attempt(s): %w", attempt, err)
	}

	// Process the response
	response := &Response{
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	// Check for function calls in the response
	if len(resp.Choices) > 0 && len(resp.Choices[0].Message.ToolCalls) > 0 {
		toolCall := resp.Choices[0].Message.ToolCalls[0]
		response.FunctionCall = &FunctionResponse{
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		}
	} else if len(resp.Choices) > 0 {
		response.Content = resp.Choices[0].Message.Content
	}

	slog.Debug("LLM call completed", "model", options.Model, "tokens", response.Usage.TotalTokens)
	return response, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	// the attempt's own deadline expired while the caller is still waiting
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
			return true
		}
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

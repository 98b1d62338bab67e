package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/chronicle/internal/platform/otel"
	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxPromptRunes bounds the user prompt when Config.MaxPromptRunes
	// is not positive.
	DefaultMaxPromptRunes = 6000
)

// ErrEmptyReply indicates the model answered without content.
var ErrEmptyReply = errors.New("model reply is empty")

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for compatible gateways.
	BaseURL        string
	Model          string
	MaxPromptRunes int
	HTTPClient     *http.Client
	// Now stamps history relevance; defaults to time.Now.
	Now func() time.Time
	// Logf reports dropped model output; defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Client generates decisions and narrative responses.
type Client struct {
	api            openai.Client
	model          string
	maxPromptRunes int
	tracer         trace.Tracer
	now            func() time.Time
	logf           func(format string, args ...any)
}

var (
	_ trigger.Generator = (*Client)(nil)
	_ app.Narrator      = (*Client)(nil)
)

// New builds a client. Retries are left to the caller's fallback path.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxPromptRunes := cfg.MaxPromptRunes
	if maxPromptRunes <= 0 {
		maxPromptRunes = DefaultMaxPromptRunes
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Client{
		api:            openai.NewClient(opts...),
		model:          model,
		maxPromptRunes: maxPromptRunes,
		tracer:         otel.Tracer("story/generation"),
		now:            now,
		logf:           logf,
	}, nil
}

// GenerateDecision asks the model for a decision fitting the session.
func (c *Client) GenerateDecision(ctx context.Context, req trigger.Request) (*decision.Decision, error) {
	ctx, span := c.tracer.Start(ctx, "generation.GenerateDecision", trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Bool("story.force", req.Force),
	))
	defer span.End()

	content, err := c.complete(ctx, decisionSystemPrompt, buildDecisionPrompt(req, c.now(), c.maxPromptRunes))
	if err != nil {
		return nil, spanError(span, fmt.Errorf("generate decision: %w", err))
	}
	d, dropped, err := parseDecisionReply(content)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("parse decision reply: %w", err))
	}
	for _, cause := range dropped {
		c.logf("dropped generated impact: %v", cause)
	}
	if req.Session.Location != nil {
		location := *req.Session.Location
		d.Location = &location
	}
	if len(d.Characters) == 0 && len(req.Session.Characters) > 0 {
		d.Characters = append([]string(nil), req.Session.Characters...)
	}
	span.SetAttributes(attribute.Int("story.options", len(d.Options)))
	return &d, nil
}

// RespondToChoice asks the model to continue the story after a choice.
func (c *Client) RespondToChoice(ctx context.Context, req app.NarrativeRequest) (app.NarrativeResponse, error) {
	ctx, span := c.tracer.Start(ctx, "generation.RespondToChoice", trace.WithAttributes(
		attribute.String("llm.model", c.model),
	))
	defer span.End()

	content, err := c.complete(ctx, narrativeSystemPrompt, buildNarrativePrompt(req, c.maxPromptRunes))
	if err != nil {
		return app.NarrativeResponse{}, spanError(span, fmt.Errorf("respond to choice: %w", err))
	}
	response, err := parseNarrativeReply(content)
	if err != nil {
		return app.NarrativeResponse{}, spanError(span, fmt.Errorf("parse narrative reply: %w", err))
	}
	return response, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

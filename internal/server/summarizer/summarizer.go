// Package summarizer turns a conversation transcript into a short summary
// using an OpenAI-compatible chat completion API.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/logging"
	"github.com/sashabaranov/go-openai"
)

const (
	systemPrompt = "You are a helpful assistant that summarizes tax-related conversations. " +
		"Create a concise summary highlighting the key points, tax-related questions, and any important advice given. " +
		"Focus on actionable insights and tax implications."
	userPrefix = "Please summarize this tax-related conversation:\n\n"

	// EmptyCompletion is returned when the model answers with no text.
	EmptyCompletion = "No summary generated"
)

// Summarizer is the text to text collaborator used by the /summarize route.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

type OpenAISummarizer struct {
	client *openai.Client
	config Config
}

func NewOpenAISummarizer(config Config) *OpenAISummarizer {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 500
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &OpenAISummarizer{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Summarize calls the chat completion API under the configured timeout.
// Failures wrap common.ErrUpstream, or common.ErrTimeout on deadline.
func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrefix + transcript},
		},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: summarizer: %v", common.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: summarizer: %v", common.ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return EmptyCompletion, nil
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return EmptyCompletion, nil
	}
	return summary, nil
}

// Outcome labels for SummarizeOrFallback.
const (
	OutcomeOK         = "ok"
	OutcomeEmpty      = "empty"
	OutcomeFallback   = "fallback"
	OutcomeNoProvider = "unconfigured"
)

// SummarizeOrFallback never fails: an empty transcript yields
// common.SummaryNoTranscript and any upstream error yields
// common.SummaryFailed. The outcome label says which path was taken.
func SummarizeOrFallback(ctx context.Context, s Summarizer, transcript string, log logging.Logger) (string, string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return common.SummaryNoTranscript, OutcomeEmpty
	}
	if s == nil {
		return common.SummaryFailed, OutcomeNoProvider
	}

	summary, err := s.Summarize(ctx, transcript)
	if err != nil {
		log.Error(ctx, "summarizer failed, using fallback", "error", err)
		return common.SummaryFailed, OutcomeFallback
	}
	return summary, OutcomeOK
}

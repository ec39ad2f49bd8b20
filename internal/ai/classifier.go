// Package ai classifies incoming leads with an LLM: priority, sentiment and
// a one-line summary for the sales dashboard.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autodealers-backend/internal/leads"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel     = openai.GPT4oMini
	defaultMaxTokens = 300
)

const systemPrompt = `You classify car dealership sales leads. ` +
	`Respond with a single JSON object, no prose: ` +
	`{"priority":"high|medium|low","sentiment":"positive|neutral|negative","summary":"<one sentence>"}. ` +
	`High priority means the lead looks ready to buy soon; negative sentiment means the lead sounds frustrated or is likely to churn.`

type Classifier struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// NewClassifier returns nil when no API key is configured; callers treat a
// nil classifier as the feature being off.
func NewClassifier(apiKey, model string, log *slog.Logger) *Classifier {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = defaultModel
	}
	return &Classifier{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    log,
	}
}

type classifyResult struct {
	Priority  string `json:"priority"`
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
}

func (c *Classifier) Classify(ctx context.Context, lead leads.Lead) (leads.AIClassification, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: leadPrompt(lead)},
		},
	})
	if err != nil {
		return leads.AIClassification{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return leads.AIClassification{}, fmt.Errorf("chat completion: empty response")
	}

	var result classifyResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return leads.AIClassification{}, fmt.Errorf("parse classification: %w", err)
	}

	ai := leads.AIClassification{
		Priority:     normalize(result.Priority, leads.PriorityMedium, leads.PriorityHigh, leads.PriorityMedium, leads.PriorityLow),
		Sentiment:    normalize(result.Sentiment, leads.SentimentNeutral, leads.SentimentPositive, leads.SentimentNeutral, leads.SentimentNegative),
		Summary:      strings.TrimSpace(result.Summary),
		ClassifiedAt: time.Now().UTC(),
	}

	c.log.Info("lead classified",
		slog.String("lead_id", lead.ID),
		slog.String("priority", ai.Priority),
		slog.String("sentiment", ai.Sentiment),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)),
	)
	return ai, nil
}

func leadPrompt(lead leads.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nSource: %s\nStatus: %s\n", lead.Name, lead.Source, lead.Status)
	if lead.VehicleID != "" {
		fmt.Fprintf(&b, "Interested vehicle: %s\n", lead.VehicleID)
	}
	if n := len(lead.Interactions); n > 0 {
		fmt.Fprintf(&b, "Interactions (%d):\n", n)
		// Most recent interactions carry the most signal; cap the prompt.
		from := 0
		if n > 10 {
			from = n - 10
		}
		for _, it := range lead.Interactions[from:] {
			fmt.Fprintf(&b, "- [%s] %s\n", it.Type, it.Note)
		}
	}
	return b.String()
}

// normalize guards against the model drifting off the allowed vocabulary.
func normalize(value, fallback string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}

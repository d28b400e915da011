// Package anthropicbackend implements summarize.Summarizer over the
// Anthropic Messages API.
package anthropicbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/freitascorp/sheriff/pkg/model"
)

// Backend summarizes an incident batch with a single Claude call.
type Backend struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a Backend. model defaults to Claude Haiku, cheap enough
// for a one-paragraph note on every closed batch.
func New(apiKey string, model anthropic.Model) *Backend {
	if model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}
	return &Backend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (b *Backend) Summarize(ctx context.Context, events []model.Event) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 200,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt(events))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropicbackend: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func prompt(events []model.Event) string {
	var sb strings.Builder
	sb.WriteString("Write a one-paragraph incident note summarizing these process status changes:\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "- %s: %s -> %s\n", e.Command.Nickname, e.OldStatus, e.NewStatus)
	}
	return sb.String()
}

// Package openaibackend implements summarize.Summarizer over the OpenAI
// chat completions API.
package openaibackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/freitascorp/sheriff/pkg/model"
)

// Backend summarizes an incident batch with a single chat completion.
type Backend struct {
	client openai.Client
	model  string
}

// New creates a Backend. model defaults to gpt-4o-mini.
func New(apiKey, model string) *Backend {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &Backend{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (b *Backend) Summarize(ctx context.Context, events []model.Event) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt(events)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openaibackend: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openaibackend: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func prompt(events []model.Event) string {
	var sb strings.Builder
	sb.WriteString("Write a one-paragraph incident note summarizing these process status changes:\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "- %s: %s -> %s\n", e.Command.Nickname, e.OldStatus, e.NewStatus)
	}
	return sb.String()
}

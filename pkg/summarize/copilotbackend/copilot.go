// Package copilotbackend implements summarize.Summarizer over the
// GitHub Copilot SDK. The SDK is session-based: the backend keeps one
// lazily started client and opens a fresh session per batch, since each
// incident note is an independent one-shot prompt.
package copilotbackend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/freitascorp/sheriff/pkg/model"
)

// Backend summarizes an incident batch with a single Copilot exchange.
type Backend struct {
	client *copilot.Client
	model  string

	startOnce sync.Once
	startErr  error
}

// New creates a Backend. Authentication is inherited from the Copilot
// CLI's own login state (or GITHUB_TOKEN); model may be empty to accept
// the SDK's default.
func New(model string) *Backend {
	return &Backend{
		client: copilot.NewClient(&copilot.ClientOptions{}),
		model:  model,
	}
}

func (b *Backend) Summarize(ctx context.Context, events []model.Event) (string, error) {
	b.startOnce.Do(func() {
		b.startErr = b.client.Start(ctx)
	})
	if b.startErr != nil {
		return "", fmt.Errorf("copilotbackend: start: %w", b.startErr)
	}

	session, err := b.client.CreateSession(ctx, &copilot.SessionConfig{Model: b.model})
	if err != nil {
		return "", fmt.Errorf("copilotbackend: create session: %w", err)
	}
	defer session.Destroy()

	reply, err := session.SendAndWait(ctx, copilot.MessageOptions{Prompt: prompt(events)})
	if err != nil {
		return "", fmt.Errorf("copilotbackend: send: %w", err)
	}
	if reply == nil || reply.Data.Content == nil || *reply.Data.Content == "" {
		return "", fmt.Errorf("copilotbackend: empty response")
	}
	return *reply.Data.Content, nil
}

func prompt(events []model.Event) string {
	var sb strings.Builder
	sb.WriteString("Write a one-paragraph incident note summarizing these process status changes:\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "- %s: %s -> %s\n", e.Command.Nickname, e.OldStatus, e.NewStatus)
	}
	return sb.String()
}

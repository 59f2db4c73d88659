package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentdesk/internal/agent"
	"agentdesk/internal/wikipedia"
)

const defaultSentences = 2

// Summarizer is the encyclopedia provider.
type Summarizer interface {
	Summary(ctx context.Context, topic string, sentences int) (string, error)
}

// Encyclopedia looks up a short summary for the raw user message.
type Encyclopedia struct {
	client    Summarizer
	sentences int
}

func NewEncyclopedia(client Summarizer, sentences int) *Encyclopedia {
	if sentences <= 0 {
		sentences = defaultSentences
	}
	return &Encyclopedia{client: client, sentences: sentences}
}

func (e *Encyclopedia) Kind() agent.ToolKind { return agent.KindEncyclopedia }

// Invoke resolves a disambiguation page by retrying once with its first
// option. Ambiguous and missing topics yield fixed messages, not errors.
func (e *Encyclopedia) Invoke(ctx context.Context, query string) (string, error) {
	summary, err := e.client.Summary(ctx, query, e.sentences)
	if err == nil {
		return truncate(summary), nil
	}

	var derr *wikipedia.DisambiguationError
	switch {
	case errors.As(err, &derr):
		if len(derr.Options) == 0 {
			return multipleMatches(query), nil
		}
		slog.Debug("wikipedia: disambiguation, retrying", "query", query, "option", derr.Options[0])
		summary, err := e.client.Summary(ctx, derr.Options[0], e.sentences)
		if err != nil {
			slog.Debug("wikipedia: retry failed", "option", derr.Options[0], "error", err)
			return multipleMatches(query), nil
		}
		return truncate(summary), nil
	case errors.Is(err, wikipedia.ErrPageNotFound):
		return fmt.Sprintf("No Wikipedia page found for %q.", query), nil
	default:
		return "", fmt.Errorf("searching Wikipedia: %w", err)
	}
}

func multipleMatches(query string) string {
	return fmt.Sprintf("Multiple Wikipedia matches found for %q. Please be more specific.", query)
}

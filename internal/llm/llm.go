package llm

import "context"

// Request is one two-message exchange: a system instruction and the user's
// content, plus sampling settings. Temperature 0 is sent as is; a negative
// value leaves it to the provider.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

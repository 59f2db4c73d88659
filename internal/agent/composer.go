package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agentdesk/internal/history"
	"agentdesk/internal/llm"
	"agentdesk/internal/metrics"
	"agentdesk/internal/persona"
	"agentdesk/internal/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	DefaultTemperature       = 0.7
	DefaultMaxTokens         = 500
	DefaultToolTimeout       = 8 * time.Second
	DefaultCompletionTimeout = 30 * time.Second
)

// PersonaSource is the read side of the persona registry.
type PersonaSource interface {
	Get(id string) (persona.Persona, bool)
}

// Journal records finished turns.
type Journal interface {
	SaveTurn(ctx context.Context, t history.Turn) error
}

type Option func(*Composer)

func WithSampling(temperature float64, maxTokens int64) Option {
	return func(c *Composer) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

func WithToolTimeout(d time.Duration) Option {
	return func(c *Composer) { c.toolTimeout = d }
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(c *Composer) { c.completionTimeout = d }
}

func WithJournal(j Journal) Option {
	return func(c *Composer) { c.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Composer) { c.metrics = m }
}

// Composer runs one chat turn: tools, prompt, completion.
type Composer struct {
	personas PersonaSource
	provider llm.Provider
	tools    *Registry
	journal  Journal
	metrics  *metrics.Metrics

	temperature       float64
	maxTokens         int64
	toolTimeout       time.Duration
	completionTimeout time.Duration
}

func NewComposer(personas PersonaSource, provider llm.Provider, tools *Registry, opts ...Option) *Composer {
	c := &Composer{
		personas:          personas,
		provider:          provider,
		tools:             tools,
		temperature:       DefaultTemperature,
		maxTokens:         DefaultMaxTokens,
		toolTimeout:       DefaultToolTimeout,
		completionTimeout: DefaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle answers message as persona id and returns the model's reply
// unmodified. Tool failures are folded into the prompt; a completion failure
// is returned as *CompletionError. The registry is only read.
func (c *Composer) Handle(ctx context.Context, id, message string) (string, error) {
	turnID := uuid.NewString()
	requestID := RequestIDFromContext(ctx)
	ctx = contextWithTurnID(ctx, turnID)

	ctx, span := trace.Tracer().Start(ctx, "agent.turn",
		oteltrace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("request.id", requestID),
			attribute.String("persona.id", id),
			attribute.String("user.message", truncateAttr(message)),
		),
	)
	defer span.End()

	p, ok := c.personas.Get(id)
	if !ok {
		c.metrics.Turn("not_found")
		err := &NotFoundError{ID: id}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	start := time.Now()
	results := c.gather(ctx, p.Tools, message)
	req := llm.Request{
		System:      SystemPrompt(p),
		User:        UserPrompt(p, message, results),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	reply, err := c.complete(ctx, req)
	c.record(ctx, history.Turn{
		ID:         turnID,
		RequestID:  requestID,
		PersonaID:  p.ID,
		Message:    message,
		Tools:      toolLines(results),
		Reply:      reply,
		Error:      errString(err),
		DurationMS: time.Since(start).Milliseconds(),
		CreatedAt:  start,
	})

	if err != nil {
		c.metrics.Turn("completion_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("turn failed", "turn_id", turnID, "request_id", requestID, "persona_id", p.ID, "error", err)
		return "", err
	}

	c.metrics.Turn("ok")
	slog.Info("turn completed",
		"turn_id", turnID,
		"request_id", requestID,
		"persona_id", p.ID,
		"tools", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

func (c *Composer) complete(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.completionTimeout)
	defer cancel()

	ctx, span := trace.Tracer().Start(ctx, "llm.complete")
	defer span.End()

	start := time.Now()
	reply, err := c.provider.Complete(ctx, req)
	c.metrics.Completion(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &CompletionError{Err: err}
	}
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// gather selects the eligible tools in declared order and runs them in
// parallel. Results are index-addressed so completion order never changes
// the order of lines in the prompt.
func (c *Composer) gather(ctx context.Context, declared []string, message string) []ToolResult {
	var selected []Tool
	for _, name := range declared {
		t, ok := c.tools.Resolve(name)
		if !ok {
			slog.Debug("skipping unknown tool", "name", name)
			continue
		}
		if g, ok := t.(Gate); ok && !g.Eligible(message) {
			slog.Debug("tool not eligible for message", "name", name)
			continue
		}
		selected = append(selected, t)
	}

	var wg sync.WaitGroup
	results := make([]ToolResult, len(selected))
	for i, t := range selected {
		wg.Add(1)
		go func(i int, t Tool) {
			defer wg.Done()
			results[i] = c.invoke(ctx, t, message)
		}(i, t)
	}
	wg.Wait()

	return results
}

// invoke runs a single tool under the tool timeout. Errors, panics and
// expiry all become a ToolError.
func (c *Composer) invoke(ctx context.Context, t Tool, query string) ToolResult {
	kind := t.Kind()
	ctx, cancel := context.WithTimeout(ctx, c.toolTimeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		text, err := withTrace(t).Invoke(ctx, query)
		done <- outcome{text: text, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}
	if errors.Is(out.err, context.DeadlineExceeded) {
		out.err = fmt.Errorf("timed out after %s", c.toolTimeout)
	}

	c.metrics.Tool(string(kind), out.err != nil, time.Since(start))

	if out.err != nil {
		te := &ToolError{Kind: kind, Err: out.err}
		slog.Warn("tool failed", "tool", kind, "turn_id", TurnIDFromContext(ctx), "error", out.err)
		return ToolResult{Kind: kind, Text: te.Diagnostic(), Err: te}
	}
	return ToolResult{Kind: kind, Text: out.text}
}

func (c *Composer) record(ctx context.Context, t history.Turn) {
	if c.journal == nil {
		return
	}
	// The journal outlives a cancelled request.
	if err := c.journal.SaveTurn(context.WithoutCancel(ctx), t); err != nil {
		slog.Warn("failed to save turn", "turn_id", t.ID, "error", err)
	}
}

func toolLines(results []ToolResult) []history.ToolLine {
	lines := make([]history.ToolLine, len(results))
	for i, r := range results {
		lines[i] = history.ToolLine{Tool: r.Kind.Label(), Text: r.Text, Failed: r.Err != nil}
	}
	return lines
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

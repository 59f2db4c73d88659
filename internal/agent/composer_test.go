package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"agentdesk/internal/history"
	"agentdesk/internal/llm"
	"agentdesk/internal/persona"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu    sync.Mutex
	reqs  []llm.Request
	reply string
	err   error
}

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeProvider) last(t *testing.T) llm.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

type fakeTool struct {
	kind  ToolKind
	text  string
	err   error
	delay time.Duration
	gate  func(string) bool
	panic bool
	block bool

	mu      sync.Mutex
	queries []string
}

func (f *fakeTool) Kind() ToolKind { return f.kind }

func (f *fakeTool) Invoke(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.panic {
		panic("boom")
	}
	if f.block {
		// Ignores ctx on purpose.
		time.Sleep(time.Second)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.text, f.err
}

type gatedTool struct {
	*fakeTool
}

func (g gatedTool) Eligible(message string) bool { return g.gate(message) }

type fakeJournal struct {
	mu    sync.Mutex
	turns []history.Turn
	err   error
}

func (f *fakeJournal) SaveTurn(_ context.Context, t history.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, t)
	return f.err
}

func newPersona(t *testing.T, reg *persona.Registry, tools ...string) persona.Persona {
	t.Helper()
	p, err := reg.Create(persona.Spec{
		Name:      "Ada",
		Role:      "travel guide",
		Goal:      "help people plan trips",
		Backstory: "grew up in Lyon",
		Tools:     tools,
		Task: &persona.DirectiveSpec{
			Description:    "answer travel questions",
			ExpectedOutput: "a friendly answer",
		},
	})
	require.NoError(t, err)
	return p
}

// toolBlock returns the lines between "Tool results:" and the closing line.
func toolBlock(t *testing.T, user string) []string {
	t.Helper()
	_, after, ok := strings.Cut(user, "Tool results:\n")
	require.True(t, ok, "prompt has no tool results block:\n%s", user)
	block, _, ok := strings.Cut(after, "\n\n")
	require.True(t, ok)
	return strings.Split(block, "\n")
}

func TestComposer_HandleUnknownPersona(t *testing.T) {
	provider := &fakeProvider{reply: "hi"}
	c := NewComposer(persona.NewRegistry(), provider, NewRegistry())

	_, err := c.Handle(context.Background(), "42", "hi")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "42", nf.ID)
	assert.Empty(t, provider.reqs)
}

func TestComposer_HandleComposesPrompt(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "wikipedia", "duckduckgo")

	tools := NewRegistry()
	tools.Register(&fakeTool{kind: KindEncyclopedia, text: "Paris is the capital of France."})
	tools.Register(&fakeTool{kind: KindWebSearch, text: "Paris travel guide."})

	provider := &fakeProvider{reply: "  Bonjour! Paris is wonderful.  "}
	c := NewComposer(reg, provider, tools)

	reply, err := c.Handle(context.Background(), p.ID, "Tell me about Paris")
	require.NoError(t, err)
	assert.Equal(t, "  Bonjour! Paris is wonderful.  ", reply, "reply is returned verbatim")

	req := provider.last(t)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, int64(500), req.MaxTokens)

	assert.Equal(t, strings.Join([]string{
		"You are Ada, a travel guide.",
		"Your goal is: help people plan trips",
		"Your backstory: grew up in Lyon",
		"Your current task: answer travel questions",
		"Expected output: a friendly answer",
		"",
		"You have access to the following tools: wikipedia, duckduckgo",
		"Use these tools when appropriate to help answer questions and complete tasks.",
	}, "\n"), req.System)

	assert.Equal(t, strings.Join([]string{
		"User message: Tell me about Paris",
		"",
		"Tool results:",
		"Wikipedia: Paris is the capital of France.",
		"Web Search: Paris travel guide.",
		"",
		"Stay in character as Ada, the travel guide, and answer the user's message.",
	}, "\n"), req.User)
}

func TestComposer_ToolOrderFollowsDeclaration(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "wikipedia", "duckduckgo")

	// The first declared tool finishes last.
	tools := NewRegistry()
	tools.Register(&fakeTool{kind: KindEncyclopedia, text: "slow summary", delay: 100 * time.Millisecond})
	tools.Register(&fakeTool{kind: KindWebSearch, text: "fast result"})

	provider := &fakeProvider{reply: "ok"}
	c := NewComposer(reg, provider, tools)

	_, err := c.Handle(context.Background(), p.ID, "Tell me about Paris")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Wikipedia: slow summary",
		"Web Search: fast result",
	}, toolBlock(t, provider.last(t).User))
}

func TestComposer_ToolsReceiveRawMessage(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "wikipedia", "google_search")

	wiki := &fakeTool{kind: KindEncyclopedia, text: "w"}
	web := &fakeTool{kind: KindWebSearch, text: "s"}
	tools := NewRegistry()
	tools.Register(wiki)
	tools.Register(web)

	c := NewComposer(reg, &fakeProvider{reply: "ok"}, tools)
	_, err := c.Handle(context.Background(), p.ID, "  Tell me about Paris?  ")
	require.NoError(t, err)

	assert.Equal(t, []string{"  Tell me about Paris?  "}, wiki.queries)
	assert.Equal(t, []string{"  Tell me about Paris?  "}, web.queries, "google_search is an alias for web search")
}

func TestComposer_GateSkipsIneligibleTool(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "python_repl")

	eval := gatedTool{&fakeTool{kind: KindCodeEval, text: "42", gate: func(m string) bool {
		return strings.Contains(m, "=")
	}}}
	tools := NewRegistry()
	tools.Register(eval)

	provider := &fakeProvider{reply: "ok"}
	c := NewComposer(reg, provider, tools)

	_, err := c.Handle(context.Background(), p.ID, "hello there")
	require.NoError(t, err)
	user := provider.last(t).User
	assert.NotContains(t, user, "Code Eval:")
	assert.Contains(t, user, "No tools were used.")
	assert.Empty(t, eval.queries)

	_, err = c.Handle(context.Background(), p.ID, "let result = 6 * 7; result")
	require.NoError(t, err)
	assert.Equal(t, []string{"Code Eval: 42"}, toolBlock(t, provider.last(t).User))
}

func TestComposer_UnknownAndUnregisteredToolsSkipped(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "telepathy", "wikipedia", "duckduckgo")

	tools := NewRegistry()
	tools.Register(&fakeTool{kind: KindEncyclopedia, text: "summary"})

	provider := &fakeProvider{reply: "ok"}
	c := NewComposer(reg, provider, tools)

	_, err := c.Handle(context.Background(), p.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"Wikipedia: summary"}, toolBlock(t, provider.last(t).User))
}

func TestComposer_ToolFailuresAreIncluded(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "wikipedia", "duckduckgo", "code_eval")

	tools := NewRegistry()
	tools.Register(&fakeTool{kind: KindEncyclopedia, err: errors.New("searching Wikipedia: status 503")})
	tools.Register(&fakeTool{kind: KindWebSearch, panic: true})
	tools.Register(&fakeTool{kind: KindCodeEval, text: "3"})

	journal := &fakeJournal{}
	provider := &fakeProvider{reply: "ok"}
	c := NewComposer(reg, provider, tools, WithJournal(journal))

	reply, err := c.Handle(context.Background(), p.ID, "x = 1 + 2")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	assert.Equal(t, []string{
		"Wikipedia: Error searching Wikipedia: status 503",
		"Web Search: Error tool panicked: boom",
		"Code Eval: 3",
	}, toolBlock(t, provider.last(t).User))

	require.Len(t, journal.turns, 1)
	lines := journal.turns[0].Tools
	require.Len(t, lines, 3)
	assert.True(t, lines[0].Failed)
	assert.True(t, lines[1].Failed)
	assert.False(t, lines[2].Failed)
}

func TestComposer_ToolTimeout(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "wikipedia")

	tools := NewRegistry()
	tools.Register(&fakeTool{kind: KindEncyclopedia, block: true})

	provider := &fakeProvider{reply: "ok"}
	c := NewComposer(reg, provider, tools, WithToolTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := c.Handle(context.Background(), p.ID, "Paris")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, []string{"Wikipedia: Error timed out after 20ms"}, toolBlock(t, provider.last(t).User))
}

func TestComposer_CompletionError(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg, "wikipedia")
	before := reg.List()

	tools := NewRegistry()
	tools.Register(&fakeTool{kind: KindEncyclopedia, text: "summary"})

	cause := errors.New("401 invalid api key")
	journal := &fakeJournal{}
	c := NewComposer(reg, &fakeProvider{err: cause}, tools, WithJournal(journal))

	_, err := c.Handle(context.Background(), p.ID, "hi")
	var cerr *CompletionError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid api key")

	assert.Equal(t, before, reg.List(), "registry unchanged")
	require.Len(t, journal.turns, 1)
	assert.Contains(t, journal.turns[0].Error, "invalid api key")
	assert.Empty(t, journal.turns[0].Reply)
}

func TestComposer_JournalFailureIsNotSurfaced(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg)

	journal := &fakeJournal{err: errors.New("disk full")}
	c := NewComposer(reg, &fakeProvider{reply: "ok"}, NewRegistry(), WithJournal(journal))

	reply, err := c.Handle(ContextWithRequestID(context.Background(), "req-1"), p.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	require.Len(t, journal.turns, 1)
	assert.Equal(t, "req-1", journal.turns[0].RequestID)
	assert.Equal(t, p.ID, journal.turns[0].PersonaID)
}

func TestComposer_RepeatedRequestIDGetsFreshTurnIDs(t *testing.T) {
	reg := persona.NewRegistry()
	p := newPersona(t, reg)

	journal := &fakeJournal{}
	c := NewComposer(reg, &fakeProvider{reply: "ok"}, NewRegistry(), WithJournal(journal))

	ctx := ContextWithRequestID(context.Background(), "client-req")
	for range 2 {
		_, err := c.Handle(ctx, p.ID, "hi")
		require.NoError(t, err)
	}

	require.Len(t, journal.turns, 2)
	first, second := journal.turns[0], journal.turns[1]
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, "client-req", first.ID)
	assert.Equal(t, "client-req", first.RequestID)
	assert.Equal(t, "client-req", second.RequestID)
}

func TestComposer_SystemPromptNotCached(t *testing.T) {
	reg := persona.NewRegistry()
	a := newPersona(t, reg, "wikipedia")
	b, err := reg.Create(persona.Spec{
		Name: "Grace", Role: "engineer", Goal: "g", Backstory: "b",
		Tools: []string{},
		Task:  &persona.DirectiveSpec{Description: "d", ExpectedOutput: "e"},
	})
	require.NoError(t, err)

	provider := &fakeProvider{reply: "ok"}
	c := NewComposer(reg, provider, NewRegistry(), WithSampling(0.2, 64))

	_, err = c.Handle(context.Background(), a.ID, "one")
	require.NoError(t, err)
	first := provider.last(t)
	_, err = c.Handle(context.Background(), b.ID, "two")
	require.NoError(t, err)
	second := provider.last(t)

	assert.Contains(t, first.System, "You are Ada, a travel guide.")
	assert.Contains(t, second.System, "You are Grace, a engineer.")
	assert.Contains(t, second.System, "You have access to the following tools: \n")
	assert.Equal(t, 0.2, second.Temperature)
	assert.Equal(t, int64(64), second.MaxTokens)
}

func TestKindOf(t *testing.T) {
	tests := map[string]ToolKind{
		"wikipedia":      KindEncyclopedia,
		"Wikipedia":      KindEncyclopedia,
		"python_repl":    KindCodeEval,
		"code_eval":      KindCodeEval,
		"duckduckgo":     KindWebSearch,
		" google_search": KindWebSearch,
	}
	for name, want := range tests {
		got, ok := KindOf(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := KindOf("telepathy")
	assert.False(t, ok)
}

func TestToolError(t *testing.T) {
	cause := errors.New("performing web search: refused")
	te := &ToolError{Kind: KindWebSearch, Err: cause}
	assert.Equal(t, "Error performing web search: refused", te.Diagnostic())
	assert.ErrorIs(t, te, cause)
	assert.Equal(t, "web-search tool: performing web search: refused", te.Error())
}

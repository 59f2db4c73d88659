package agent

import (
	"context"
	"strings"
)

// ToolKind is the closed set of capabilities a persona may declare.
type ToolKind string

const (
	KindEncyclopedia ToolKind = "encyclopedia"
	KindCodeEval     ToolKind = "code-eval"
	KindWebSearch    ToolKind = "web-search"
)

var kindLabels = map[ToolKind]string{
	KindEncyclopedia: "Wikipedia",
	KindCodeEval:     "Code Eval",
	KindWebSearch:    "Web Search",
}

// Label is the prefix of the kind's line in the tool results block.
func (k ToolKind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// declaredNames maps the tool names personas declare to kinds. Several names
// resolve to the same kind; google_search and duckduckgo share a provider.
var declaredNames = map[string]ToolKind{
	"wikipedia":     KindEncyclopedia,
	"encyclopedia":  KindEncyclopedia,
	"code_eval":     KindCodeEval,
	"python_repl":   KindCodeEval,
	"duckduckgo":    KindWebSearch,
	"google_search": KindWebSearch,
	"web_search":    KindWebSearch,
}

// KindOf resolves a declared tool name. Matching ignores case and
// surrounding whitespace.
func KindOf(name string) (ToolKind, bool) {
	k, ok := declaredNames[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Tool is one lookup capability. Invoke returns the text for the prompt or an
// error that the composer folds into a diagnostic line.
type Tool interface {
	Kind() ToolKind
	Invoke(ctx context.Context, query string) (string, error)
}

// Gate is implemented by tools that only run for some messages.
type Gate interface {
	Eligible(message string) bool
}

// Registry is the lookup table from kind to implementation.
type Registry struct {
	tools map[ToolKind]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[ToolKind]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Kind()] = t
}

func (r *Registry) Get(kind ToolKind) (Tool, bool) {
	t, ok := r.tools[kind]
	return t, ok
}

// Resolve maps a declared name to a registered tool. Unknown names and kinds
// with no registered implementation both report false.
func (r *Registry) Resolve(name string) (Tool, bool) {
	kind, ok := KindOf(name)
	if !ok {
		return nil, false
	}
	return r.Get(kind)
}

package agent

import (
	"fmt"
	"strings"

	"agentdesk/internal/persona"
)

// ToolResult is the outcome of one tool for one turn.
type ToolResult struct {
	Kind ToolKind
	Text string
	Err  *ToolError
}

// Line renders the result as it appears in the prompt.
func (r ToolResult) Line() string {
	return r.Kind.Label() + ": " + r.Text
}

// SystemPrompt builds the persona preamble. It is rebuilt on every turn.
func SystemPrompt(p persona.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s.\n", p.Name, p.Role)
	fmt.Fprintf(&b, "Your goal is: %s\n", p.Goal)
	fmt.Fprintf(&b, "Your backstory: %s\n", p.Backstory)
	fmt.Fprintf(&b, "Your current task: %s\n", p.Task.Description)
	fmt.Fprintf(&b, "Expected output: %s\n", p.Task.ExpectedOutput)
	b.WriteString("\n")
	fmt.Fprintf(&b, "You have access to the following tools: %s\n", strings.Join(p.Tools, ", "))
	b.WriteString("Use these tools when appropriate to help answer questions and complete tasks.")
	return b.String()
}

// UserPrompt wraps the message with the tool results block, one line per
// result in the order given.
func UserPrompt(p persona.Persona, message string, results []ToolResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User message: %s\n\n", message)
	b.WriteString("Tool results:\n")
	if len(results) == 0 {
		b.WriteString("No tools were used.\n")
	}
	for _, r := range results {
		b.WriteString(r.Line())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nStay in character as %s, the %s, and answer the user's message.", p.Name, p.Role)
	return b.String()
}

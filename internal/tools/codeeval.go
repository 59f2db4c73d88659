package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentdesk/internal/agent"

	"github.com/expr-lang/expr"
)

const defaultEvalTimeout = 2 * time.Second

// codeTriggers are substrings that mark a message as code. The check is
// deliberately crude; everything else is ordinary chat and skips the tool.
var codeTriggers = []string{
	"=",
	"def ",
	"import ",
	"print(",
	"lambda",
	"return ",
}

// CodeEval evaluates the message as an expr-lang program. Programs see an
// empty environment: there are no host functions, no variables and no I/O,
// and the interpreter enforces its own memory budget.
type CodeEval struct {
	timeout time.Duration
}

func NewCodeEval(timeout time.Duration) *CodeEval {
	if timeout <= 0 {
		timeout = defaultEvalTimeout
	}
	return &CodeEval{timeout: timeout}
}

func (c *CodeEval) Kind() agent.ToolKind { return agent.KindCodeEval }

func (c *CodeEval) Eligible(message string) bool {
	for _, t := range codeTriggers {
		if strings.Contains(message, t) {
			return true
		}
	}
	return false
}

func (c *CodeEval) Invoke(ctx context.Context, code string) (string, error) {
	program, err := expr.Compile(code, expr.Env(map[string]any{}))
	if err != nil {
		return "", fmt.Errorf("executing code: %w", err)
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%v", r)}
			}
		}()
		v, err := expr.Run(program, map[string]any{})
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return "", fmt.Errorf("executing code: %w", out.err)
		}
		if out.value == nil {
			return "Code executed successfully.", nil
		}
		return truncate(fmt.Sprint(out.value)), nil
	case <-timer.C:
		return "", fmt.Errorf("executing code: timed out after %s", c.timeout)
	case <-ctx.Done():
		return "", fmt.Errorf("executing code: %w", ctx.Err())
	}
}

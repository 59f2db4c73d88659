package agent

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"agentdesk/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedTool struct {
	Tool
}

func withTrace(t Tool) Tool {
	return &tracedTool{Tool: t}
}

func (t *tracedTool) Invoke(ctx context.Context, query string) (string, error) {
	ctx, span := trace.Tracer().Start(ctx, "tool."+string(t.Kind()),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.tool.name", string(t.Kind())),
			attribute.String("gen_ai.tool.input", truncateAttr(query)),
		),
	)
	defer span.End()

	sc := span.SpanContext()
	slog.Debug("tool span started", "tool", t.Kind(), "trace_id", sc.TraceID(), "span_id", sc.SpanID())

	result, err := t.Tool.Invoke(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.Int("gen_ai.tool.output_length", len(result)))
	return result, nil
}

const maxAttrBytes = 200

func truncateAttr(s string) string {
	if len(s) <= maxAttrBytes {
		return s
	}
	cut := maxAttrBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

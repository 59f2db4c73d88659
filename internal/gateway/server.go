package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/history"
	"agentdesk/internal/metrics"
	"agentdesk/internal/persona"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Personas is the registry surface the gateway needs.
type Personas interface {
	Create(spec persona.Spec) (persona.Persona, error)
	Get(id string) (persona.Persona, bool)
	List() []persona.Persona
	Len() int
}

// Chatter answers a message as a persona.
type Chatter interface {
	Handle(ctx context.Context, id, message string) (string, error)
}

// TurnLister reads the turn journal.
type TurnLister interface {
	TurnsByPersona(ctx context.Context, personaID string, limit int) ([]history.Turn, error)
}

type Server struct {
	personas Personas
	chat     Chatter
	turns    TurnLister
	metrics  *metrics.Metrics
	mux      *http.ServeMux
}

type Option func(*Server)

// WithTurns exposes the journal at GET /agents/{id}/turns. Without it the
// endpoint returns an empty list.
func WithTurns(t TurnLister) Option {
	return func(s *Server) { s.turns = t }
}

// WithMetrics serves m at GET /metrics and keeps the persona gauge current.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func NewServer(personas Personas, chat Chatter, opts ...Option) *Server {
	s := &Server{
		personas: personas,
		chat:     chat,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /agents", s.handleCreate)
	s.mux.HandleFunc("GET /agents", s.handleList)
	s.mux.HandleFunc("POST /agents/import", s.handleImport)
	s.mux.HandleFunc("GET /agents/{id}", s.handleGet)
	s.mux.HandleFunc("POST /agents/{id}/chat", s.handleChat)
	s.mux.HandleFunc("GET /agents/{id}/export", s.handleExport)
	s.mux.HandleFunc("GET /agents/{id}/turns", s.handleTurns)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(requestID(s.mux), "gateway",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.Pattern
		}),
	)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestID tags each request with X-Request-ID, generating one if the
// client sent none. Turns record it alongside their own id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(agent.ContextWithRequestID(r.Context(), id)))
	})
}

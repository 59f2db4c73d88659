package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"
	"agentdesk/internal/db"
	"agentdesk/internal/gateway"
	"agentdesk/internal/history"
	"agentdesk/internal/metrics"
	"agentdesk/internal/persona"
	"agentdesk/internal/trace"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if serveAddr != "" {
			cfg.Gateway.Addr = serveAddr
		}

		shutdownTrace, err := trace.Init(ctx, trace.Config{
			Endpoint: cfg.Trace.Endpoint,
			URLPath:  cfg.Trace.URLPath,
			APIKey:   cfg.Trace.APIKey,
			Insecure: cfg.Trace.Insecure,
		})
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTrace(sctx); err != nil {
				slog.Warn("trace shutdown", "error", err)
			}
		}()

		m := metrics.New()
		personas := persona.NewRegistry()

		var (
			composerOpts []agent.Option
			serverOpts   = []gateway.Option{gateway.WithMetrics(m)}
		)
		if cfg.DB.Journal {
			database, err := db.Open(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			if err := database.Migrate(); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}

			// Persona ids restart at "1" each run, so turns are scoped to this run.
			instance := uuid.NewString()
			store := history.NewStore(database, instance)
			composerOpts = append(composerOpts, agent.WithJournal(store))
			serverOpts = append(serverOpts, gateway.WithTurns(store))
			slog.Info("turn journal enabled", "path", cfg.DB.Path, "instance", instance)
		}

		composer, err := buildComposer(cfg, personas, m, composerOpts...)
		if err != nil {
			return err
		}

		if err := seedPersonas(personas, cfg.Personas); err != nil {
			return err
		}
		m.SetPersonas(personas.Len())

		srv := gateway.NewServer(personas, composer, serverOpts...)
		slog.Info("starting gateway", "addr", cfg.Gateway.Addr, "personas", personas.Len(), "model", cfg.LLM().Model)
		return srv.ListenAndServe(ctx, cfg.Gateway.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "override gateway listen address")
}

// seedPersonas creates the configured personas in order, so they receive
// the first ids.
func seedPersonas(r *persona.Registry, specs []persona.Spec) error {
	for i, spec := range specs {
		p, err := r.Create(spec)
		if err != nil {
			return fmt.Errorf("seeding persona %d: %w", i, err)
		}
		slog.Info("persona seeded", "persona_id", p.ID, "name", p.Name)
	}
	return nil
}

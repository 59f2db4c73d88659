package main

import (
	"fmt"
	"log/slog"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"
	"agentdesk/internal/llm"
	"agentdesk/internal/metrics"
	"agentdesk/internal/tools"
	"agentdesk/internal/wikipedia"
)

// buildTools registers every tool the config enables.
func buildTools(cfg *config.Config) (*agent.Registry, error) {
	registry := agent.NewRegistry()

	var wikiOpts []wikipedia.Option
	if cfg.Tools.Wikipedia.BaseURL != "" {
		wikiOpts = append(wikiOpts, wikipedia.WithBaseURL(cfg.Tools.Wikipedia.BaseURL))
	}
	wiki := wikipedia.NewClient(cfg.Tools.Wikipedia.Language, wikiOpts...)
	registry.Register(tools.NewEncyclopedia(wiki, cfg.Tools.Wikipedia.Sentences))

	var searcher tools.Searcher
	switch backend := cfg.SearchBackend(); backend {
	case "brave":
		brave, err := tools.NewBraveSearcher(cfg.Tools.WebSearch.BraveAPIKey)
		if err != nil {
			return nil, fmt.Errorf("creating brave searcher: %w", err)
		}
		searcher = brave
	default:
		searcher = tools.NewDuckDuckGoSearcher(cfg.Tools.WebSearch.DuckDuckGoURL)
	}
	registry.Register(tools.NewWebSearch(searcher, cfg.Tools.WebSearch.ResultCount))
	slog.Debug("web search configured", "backend", cfg.SearchBackend())

	if cfg.Tools.CodeEval.Enabled {
		registry.Register(tools.NewCodeEval(cfg.Tools.CodeEval.Timeout))
	}
	return registry, nil
}

func buildComposer(cfg *config.Config, personas agent.PersonaSource, m *metrics.Metrics, opts ...agent.Option) (*agent.Composer, error) {
	llmCfg := cfg.LLM()
	if llmCfg == nil {
		return nil, fmt.Errorf("default LLM %q not found in config", cfg.DefaultLLM)
	}
	provider := llm.NewOpenAI(llmCfg.BaseURL, llmCfg.APIKey, llmCfg.Model)

	registry, err := buildTools(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]agent.Option{
		agent.WithSampling(cfg.Completion.Temperature, cfg.Completion.MaxTokens),
		agent.WithToolTimeout(cfg.Tools.Timeout),
		agent.WithCompletionTimeout(cfg.Completion.Timeout),
		agent.WithMetrics(m),
	}, opts...)
	return agent.NewComposer(personas, provider, registry, opts...), nil
}

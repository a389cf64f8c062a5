package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/JohnPlummer/priority-scorer/directory"
	"github.com/JohnPlummer/priority-scorer/scorer"
	"github.com/JohnPlummer/priority-scorer/signals"
	"github.com/JohnPlummer/priority-scorer/triage"
)

var errMissingAPIKey = errors.New("--llm needs an OpenAI API key (--openai-api-key or OPENAI_API_KEY)")

// pipeline is a triager together with what it was built from
type pipeline struct {
	triager *triage.Triager
	checks  []healthCheck
	closers []func() error
}

func (p *pipeline) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			slog.Debug("error closing pipeline resource", "error", err)
		}
	}
}

// buildPipeline assembles scorer, directory and extractor from the scoring flags
func buildPipeline(cmd *cli.Command, metrics bool, opts ...triage.Option) (*pipeline, error) {
	var clock func() time.Time
	if v := cmd.String(nowFlagName); v != "" {
		now, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("parsing --%s: %w", nowFlagName, err)
		}
		clock = func() time.Time { return now }
	}

	cfg := scorer.NewDefaultConfig()
	if path := cmd.String(configFlagName); path != "" {
		var err error
		if cfg, err = scorer.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	s, err := scorer.NewIntegratedScorer(cfg.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("creating scorer: %w", err)
	}

	dir := directory.Default()
	if path := cmd.String(directoryFlagName); path != "" {
		if dir, err = directory.Load(path); err != nil {
			return nil, err
		}
	}

	p := &pipeline{checks: []healthCheck{{name: "scorer", source: s}}}
	sm := signals.NewMetricsRecorder(metrics)

	var extractor signals.Extractor = signals.NewKeywordExtractor().WithMetrics(sm)
	if cmd.Bool(llmFlagName) {
		key := cmd.String(apiKeyFlagName)
		if key == "" {
			return nil, errMissingAPIKey
		}

		llm, err := signals.NewLLMExtractor(signals.NewProductionConfig(key).WithModel(cmd.String(modelFlagName)))
		if err != nil {
			return nil, fmt.Errorf("creating LLM extractor: %w", err)
		}
		p.checks = append(p.checks, healthCheck{name: "signals", source: llm})

		// Only model results are cached; keyword fallbacks are recomputed
		var primary signals.Extractor = llm
		if addr := cmd.String(redisFlagName); addr != "" {
			client := redis.NewClient(&redis.Options{Addr: addr})
			p.closers = append(p.closers, client.Close)
			primary = signals.NewCachedExtractor(llm, signals.NewRedisCache(client, cmd.Duration(cacheTTLFlagName)), sm)
			slog.Debug("caching signals in redis", "addr", addr, "extractor", llm.Name())
		}
		extractor = signals.NewFallbackExtractor(primary, extractor, sm)
	} else if cmd.String(redisFlagName) != "" {
		slog.Debug("signal cache only applies with --llm")
	}

	all := []triage.Option{triage.WithExtractor(extractor), triage.WithConcurrency(cfg.MaxConcurrent)}
	if clock != nil {
		all = append(all, triage.WithClock(clock))
	}

	p.triager = triage.New(s, dir, append(all, opts...)...)
	return p, nil
}

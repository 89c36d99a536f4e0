package cli

import (
	"context"
	"fmt"

	"github.com/compozy/taskref/engine/autoload"
	"github.com/compozy/taskref/engine/resolver"
	"github.com/compozy/taskref/pkg/config"
	"github.com/compozy/taskref/pkg/logger"
)

// session ties a loaded file index to an evaluation context.
type session struct {
	cfg       *config.Config
	loader    *autoload.Loader
	index     *autoload.Index
	resolver  *resolver.Context
	collector *resolver.Collector
	result    *autoload.LoadResult
}

func autoloadConfig(cfg *config.Config) *autoload.Config {
	return &autoload.Config{
		Root:         cfg.Autoload.Root,
		Include:      cfg.Autoload.Include,
		Exclude:      cfg.Autoload.Exclude,
		Strict:       cfg.Autoload.Strict,
		DocCacheSize: cfg.Autoload.DocCacheSize,
	}
}

// openSession loads every pipeline file and builds a resolver over them.
// Diagnostics are both collected and logged.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	log := logger.FromContext(ctx)
	loader, err := autoload.New(autoloadConfig(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid autoload configuration: %w", err)
	}
	result, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, loadErr := range result.Errors {
		log.Warn("Pipeline file skipped", "file", loadErr.File, "error", loadErr.Error)
	}
	s := &session{
		cfg:       cfg,
		loader:    loader,
		index:     loader.Index(),
		collector: resolver.NewCollector(),
		result:    result,
	}
	if s.resolver, err = s.newResolver(ctx, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) newResolver(ctx context.Context, cfg *config.Config) (*resolver.Context, error) {
	log := logger.FromContext(ctx)
	reporter := resolver.Tee(s.collector, resolver.LogReporter{Log: log})
	return resolver.New(
		resolver.Combine(s.index, reporter),
		resolver.WithMaxExpansion(cfg.Resolver.MaxExpansion),
		resolver.WithParseCacheSize(cfg.Resolver.ParseCacheSize),
		resolver.WithLogger(log),
	)
}

// reconfigure swaps in a resolver built from cfg. The file index is kept;
// autoload settings only apply to a new session.
func (s *session) reconfigure(ctx context.Context, cfg *config.Config) error {
	rc, err := s.newResolver(ctx, cfg)
	if err != nil {
		return err
	}
	s.resolver.Close()
	s.resolver = rc
	s.cfg = cfg
	return nil
}

func (s *session) Close() {
	s.resolver.Close()
}

package cli

import (
	"fmt"
	"os/signal"
	"reflect"
	"sync"
	"syscall"

	"github.com/compozy/taskref/engine/autoload"
	"github.com/compozy/taskref/pkg/config"
	"github.com/compozy/taskref/pkg/logger"
	"github.com/spf13/cobra"
)

// WatchCmd keeps the index current and re-checks the pipeline on every change.
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload pipeline files on change and report problems",
		Long: `Watch the pipeline root and the config file for changes. Every pipeline reload
clears the resolution cache, every config reload rebuilds the resolver, and both
re-run check, printing the problems found.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := commandConfig(cmd)
	log := logger.FromContext(ctx)
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	// mu serializes pipeline reloads, configuration reloads and checks
	var mu sync.Mutex
	recheck := func() {
		s.collector.Reset()
		report, err := checkAll(ctx, s, s.cfg.CLI.Workers)
		if err != nil {
			log.Error("Check failed", "error", err)
			return
		}
		printCheckReport(newPrinter(cmd.OutOrStdout(), s.cfg), report)
	}

	manager := config.ManagerFromContext(ctx)
	manager.SetDebounce(debounceOf(cfg))
	manager.OnChange(func(prev, next *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if prev != nil && !reflect.DeepEqual(prev.Autoload, next.Autoload) {
			log.Warn("Autoload settings changed, restart watch to apply them")
		}
		if err := s.reconfigure(ctx, next); err != nil {
			log.Error("Configuration rejected", "error", err)
			return
		}
		log.Info("Configuration reloaded",
			"max_expansion", next.Resolver.MaxExpansion, "parse_cache_size", next.Resolver.ParseCacheSize)
		recheck()
	})
	if err := manager.Watch(ctx); err != nil {
		return err
	}

	watcher, err := autoload.NewWatcher(s.loader, debounceOf(cfg))
	if err != nil {
		return err
	}
	defer watcher.Close()
	err = watcher.Watch(ctx, func(result *autoload.LoadResult, err error) {
		if err != nil {
			log.Warn("Reload rejected, keeping previous index", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		s.result = result
		s.resolver.Clear()
		log.Info("Pipeline reloaded", "tasks", result.TasksLoaded, "files", result.FilesProcessed)
		recheck()
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.loader.Root(), err)
	}
	log.Info("Watching for changes", "root", s.loader.Root())
	mu.Lock()
	recheck()
	mu.Unlock()
	<-ctx.Done()
	return nil
}

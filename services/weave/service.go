// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weave wires the knowledge graph, the rule engine, snapshot
// storage and the file watcher into one service, and exposes it over HTTP.
//
// Lifecycle:
//
//	svc, err := weave.NewService(ctx, cfg, logger)  // loads the last snapshot
//	svc.Start(ctx)                                  // watcher + autosave
//	defer svc.Close(ctx)                            // final save
package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/weave/services/weave/config"
	"github.com/AleutianAI/weave/services/weave/graph"
	"github.com/AleutianAI/weave/services/weave/rules"
	"github.com/AleutianAI/weave/services/weave/storage"
	"github.com/AleutianAI/weave/services/weave/storage/badger"
	"github.com/AleutianAI/weave/services/weave/storage/sqlite"
)

// ServiceVersion is the weave service version.
const ServiceVersion = "0.1.0"

// Service owns the graph store, rule engine and their supporting
// infrastructure.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Start and Close must each be
//	called at most once.
type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *graph.Store
	engine    *rules.Engine
	notifier  *Notifier
	actions   *rules.ActionRegistry
	snapshots storage.SnapshotStore
	startedAt time.Time

	mu           sync.Mutex
	watcher      *graph.FileWatcher
	stopAutosave chan struct{}
	autosaveDone chan struct{}
	closed       bool
}

// NewService builds the service from configuration.
//
// Description:
//
//	Creates the graph store and rule engine, registers the graph actions
//	and built-in rules, loads rules_file when configured, opens snapshot
//	storage and restores the named snapshot if one exists.
//
// Inputs:
//
//	ctx - Context for storage access during startup.
//	cfg - Validated configuration.
//	logger - Logger for the service. Nil uses slog.Default().
//
// Outputs:
//
//	*Service - Ready to Start.
//	error - Engine, rules file or storage setup failure.
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := graph.NewStore(
		graph.WithName(cfg.Graph.Name),
		graph.WithVersion(cfg.Graph.Version),
		graph.WithRootPath(cfg.Graph.RootPath),
	)

	engine, err := rules.NewEngine(rules.Config{
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		DefaultTimeout: cfg.Engine.DefaultTimeout,
		LogCapacity:    cfg.Engine.LogCapacity,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create rule engine: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		engine:    engine,
		notifier:  NewNotifier(store, engine, logger),
		actions:   rules.NewActionRegistry(logger),
		startedAt: time.Now(),
	}
	RegisterGraphActions(s.actions, s.notifier)

	if err := engine.RegisterRule(rules.FileChangeLoggerRule(logger)); err != nil {
		return nil, fmt.Errorf("register built-in rules: %w", err)
	}
	if cfg.RulesFile != "" {
		loaded, err := rules.LoadRulesFile(cfg.RulesFile, s.actions)
		if err != nil {
			return nil, fmt.Errorf("load rules file: %w", err)
		}
		if err := engine.RegisterRules(loaded); err != nil {
			return nil, fmt.Errorf("register rules from %s: %w", cfg.RulesFile, err)
		}
		logger.Info("loaded rules file", slog.String("path", cfg.RulesFile), slog.Int("rules", len(loaded)))
	}

	snapshots, err := OpenSnapshotStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	s.snapshots = snapshots
	if snapshots != nil {
		if _, err := s.LoadSnapshot(ctx); err != nil {
			snapshots.Close()
			return nil, err
		}
	}
	return s, nil
}

// OpenSnapshotStore opens the configured backend. It returns nil, nil for
// backend "none".
func OpenSnapshotStore(cfg config.StorageConfig, logger *slog.Logger) (storage.SnapshotStore, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendBadger:
		bcfg := badger.DefaultConfig(cfg.Path)
		bcfg.Logger = logger.With(slog.String("component", "badger"))
		store, err := badger.Open(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open badger storage: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// Store returns the graph store. Mutations made directly on it do not fire
// graph:update; use Notifier for that.
func (s *Service) Store() *graph.Store { return s.store }

// Engine returns the rule engine.
func (s *Service) Engine() *rules.Engine { return s.engine }

// Notifier returns the notifying mutation wrapper.
func (s *Service) Notifier() *Notifier { return s.notifier }

// Actions returns the action registry used for declarative rules.
func (s *Service) Actions() *rules.ActionRegistry { return s.actions }

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Uptime returns the time since the service was created.
func (s *Service) Uptime() time.Duration { return time.Since(s.startedAt) }

// Dispatch fires trigger on the rule engine.
func (s *Service) Dispatch(ctx context.Context, trigger rules.Trigger, input rules.Input) ([]rules.LogEntry, error) {
	triggersDispatched.WithLabelValues(string(trigger)).Inc()
	return s.engine.Trigger(ctx, trigger, input)
}

// Start begins file watching and periodic autosave, as configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("service closed")
	}

	if s.cfg.Watcher.Enabled && s.watcher == nil {
		opts := graph.DefaultFileWatcherOptions()
		if s.cfg.Watcher.Debounce > 0 {
			opts.DebounceWindow = s.cfg.Watcher.Debounce
		}
		if len(s.cfg.Watcher.Ignore) > 0 {
			opts.IgnorePatterns = s.cfg.Watcher.Ignore
		}
		opts.Extensions = s.cfg.Watcher.Extensions
		opts.Logger = s.logger

		watcher, err := graph.NewFileWatcher(s.cfg.Watcher.Root, s.HandleFileChanges, &opts)
		if err != nil {
			return fmt.Errorf("create file watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			return fmt.Errorf("start file watcher: %w", err)
		}
		s.watcher = watcher
		s.logger.Info("watching documentation tree", slog.String("root", s.cfg.Watcher.Root))
	}

	if s.snapshots != nil && s.cfg.Storage.AutosaveInterval > 0 && s.stopAutosave == nil {
		s.stopAutosave = make(chan struct{})
		s.autosaveDone = make(chan struct{})
		go s.autosaveLoop(s.cfg.Storage.AutosaveInterval, s.stopAutosave, s.autosaveDone)
	}
	return nil
}

func (s *Service) autosaveLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.SaveSnapshot(context.Background()); err != nil {
				s.logger.Error("autosave failed", slog.String("error", err.Error()))
			}
			if w := s.currentWatcher(); w != nil {
				watcherDropped.Set(float64(w.Dropped()))
			}
		}
	}
}

func (s *Service) currentWatcher() *graph.FileWatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher
}

// Close stops the watcher and autosave, writes a final snapshot and
// closes storage.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watcher := s.watcher
	stop, done := s.stopAutosave, s.autosaveDone
	s.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	if stop != nil {
		close(stop)
		<-done
	}

	if s.snapshots == nil {
		return nil
	}
	saveErr := s.SaveSnapshot(ctx)
	closeErr := s.snapshots.Close()
	return errors.Join(saveErr, closeErr)
}

// SaveSnapshot writes the graph to the configured snapshot store.
func (s *Service) SaveSnapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrNoStorage
	}
	data, err := s.store.ToJSON()
	if err != nil {
		snapshotSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("serialize graph: %w", err)
	}
	if err := s.snapshots.Save(ctx, s.cfg.Storage.SnapshotName, data); err != nil {
		snapshotSaves.WithLabelValues("error").Inc()
		return err
	}
	snapshotSaves.WithLabelValues("ok").Inc()
	s.logger.Info("graph snapshot saved",
		slog.String("name", s.cfg.Storage.SnapshotName),
		slog.Int("bytes", len(data)),
		slog.Int("nodes", s.store.NodeCount()),
	)
	return nil
}

// LoadSnapshot replaces the graph with the stored snapshot. It reports
// false without error when no snapshot exists yet.
func (s *Service) LoadSnapshot(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, ErrNoStorage
	}
	data, err := s.snapshots.Load(ctx, s.cfg.Storage.SnapshotName)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		s.logger.Info("no graph snapshot yet", slog.String("name", s.cfg.Storage.SnapshotName))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.store.LoadJSON(data); err != nil {
		return false, fmt.Errorf("restore snapshot %q: %w", s.cfg.Storage.SnapshotName, err)
	}
	s.logger.Info("graph snapshot loaded",
		slog.String("name", s.cfg.Storage.SnapshotName),
		slog.Int("nodes", s.store.NodeCount()),
		slog.Int("edges", s.store.EdgeCount()),
	)
	return true, nil
}

// Snapshots lists stored snapshots.
func (s *Service) Snapshots(ctx context.Context) ([]storage.SnapshotInfo, error) {
	if s.snapshots == nil {
		return nil, ErrNoStorage
	}
	return s.snapshots.List(ctx)
}

// HandleFileChanges maps watcher batches onto file triggers.
//
//	create          -> file:add
//	write           -> file:change
//	remove, rename  -> file:unlink
//
// Rule failures are logged; one failing file does not stop the batch.
func (s *Service) HandleFileChanges(ctx context.Context, changes []graph.FileChange) {
	for _, change := range changes {
		trigger := FileTrigger(change.Op)
		if _, err := s.Dispatch(ctx, trigger, rules.Input{FilePath: change.Path}); err != nil {
			s.logger.Warn("file trigger failed",
				slog.String("trigger", string(trigger)),
				slog.String("path", change.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// FileTrigger returns the trigger fired for a file operation.
func FileTrigger(op graph.FileOp) rules.Trigger {
	switch op {
	case graph.FileOpCreate:
		return rules.TriggerFileAdd
	case graph.FileOpRemove, graph.FileOpRename:
		return rules.TriggerFileUnlink
	default:
		return rules.TriggerFileChange
	}
}

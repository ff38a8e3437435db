// Package runtime assembles configuration, the run store, the generator and
// the flow catalog, and keeps them current as the configuration changes.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tjfontaine/polyglot-flow/internal/config"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
	"github.com/tjfontaine/polyglot-flow/internal/flows"
	"github.com/tjfontaine/polyglot-flow/internal/pipeline"
	"github.com/tjfontaine/polyglot-flow/internal/provider"
	"github.com/tjfontaine/polyglot-flow/internal/storage"
)

// state is swapped as a whole on reload.
type state struct {
	cfg       *config.Config
	catalog   *flows.Catalog
	generator ports.Generator
}

// Service is the long-lived core behind the CLI and the HTTP server.
// It can be embedded in larger applications.
type Service struct {
	// Dependencies (injected via options)
	config    ports.ConfigProvider
	store     ports.RunStore
	generator ports.Generator
	logger    *slog.Logger

	ownsStore bool
	providers *provider.Registry
	current   atomic.Pointer[state]

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	reloadMu sync.Mutex
}

// New creates a Service with the given options. A config provider is required.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.config == nil {
		return nil, errors.New("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	s.providers = provider.NewRegistry(s.logger)
	return s, nil
}

// Start loads the configuration, opens the run store unless one was
// injected, builds the catalog and begins watching for config changes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	cfg, err := s.config.Load(s.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if s.store == nil {
		store, err := storage.Open(cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	st, err := s.build(cfg)
	if err != nil {
		return err
	}
	s.current.Store(st)

	go s.watchConfig()

	s.logger.Info("service started",
		slog.String("provider", st.generator.Name()),
		slog.String("storage", storageType(cfg, s.store)),
		slog.Int("flows", len(st.catalog.List())))
	return nil
}

// Close stops watching and releases the run store if the service opened it.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	var errs []error
	if s.config != nil {
		if err := s.config.Close(); err != nil {
			s.logger.Error("failed to close config", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if s.store != nil && s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close storage", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Catalog returns the current flow catalog.
func (s *Service) Catalog() *flows.Catalog {
	return s.load().catalog
}

// Config returns the configuration the current catalog was built from.
func (s *Service) Config() *config.Config {
	return s.load().cfg
}

// Generator returns the generator the current catalog uses.
func (s *Service) Generator() ports.Generator {
	return s.load().generator
}

// Store returns the run store, or nil when run storage is disabled.
func (s *Service) Store() ports.RunStore {
	return s.store
}

func (s *Service) load() *state {
	st := s.current.Load()
	if st == nil {
		panic("runtime: service used before Start")
	}
	return st
}

// Reload rebuilds the catalog from cfg. On error the previous catalog stays
// in force. Storage settings are only read at Start.
func (s *Service) Reload(cfg *config.Config) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	st, err := s.build(cfg)
	if err != nil {
		return err
	}
	s.current.Store(st)

	s.logger.Info("reload complete",
		slog.String("provider", st.generator.Name()),
		slog.Int("flows", len(st.catalog.List())))
	return nil
}

func (s *Service) build(cfg *config.Config) (*state, error) {
	gen := s.generator
	if gen == nil {
		var err error
		gen, err = s.providers.ForConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("init generator: %w", err)
		}
	}

	opts := []pipeline.Option{pipeline.WithLogger(s.logger)}
	if s.store != nil {
		opts = append(opts, pipeline.WithRunStore(s.store))
	}

	catalog, err := flows.Build(cfg, gen, opts...)
	if err != nil {
		return nil, fmt.Errorf("build flows: %w", err)
	}
	return &state{cfg: cfg, catalog: catalog, generator: gen}, nil
}

// watchConfig watches for config changes and reloads.
func (s *Service) watchConfig() {
	onChange := func(cfg *config.Config) {
		s.logger.Info("config changed, reloading")
		if err := s.Reload(cfg); err != nil {
			s.logger.Error("failed to reload", slog.String("error", err.Error()))
		}
	}

	if err := s.config.Watch(s.ctx, onChange); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("config watch unavailable", slog.String("error", err.Error()))
	}
}

func storageType(cfg *config.Config, store ports.RunStore) string {
	if store == nil {
		return storage.TypeNone
	}
	if cfg.Storage.Type == "" {
		return storage.TypeMemory
	}
	return cfg.Storage.Type
}

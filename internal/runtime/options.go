package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-flow/internal/adapters/config/file"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a flow.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(s *Service) error {
		provider, err := file.NewProvider(path, file.WithLogger(s.logger))
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		s.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(s *Service) error {
		s.config = provider
		return nil
	}
}

// WithStore injects the run store instead of opening the configured one.
// The caller keeps ownership and closes it.
func WithStore(store ports.RunStore) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithGenerator bypasses the provider registry. Useful for tests and for
// embedding with a custom model backend.
func WithGenerator(gen ports.Generator) Option {
	return func(s *Service) error {
		s.generator = gen
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before WithFileConfig for the
// config provider to share it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

package file

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/polyglot-flow/internal/config"
)

func writeConfig(t *testing.T, path string, port int) {
	t.Helper()
	content := []byte("server:\n  port: " + strconv.Itoa(port) + "\ngeneration:\n  provider: anthropic\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestNewProvider_EmptyPath(t *testing.T) {
	_, err := NewProvider("")
	assert.Error(t, err)
}

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, 9090)

	p, err := NewProvider(path)
	require.NoError(t, err)
	defer p.Close()

	cfg, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Generation.Provider)
	assert.Same(t, cfg, p.Current())
}

func TestProvider_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	p, err := NewProvider(path)
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	assert.Error(t, err)
}

func TestProvider_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 9090)

	p, err := NewProvider(path)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	require.NoError(t, p.Watch(ctx, func(cfg *config.Config) {
		select {
		case changes <- cfg:
		default:
		}
	}))

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644))
	writeConfig(t, path, 9191)

	// A write may be observed mid-truncate, so wait for the final content
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Server.Port != 9191 {
				continue
			}
			assert.Equal(t, 9191, p.Current().Server.Port)
			return
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

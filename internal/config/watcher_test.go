package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, path, endpoint string) {
	t.Helper()
	body := `{
		"engine": {"provider": "rule"},
		"remote": {"enabled": true, "endpoint": "` + endpoint + `"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	writeTestConfig(t, configPath, "https://server.example.com/mcp")

	watcher, err := NewWatcher(NewLoader(configPath), nil)
	require.NoError(t, err)
	require.NotNil(t, watcher)

	defer watcher.Stop()
}

func TestWatcherStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	writeTestConfig(t, configPath, "https://server.example.com/mcp")

	watcher, err := NewWatcher(NewLoader(configPath), nil)
	require.NoError(t, err)

	err = watcher.Start()
	require.NoError(t, err)

	// Give it a moment to start
	time.Sleep(10 * time.Millisecond)

	err = watcher.Stop()
	assert.NoError(t, err)

	// Stop twice is harmless
	assert.NoError(t, watcher.Stop())
}

func TestWatcherChangePublished(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	writeTestConfig(t, configPath, "https://server.example.com/mcp")

	changed := make(chan *Config, 1)

	watcher, err := NewWatcher(NewLoader(configPath), func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	watcher.debounce = 50 * time.Millisecond

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// Give watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	writeTestConfig(t, configPath, "https://other.example.com/mcp")

	select {
	case cfg := <-changed:
		assert.Equal(t, "https://other.example.com/mcp", cfg.Remote.Endpoint)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for config change")
	}
}

func TestWatcherReload(t *testing.T) {
	t.Run("publishes valid config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		writeTestConfig(t, configPath, "https://server.example.com/mcp")

		var got *Config
		watcher, err := NewWatcher(NewLoader(configPath), func(cfg *Config) {
			got = cfg
		})
		require.NoError(t, err)
		defer watcher.Stop()

		watcher.reload()

		require.NotNil(t, got)
		assert.Equal(t, "https://server.example.com/mcp", got.Remote.Endpoint)
	})

	t.Run("drops unreadable config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte("not json"), 0644))

		called := false
		watcher, err := NewWatcher(NewLoader(configPath), func(cfg *Config) {
			called = true
		})
		require.NoError(t, err)
		defer watcher.Stop()

		watcher.reload()

		assert.False(t, called)
	})

	t.Run("drops invalid config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		// Remote enabled without an endpoint fails validation.
		body := `{"remote": {"enabled": true, "endpoint": ""}}`
		require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

		called := false
		watcher, err := NewWatcher(NewLoader(configPath), func(cfg *Config) {
			called = true
		})
		require.NoError(t, err)
		defer watcher.Stop()

		watcher.reload()

		assert.False(t, called)
	})
}

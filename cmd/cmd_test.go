package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"text debug", "debug", "text", false},
		{"upper case format", "warn", "JSON", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestResolveSeed(t *testing.T) {
	assert.Equal(t, int64(5), resolveSeed(5, 9))
	assert.Equal(t, int64(9), resolveSeed(0, 9))
	assert.NotZero(t, resolveSeed(0, 0))
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "small.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("population:\n  initial: 10\ntelemetry:\n  stats_window: 0.05\n"), 0644))
	out := filepath.Join(dir, "out")

	rootCmd.SetArgs([]string{
		"run",
		"--log-level", "error",
		"--config", cfgPath,
		"--seed", "3",
		"--max-ticks", "6",
		"--mode", "parallel",
		"--workers", "2",
		"--output-dir", out,
	})
	require.NoError(t, rootCmd.Execute())

	for _, name := range []string{"telemetry.csv", "config.yaml", "run.yaml"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
	data, err := os.ReadFile(filepath.Join(out, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "mode: parallel")
}

func TestRunCommand_BadMode(t *testing.T) {
	rootCmd.SetArgs([]string{"run", "--log-level", "error", "--config", "", "--output-dir", "", "--mode", "gpu", "--max-ticks", "1"})
	assert.Error(t, rootCmd.Execute())
}

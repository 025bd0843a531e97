package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// noEnvFile points Load at a dotenv file that does not exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ALLOCGO_CONFIG", "")
	cfg, err := Load(Options{EnvFile: noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, 64, cfg.BatchThreshold)

	// artifact_path is only enforced by Validate
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact_path: failed 'required'")
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "allocgo.yaml", `
artifact_path: model/savings_allocation_model.json
base_score: 61.25
log_level: debug
log_format: console
watch: true
watch_debounce: 1s
batch_threshold: 8
`)

	cfg, err := Load(Options{ConfigPath: path, EnvFile: noEnvFile(t)})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "model/savings_allocation_model.json", cfg.ArtifactPath)
	require.NotNil(t, cfg.BaseScore)
	assert.Equal(t, 61.25, *cfg.BaseScore)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.Watch)
	assert.Equal(t, time.Second, cfg.WatchDebounce)
	assert.Equal(t, 8, cfg.BatchThreshold)
}

func TestLoad_ConfigFromEnvironment(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "artifact_path: from-env-config.json\n")
	t.Setenv("ALLOCGO_CONFIG", path)

	cfg, err := Load(Options{EnvFile: noEnvFile(t)})
	require.NoError(t, err)
	assert.Equal(t, "from-env-config.json", cfg.ArtifactPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", "artifact_path: a.json\nlog_level: info\n")
	t.Setenv("ALLOCGO_ARTIFACT_PATH", "b.json")
	t.Setenv("ALLOCGO_LOG_LEVEL", "WARN")
	t.Setenv("ALLOCGO_BASE_SCORE", "49.5")
	t.Setenv("ALLOCGO_WATCH", "true")
	t.Setenv("ALLOCGO_WATCH_DEBOUNCE", "50ms")
	t.Setenv("ALLOCGO_BATCH_THRESHOLD", "0")

	cfg, err := Load(Options{ConfigPath: path, EnvFile: noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "b.json", cfg.ArtifactPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 49.5, *cfg.BaseScore)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 50*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, 0, cfg.BatchThreshold)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "ALLOCGO_ARTIFACT_PATH=dotenv.json\nALLOCGO_LOG_FORMAT=console\n")
	// variables already in the environment win over the dotenv file
	t.Setenv("ALLOCGO_LOG_FORMAT", "json")
	t.Setenv("ALLOCGO_ARTIFACT_PATH", "")
	require.NoError(t, os.Unsetenv("ALLOCGO_ARTIFACT_PATH"))

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "dotenv.json", cfg.ArtifactPath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "unknown level",
			yaml:    "log_level: verbose\n",
			wantMsg: "log_level: failed 'oneof'",
		},
		{
			name:    "unknown format",
			env:     map[string]string{"ALLOCGO_LOG_FORMAT": "xml"},
			wantMsg: "log_format: failed 'oneof'",
		},
		{
			name:    "negative threshold",
			yaml:    "batch_threshold: -1\n",
			wantMsg: "batch_threshold: failed 'gte'",
		},
		{
			name:    "malformed env float",
			env:     map[string]string{"ALLOCGO_BASE_SCORE": "fifty"},
			wantMsg: "invalid ALLOCGO_BASE_SCORE",
		},
		{
			name:    "malformed env duration",
			env:     map[string]string{"ALLOCGO_WATCH_DEBOUNCE": "soon"},
			wantMsg: "invalid ALLOCGO_WATCH_DEBOUNCE",
		},
		{
			name:    "unknown yaml key",
			yaml:    "artifact: x.json\n",
			wantMsg: "field artifact not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := Options{EnvFile: noEnvFile(t)}
			if tt.yaml != "" {
				opts.ConfigPath = writeFile(t, t.TempDir(), "c.yaml", tt.yaml)
			}

			_, err := Load(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml"), EnvFile: noEnvFile(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

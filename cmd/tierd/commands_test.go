package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tierd/internal/config"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TIERD_CONFIG", "")
	t.Setenv("TIERD_LOG_LEVEL", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tierd dev")
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "Welcher", "Befehl", "zeigt", "die", "Festplattenbelegung", "an?")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "light", got["tier"])
	assert.Equal(t, "shortcut", got["rule"])
}

func TestClassifyCommand_Hint(t *testing.T) {
	out, err := run(t, "classify", "--hint", "heavy", "Hallo, wie geht es dir?")
	require.NoError(t, err)
	assert.Contains(t, out, `"tier": "heavy"`)
}

func TestScoreCommand(t *testing.T) {
	out, err := run(t, "score", "--latency", "2s", "--tokens", "40", "Run `df -h` to list mounted filesystems. It prints human readable sizes.")
	require.NoError(t, err)

	var got struct {
		Score    float64 `json:"score"`
		Escalate bool    `json:"escalate"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Greater(t, got.Score, 0.5)
	assert.False(t, got.Escalate)

	_, err = run(t, "score", "--latency", "-1s", "x")
	assert.Error(t, err)
}

func TestCommands_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  store: postgres\n"), 0o644))
	_, err := run(t, "--config", path, "classify", "hallo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.store")
}

func TestBuildMonitor(t *testing.T) {
	assert.IsType(t, resource.None{}, buildMonitor(config.ResourceConfig{Monitor: "none"}))
	assert.IsType(t, &resource.NvidiaSMI{}, buildMonitor(config.ResourceConfig{Monitor: "nvidia"}))
	m := buildMonitor(config.ResourceConfig{Monitor: "static", StaticTotalMB: 8000, StaticUsedMB: 2000})
	assert.Equal(t, resource.Static{TotalMB: 8000, UsedMB: 2000}, m)
}

func TestBuildStore_SQLiteCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	st, err := buildStore(config.SessionConfig{Store: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.FileExists(t, path)
}

func TestServiceConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Session.TimeoutSec = 90
	cfg.Tiers.Specialized.IdleUnloadSec = 0
	sc := serviceConfig(cfg, zerolog.Nop())
	assert.Len(t, sc.Profiles, 3)
	assert.Equal(t, config.Seconds(90), sc.Session.Timeout)
	assert.Equal(t, config.Seconds(60), sc.IdleInterval)
	assert.Equal(t, 0, sc.Profiles[types.TierSpecialized].IdleUnloadSec)
}

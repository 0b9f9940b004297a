package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "GUIDE.md", cfg.ArtifactName)
	assert.True(t, cfg.AutoExclude)
	assert.True(t, cfg.AutoCheckOnStart)
	assert.True(t, cfg.IntervalSyncEnabled)
	assert.Equal(t, DefaultIntervalMinutes, cfg.IntervalSyncMinutes)
	assert.True(t, cfg.ChangeSyncEnabled)
	assert.False(t, cfg.NotificationsEnabled)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, filepath.IsAbs(cfg.WorkDir))
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"remoteToken: tok\nintervalSyncMinutes: 5\nnotificationsEnabled: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.RemoteToken)
	assert.Equal(t, 5, cfg.IntervalSyncMinutes)
	assert.True(t, cfg.NotificationsEnabled)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.AutoExclude)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remoteToken: from-file\n"), 0o600))

	t.Setenv("GUIDESYNC_TOKEN", "from-env")
	t.Setenv("GUIDESYNC_INTERVAL_SYNC_MINUTES", "90")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.RemoteToken)
	assert.Equal(t, 90, cfg.IntervalSyncMinutes)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\t not yaml ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateIntervalRange(t *testing.T) {
	tests := []struct {
		minutes int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{30, false},
		{1440, false},
		{1441, true},
		{-5, true},
	}

	for _, tt := range tests {
		cfg := Defaults()
		cfg.IntervalSyncMinutes = tt.minutes

		err := cfg.Validate()
		if tt.wantErr {
			assert.Error(t, err, "minutes=%d", tt.minutes)
		} else {
			assert.NoError(t, err, "minutes=%d", tt.minutes)
		}
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cfg := Defaults()
	cfg.RemoteBaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.ArtifactName = ""
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Defaults()
	cfg.RemoteToken = "tok"
	cfg.RemoteID = "abc123"
	cfg.IntervalSyncMinutes = 15
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", loaded.RemoteToken)
	assert.Equal(t, "abc123", loaded.RemoteID)
	assert.Equal(t, 15, loaded.IntervalSyncMinutes)
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Defaults()
	cfg.IntervalSyncMinutes = 9999

	err := cfg.Save(filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, err)
}

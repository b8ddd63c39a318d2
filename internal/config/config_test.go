package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "invifiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":8081\"\nthumb_quality: 70\nread_timeout: 30s\nwebdav: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, 70, cfg.ThumbQuality)
	assert.Equal(t, 150, cfg.ThumbSize)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.WebDAV)
}

func TestLoad_JSONFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "invifiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"root": "/srv/share", "qr": false}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/share", cfg.Root)
	assert.False(t, cfg.QR)
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"INVIFILES_PORT":             "9100",
		"INVIFILES_ROOT":             "/tmp/share",
		"INVIFILES_MAX_UPLOAD_BYTES": "2048",
		"INVIFILES_QR":               "false",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "/tmp/share", cfg.Root)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.False(t, cfg.QR)
}

func TestApplyEnv_BadValue(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "INVIFILES_PORT" {
			return "ninety", true
		}
		return "", false
	}
	cfg := Default()
	assert.Error(t, applyEnv(&cfg, lookup))
}

func TestFinalize(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Root = dir
	require.NoError(t, cfg.Finalize())
	assert.True(t, filepath.IsAbs(cfg.Root))

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.Root = file
	assert.Error(t, cfg.Finalize())

	cfg = Default()
	cfg.Root = dir
	cfg.ThumbQuality = 0
	assert.Error(t, cfg.Finalize())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

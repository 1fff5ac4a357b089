package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfigPaths(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(work)

	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(home, ".config", "campari"), paths[0])
	assert.Contains(t, paths, work)

	// An existing config narrows the search to its directory.
	require.NoError(t, os.WriteFile(filepath.Join(work, "config.yaml"), []byte("debug: true\n"), 0o600))
	paths, err = GetDefaultConfigPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{work}, paths)

	found, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "config.yaml"), found)
}

func TestFindConfigFileMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if _, err := os.Stat("/etc/campari/config.yaml"); err == nil {
		t.Skip("system config present")
	}
	_, err := FindConfigFile()
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CAMPARI_TEST_ROOT", "/data/survey")

	assert.Equal(t, filepath.Join(home, "lc"), ExpandPath("~/lc"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/data/survey/catalog.db", ExpandPath("$CAMPARI_TEST_ROOT/catalog.db"))
	assert.Equal(t, "relative/path", ExpandPath("relative/path"))
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.yaml")
	dst := filepath.Join(dir, "dst.yaml")
	require.NoError(t, os.WriteFile(src, []byte("debug: true\n"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "debug: true\n", string(data))

	assert.Error(t, moveFile(filepath.Join(dir, "absent"), dst))
}

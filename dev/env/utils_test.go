package devenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(prev)
	})
}

func fakeWorkspace(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module finscraper\n\ngo 1.22.2\n"), 0666))
	nested := filepath.Join(root, "internal", "runstore")
	require.NoError(t, os.MkdirAll(nested, 0777))
	chdir(t, nested)
	return root
}

func TestResolvePath(t *testing.T) {
	root := fakeWorkspace(t)
	// the temp dir may be behind a symlink
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	resolved, err := ResolvePath("<dev_state>/runs.db")
	require.NoError(t, err)
	resolved, err = filepath.EvalSymlinks(filepath.Dir(resolved))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "dev", ".state"), resolved)

	plain, err := ResolvePath("runs.db")
	require.NoError(t, err)
	require.Equal(t, "runs.db", plain)
}

func TestGetStateConfig(t *testing.T) {
	root := fakeWorkspace(t)
	statedir := filepath.Join(root, "dev", ".state")
	require.NoError(t, os.MkdirAll(statedir, 0777))
	require.NoError(t, os.WriteFile(
		filepath.Join(statedir, "portal_test.json5"),
		[]byte(`{profile: "demo-bank", username: "alice", password: "hunter2"}`),
		0666,
	))

	config, err := GetStateConfig[PortalTestConfig]("portal_test.json5")
	require.NoError(t, err)
	require.Equal(t, PortalTestConfig{Profile: "demo-bank", Username: "alice", Password: "hunter2"}, config)

	_, err = GetStateConfig[PortalTestConfig]("missing.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}

package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureWorkDir_RelativeIsCreatedInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureWorkDir("ingest-work")
	require.NoError(t, err)

	want := filepath.Join(tmp, "ingest-work")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureWorkDir_AbsoluteAndIdempotent(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b")

	got, err := EnsureWorkDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = EnsureWorkDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEnsureWorkDir_EmptyMeansSystemTemp(t *testing.T) {
	got, err := EnsureWorkDir("")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEnsureWorkDir_ErrorWhenPathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := EnsureWorkDir(file)
	require.Error(t, err)
}

package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig_LoadsApplicationTestYml(t *testing.T) {
	reset()
	t.Cleanup(reset)

	res := Config()
	require.True(t, res.IsOk())
	v := res.MustGet()
	require.NotNil(t, v)

	// This value comes from application_test.yml at the project root.
	require.Equal(t, "sqlite3", v.GetString("datasource.default.driver"))
}

func TestConfig_FromWorkingDirectory(t *testing.T) {
	reset()
	t.Cleanup(reset)

	dir := t.TempDir()
	content := "datasource:\n  default:\n    driver: mysql\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module tmp\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "application_test.yml"), []byte(content), 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	res := Config()
	require.True(t, res.IsOk())
	require.Equal(t, "mysql", res.MustGet().GetString("datasource.default.driver"))
}

func TestConfig_Missing(t *testing.T) {
	reset()
	t.Cleanup(reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module tmp\n"), 0o644))
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	res := Config()
	require.True(t, res.IsError())
}

func TestProjectRoot(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module tmp\n"), 0o644))

	require.Equal(t, dir, projectRoot(nested).MustGet())
}

func TestLogger_LevelFromConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)
	t.Setenv(envKey, production)

	l := Logger()
	require.NotNil(t, l)
	require.Same(t, l, Logger())
	// application_test.yml sets log.level to debug.
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))
}


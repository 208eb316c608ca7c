package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-dev/ledgerline/internal/config"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "ledgerline-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "ledgerline")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/ledgerline")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runLedgerline(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	_, err := runLedgerline(t, "init", dir, "--user", "don")
	require.NoError(t, err)

	expectedDirs := []string{
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "don", cfg.User)
	assert.NotEmpty(t, cfg.Server.Database)
	assert.NotEmpty(t, cfg.Client.Database)
}

func TestInit_RequiresUser(t *testing.T) {
	dir := t.TempDir()
	out, err := runLedgerline(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, out, "user")
}

func TestStatus_BeforeAnySync(t *testing.T) {
	dir := t.TempDir()
	_, err := runLedgerline(t, "init", dir, "--user", "don")
	require.NoError(t, err)

	out, err := runLedgerline(t, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending mutations: 0")
	assert.Contains(t, out, "Last event:       never")
}

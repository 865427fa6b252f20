package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	token, stderr, err := runNF(t, binaryPath, home, "sandbox", "token", "--user", "alice", "--secret", "smoke-secret")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runNF(t, binaryPath, home,
		"login",
		"--token", strings.TrimSpace(token),
		"--server", "http://127.0.0.1:5999",
	)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Signed in as alice on http://127.0.0.1:5999")

	stdout, stderr, err = runNF(t, binaryPath, home, "whoami")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "alice on http://127.0.0.1:5999\n", stdout)

	stdout, stderr, err = runNF(t, binaryPath, home, "logout")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "Signed out alice\n", stdout)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "nf-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/nf")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build nf binary: %s", string(output))
	return binaryPath
}

func runNF(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bartekus/leafsync/cmd/leafsync/internal/clierr"
	"github.com/bartekus/leafsync/internal/config"
	"github.com/bartekus/leafsync/internal/logger"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OVERLEAF_URL", "GIT_REPO_PATH", "TMP_ZIP_FOLDER", "LOGS_FOLDER", "OPENWEBUI_URL",
		"API_KEY", "OPENWEBUI_MODEL", "BROWSER_PROFILE_DIR", "BROWSER_NO_SANDBOX", "LOG_LEVEL", "LOG_FORMAT", "LEAFSYNC_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetErr(b)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return b.String(), err
}

func TestCLIContract(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, c := range []string{"completion", "config", "help", "sync", "version"} {
		assert.Contains(t, out, c, "expected top-level command %q in root help", c)
	}
}

func TestSyncHelpListsFlags(t *testing.T) {
	out, err := execute(t, "sync", "--help")
	require.NoError(t, err)

	for _, f := range []string{"--overleaf-url", "--git-path", "--log-level", "--openwebui-url", "--api-key"} {
		assert.Contains(t, out, f)
	}
}

func TestSync_InvalidURLExitsOne(t *testing.T) {
	isolateEnv(t)
	logs := t.TempDir()
	downloads := filepath.Join(t.TempDir(), "downloads")

	_, err := execute(t, "sync",
		"--overleaf-url", "https://www.overleaf.com/project/abc123",
		"--git-path", t.TempDir(),
		"--logs-dir", logs,
		"--tmp-dir", downloads,
	)
	require.Error(t, err)
	assert.Equal(t, clierr.ExitFailure, clierr.ExitCodeOf(err))
	assert.Contains(t, err.Error(), "invalid overleaf URL")

	assert.NoDirExists(t, downloads, "no fetch attempted")

	entries, err := os.ReadDir(logs)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".log"))

	data, err := os.ReadFile(filepath.Join(logs, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"syncer"`)
}

func TestSync_MissingGitMetadataExitsOne(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "sync",
		"--overleaf-url", "https://www.overleaf.com/read/abc123",
		"--git-path", t.TempDir(),
		"--logs-dir", t.TempDir(),
	)
	require.Error(t, err)
	assert.Equal(t, clierr.ExitFailure, clierr.ExitCodeOf(err))
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestSync_RejectsUnknownLogLevel(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "sync", "--log-level", "TRACE", "--logs-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestSync_LogLevelFlagOverridesBadEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LOG_LEVEL", "VERBOSE")

	_, err := execute(t, "sync",
		"--log-level", "INFO",
		"--overleaf-url", "https://www.overleaf.com/project/abc123",
		"--git-path", t.TempDir(),
		"--logs-dir", t.TempDir(),
	)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "invalid log level")
	assert.Contains(t, err.Error(), "invalid overleaf URL", "the run reached the URL check")
}

func TestConfigCommand_PrintsInvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LOG_LEVEL", "VERBOSE")

	out, err := execute(t, "config")
	require.Error(t, err)
	assert.Equal(t, clierr.ExitFailure, clierr.ExitCodeOf(err))
	assert.Contains(t, err.Error(), "invalid log level")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "VERBOSE", cfg.Log.Level)
}

func TestConfigCommand_RedactsKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("API_KEY", "sk-very-secret")
	t.Setenv("OVERLEAF_URL", "https://www.overleaf.com/read/abc123")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-very-secret")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "https://www.overleaf.com/read/abc123", cfg.Overleaf.URL)
	assert.Equal(t, "********", cfg.Model.APIKey)
}

func TestVersion(t *testing.T) {
	t.Setenv("LEAFSYNC_VERSION", "1.2.3")
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "leafsync version 1.2.3\n", out)
}

func TestLogFileNamedByHour(t *testing.T) {
	isolateEnv(t)
	logs := t.TempDir()

	_, _ = execute(t, "sync", "--overleaf-url", "bad", "--logs-dir", logs)

	_, err := os.Stat(filepath.Join(logs, logger.FileName(time.Now())))
	if err != nil {
		// the hour may have rolled over between the run and the check
		_, err = os.Stat(filepath.Join(logs, logger.FileName(time.Now().Add(-time.Hour))))
	}
	assert.NoError(t, err)
}

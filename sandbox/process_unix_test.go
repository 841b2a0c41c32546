//go:build unix

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

// processAlive reports whether pid names a live process. Zombies waiting to
// be reaped by init count as dead.
func processAlive(pid int) bool {
	if err := unix.Kill(pid, 0); err != nil {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	// The state follows the parenthesised command name.
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) == 0 || fields[0] != "Z"
}

func requireDead(t *testing.T, pid int) {
	t.Helper()
	require.Positive(t, pid)
	assert.Eventually(t, func() bool { return !processAlive(pid) },
		2*time.Second, 20*time.Millisecond, "process %d outlived the run", pid)
}

func TestRealCommandRunner(t *testing.T) {
	sh := requireShell(t)
	runner := RealCommandRunner{}

	t.Run("CapturesStreams", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args: []string{sh, "-c", "echo out; echo err >&2"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Equal(t, "out\n", outcome.Stdout)
		assert.Equal(t, "err\n", outcome.Stderr)
	})

	t.Run("NonZeroExitIsNotAnError", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args: []string{sh, "-c", "exit 3"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, outcome.ExitCode)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		_, err := runner.RunCommand(context.Background(), Command{
			Args: []string{"/nonexistent/interpreter"},
		})
		assert.Error(t, err)
	})

	t.Run("NoArgs", func(t *testing.T) {
		_, err := runner.RunCommand(context.Background(), Command{})
		assert.Error(t, err)
	})

	t.Run("TruncatesOutput", func(t *testing.T) {
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args:           []string{sh, "-c", "printf 0123456789"},
			MaxOutputBytes: 4,
		})
		require.NoError(t, err)
		assert.Equal(t, "0123", outcome.Stdout)
		assert.True(t, outcome.StdoutTruncated)
	})

	t.Run("LeaderExitKillsProcessGroup", func(t *testing.T) {
		start := time.Now()
		// The background sleep inherits stdout and outlives its parent.
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args: []string{sh, "-c", "sleep 30 & echo $!"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Less(t, time.Since(start), killWaitDelay)

		pid, err := strconv.Atoi(strings.TrimSpace(outcome.Stdout))
		require.NoError(t, err)
		requireDead(t, pid)
	})

	t.Run("EscapedDescendantHoldingPipes", func(t *testing.T) {
		setsid, err := exec.LookPath("setsid")
		if err != nil {
			t.Skip("setsid not available")
		}

		start := time.Now()
		outcome, err := runner.RunCommand(context.Background(), Command{
			Args: []string{sh, "-c", setsid + " sleep 5 & echo done"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Equal(t, "done\n", outcome.Stdout)
		assert.Less(t, time.Since(start), killWaitDelay+time.Second)
	})

	t.Run("DeadlineKillsProcessGroup", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		// The background sleep inherits the pipes; only a group kill lets
		// Wait return before killWaitDelay.
		outcome, err := runner.RunCommand(ctx, Command{
			Args: []string{sh, "-c", "sleep 30 & sleep 30"},
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, outcome.ExitCode)
		assert.Less(t, time.Since(start), killWaitDelay)
	})
}

// spawnScript starts a long-lived child that inherits the real stdout, records
// its pid in pidFile and then runs tail as the rest of main().
func spawnScript(pidFile, tail string) string {
	return fmt.Sprintf(`import subprocess, time
def main():
    child = subprocess.Popen(["sleep", "60"])
    with open(%q, "w") as f:
        f.write(str(child.pid))
    %s
`, pidFile, tail)
}

func readPid(t *testing.T, pidFile string) int {
	t.Helper()
	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	return pid
}

func TestPythonLeavesNoProcesses(t *testing.T) {
	engine, dir := newPythonEngine(t, func(c *Config) {
		c.Timeout = time.Second
	})

	t.Run("Success", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "pid")
		start := time.Now()
		result := engine.Execute(context.Background(), spawnScript(pidFile, "return 1"))
		require.True(t, result.OK(), "unexpected failure: %v", result.Failure)
		assert.Equal(t, "1", string(result.Value))
		assert.Less(t, time.Since(start), killWaitDelay)
		requireDead(t, readPid(t, pidFile))
	})

	t.Run("ScriptFailure", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "pid")
		result := engine.Execute(context.Background(), spawnScript(pidFile, "raise RuntimeError('boom')"))
		require.False(t, result.OK())
		assert.ErrorIs(t, result.Failure, ErrScript)
		assert.Equal(t, "boom", result.Failure.Message)
		requireDead(t, readPid(t, pidFile))
	})

	t.Run("Timeout", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "pid")
		result := engine.Execute(context.Background(), spawnScript(pidFile, "time.sleep(30)"))
		require.False(t, result.OK())
		assert.ErrorIs(t, result.Failure, ErrTimeout)
		requireDead(t, readPid(t, pidFile))
	})

	requireEmptyDir(t, dir)
}

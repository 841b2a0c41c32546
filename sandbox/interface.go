// Package sandbox provides secure script execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// Python scripts either as a plain subprocess or inside the nsjail isolation
// tool.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Config holds configuration for the execution engine
type Config struct {
	Interpreter    string
	Timeout        time.Duration
	Grace          time.Duration
	UseSandbox     bool
	SandboxBinary  string
	SandboxConfig  string
	ScriptDir      string
	JailScriptDir  string
	Workdir        string
	MaxOutputBytes int
	Env            map[string]string

	Policy         string
	MaxScriptBytes int
	DenyPatterns   []string
}

// Command describes one supervised process.
type Command struct {
	Args           []string
	Dir            string
	Env            []string
	MaxOutputBytes int
}

// Outcome is the raw capture of a supervised process.
type Outcome struct {
	ExitCode        int
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	Duration        time.Duration
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd Command) (Outcome, error)
}

// RealCommandRunner implements CommandRunner using actual exec commands.
// The child runs in its own process group. The whole group is killed when ctx
// is done and again once the leader has exited, so nothing the child started
// outlives the call.
type RealCommandRunner struct{}

// killWaitDelay bounds how long output is still drained after the group has
// been killed, in case a descendant that left the group still holds the pipes.
const killWaitDelay = 2 * time.Second

// RunCommand executes the given command. A non-zero exit status is reported
// in the Outcome, not as an error; the error is reserved for processes that
// could not be started or waited for.
func (RealCommandRunner) RunCommand(ctx context.Context, c Command) (Outcome, error) {
	if len(c.Args) < 1 {
		return Outcome{}, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec // Safe as this is controlled input
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}

	stdoutBuf := &limitedBuffer{limit: c.MaxOutputBytes}
	stderrBuf := &limitedBuffer{limit: c.MaxOutputBytes}
	stdout, err := newCapture(stdoutBuf)
	if err != nil {
		return Outcome{}, err
	}
	stderr, err := newCapture(stderrBuf)
	if err != nil {
		stdout.abort()
		return Outcome{}, err
	}
	// *os.File writers are handed to the child directly, so Wait returns as
	// soon as the leader exits instead of waiting for the pipes to close.
	cmd.Stdout = stdout.w
	cmd.Stderr = stderr.w

	start := time.Now()
	if err := cmd.Start(); err != nil {
		stdout.abort()
		stderr.abort()
		return Outcome{}, err
	}
	stdout.run()
	stderr.run()

	waitErr := cmd.Wait()
	// Descendants still in the group die with the leader; ESRCH means there
	// were none left.
	_ = killProcessGroup(cmd)

	deadline := time.Now().Add(killWaitDelay)
	stdout.finish(deadline)
	stderr.finish(deadline)

	outcome := Outcome{
		Stdout:          stdoutBuf.String(),
		Stderr:          stderrBuf.String(),
		StdoutTruncated: stdoutBuf.truncated,
		Duration:        time.Since(start),
	}

	if waitErr != nil {
		var exitError *exec.ExitError
		if !errors.As(waitErr, &exitError) {
			outcome.ExitCode = -1
			if ctx.Err() != nil {
				return outcome, nil
			}
			return outcome, waitErr
		}
		outcome.ExitCode = exitError.ExitCode()
	}

	return outcome, nil
}

// capture drains one output pipe of the child into a limitedBuffer.
type capture struct {
	r, w *os.File
	dst  *limitedBuffer
	done chan struct{}
}

func newCapture(dst *limitedBuffer) (*capture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &capture{r: r, w: w, dst: dst, done: make(chan struct{})}, nil
}

// run closes the parent's copy of the write end and starts copying.
func (c *capture) run() {
	c.w.Close()
	go func() {
		defer close(c.done)
		_, _ = io.Copy(c.dst, c.r)
	}()
}

// finish waits for the copy to reach EOF. Past deadline the read end is
// closed, which ends the copy with whatever has been read so far.
func (c *capture) finish(deadline time.Time) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
		c.r.Close()
		<-c.done
	}
	c.r.Close()
}

func (c *capture) abort() {
	c.r.Close()
	c.w.Close()
}

// limitedBuffer keeps the first limit bytes written to it and silently drops
// the rest, so a noisy child never blocks on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	Remove(path string) error
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WriteFile creates filename exclusively; an existing file is an error.
func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (RealFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission constants
const (
	DirPermission = 0o755
	// HarnessPermission leaves the harness readable by the unprivileged user
	// nsjail switches to.
	HarnessPermission = 0o644
)

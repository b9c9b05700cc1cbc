// Package execproc owns external process lifecycles: spawning the meeting
// client, bounded-wait termination, and OS-level protocol URI invocation.
package execproc

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// Process wraps one spawned client process.
type Process struct {
	cmd  *exec.Cmd
	exit chan error
}

// Start launches a client binary. The caller owns the returned process
// exclusively for its session's lifetime.
func Start(ctx context.Context, path string, args ...string) (*Process, error) {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	p := &Process{cmd: cmd, exit: make(chan error, 1)}
	go func() {
		p.exit <- cmd.Wait()
	}()
	return p, nil
}

func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Terminate sends the graceful termination signal.
func (p *Process) Terminate() error {
	return p.cmd.Process.Signal(terminateSignal())
}

// Kill forcibly ends the process.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

// Wait blocks until the process exits or the timeout elapses. A process that
// exited, even unsuccessfully, is a nil return; only "still running" is an
// error, which callers escalate to Kill.
func (p *Process) Wait(timeout time.Duration) error {
	select {
	case <-p.exit:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("process %d still running after %s", p.PID(), timeout)
	}
}

// OpenURI hands a protocol URI (e.g. a zoommtg:// join link) to the OS so
// the registered client picks it up.
func OpenURI(ctx context.Context, uri string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", uri)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", uri)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", uri)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	return nil
}

// process.go wraps the generator subprocess behind a small interface so the
// session lifecycle can be tested without a real CLI.
package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// SpawnSpec describes one generator invocation.
type SpawnSpec struct {
	Dir   string   // execution root, may be empty of files
	Argv  []string // argv[0] is looked up in PATH
	Stdin string   // optional payload written to the child's stdin
	Env   []string // extra KEY=VALUE pairs appended to the parent environment
}

// Process is a running generator. Output yields stdout and stderr merged in
// write order; it reaches EOF once every holder of the write end has exited.
type Process interface {
	Pid() int
	Output() io.ReadCloser
	Done() <-chan struct{}
	// ExitCode is -1 until Done is closed, and stays -1 when the process was
	// killed by a signal.
	ExitCode() int
	// WaitErr reports a wait failure that is not a plain nonzero exit.
	WaitErr() error
	Interrupt() error
	Kill() error
}

// Spawner starts generator processes.
type Spawner interface {
	Spawn(ctx context.Context, spec SpawnSpec) (Process, error)
}

// ExecSpawner starts real subprocesses via os/exec. Each child runs in its
// own process group so signals reach anything it forks.
type ExecSpawner struct{}

// Spawn starts the process described by spec. It does not tie the child's
// lifetime to ctx; use Terminate for that.
func (ExecSpawner) Spawn(ctx context.Context, spec SpawnSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("spawn: empty argv")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", spec.Argv[0], err)
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Argv[0], err)
	}
	// The child holds its own copy of the write end.
	_ = w.Close()

	p := &execProcess{
		cmd:      cmd,
		out:      r,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	out  *os.File
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode = 0
	case errors.As(err, &exitErr):
		p.exitCode = exitErr.ExitCode()
	default:
		p.waitErr = err
	}
	p.mu.Unlock()

	close(p.done)
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Output() io.ReadCloser { return p.out }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *execProcess) WaitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *execProcess) Interrupt() error {
	return signalGroup(p.cmd, false)
}

func (p *execProcess) Kill() error {
	return signalGroup(p.cmd, true)
}

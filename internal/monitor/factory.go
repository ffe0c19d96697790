package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/juststeveking/stagewatch/internal/clock"
)

// Process is anything whose liveness can be polled. Poll returns nil while
// the process is alive.
type Process interface {
	Poll(ctx context.Context) error
}

// CreateProcessHealthCheck returns a check that passes while p is alive
func CreateProcessHealthCheck(p Process) CheckFunc {
	return func(ctx context.Context) error {
		return p.Poll(ctx)
	}
}

// CreateURLHealthCheck returns a check that GETs url and expects 200 OK
func CreateURLHealthCheck(url string, timeout time.Duration) CheckFunc {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("expected 200, got %d", resp.StatusCode)
		}
		return nil
	}
}

// BoolCheck adapts a predicate into a CheckFunc
func BoolCheck(fn func() bool) CheckFunc {
	return func(context.Context) error {
		if !fn() {
			return ErrUnhealthy
		}
		return nil
	}
}

// WithRetry retries check up to attempts times, waiting delay on clk between
// tries. A nil clk uses the real clock.
func WithRetry(check CheckFunc, attempts int, delay time.Duration, clk clock.Clock) CheckFunc {
	if attempts <= 1 {
		return check
	}
	if clk == nil {
		clk = clock.Real()
	}
	return func(ctx context.Context) error {
		var err error
		for attempt := 0; attempt < attempts; attempt++ {
			if err = check(ctx); err == nil {
				return nil
			}
			if attempt == attempts-1 {
				break
			}
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), err)
			case <-clk.After(delay):
			}
		}
		return err
	}
}

// PIDProcess polls an operating system process by pid
type PIDProcess int

// Poll sends signal 0 to the process
func (p PIDProcess) Poll(context.Context) error {
	proc, err := os.FindProcess(int(p))
	if err != nil {
		return fmt.Errorf("process %d not found: %w", int(p), err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return fmt.Errorf("process %d not running: %w", int(p), err)
	}
	return nil
}

// CmdProcess tracks a command started by StartProcess
type CmdProcess struct {
	cmd *exec.Cmd

	mu      sync.Mutex
	exited  bool
	waitErr error
}

// StartProcess starts cmd and reaps it in the background
func StartProcess(cmd *exec.Cmd) (*CmdProcess, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	p := &CmdProcess{cmd: cmd}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exited = true
		p.waitErr = err
		p.mu.Unlock()
	}()
	return p, nil
}

// Pid returns the process id
func (p *CmdProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Poll returns an error once the command has exited
func (p *CmdProcess) Poll(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.exited {
		return nil
	}
	if p.waitErr != nil {
		return fmt.Errorf("process exited: %w", p.waitErr)
	}
	return errors.New("process exited")
}

// ContainerInspector is the subset of the Docker client used for liveness
type ContainerInspector interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
}

// NewDockerInspector connects to the Docker daemon from the environment
func NewDockerInspector() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// ContainerProcess polls a Docker container
type ContainerProcess struct {
	Client ContainerInspector
	ID     string
}

// Poll inspects the container and fails unless it is running
func (c ContainerProcess) Poll(ctx context.Context) error {
	info, err := c.Client.ContainerInspect(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to inspect container %s: %w", c.ID, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return fmt.Errorf("container %s has no state", c.ID)
	}
	if !info.State.Running {
		return fmt.Errorf("container %s is %s", c.ID, info.State.Status)
	}
	return nil
}

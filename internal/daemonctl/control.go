package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cellar/internal/apiclient"
)

// ErrDaemonNotRunning indicates the daemon API could not be reached.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop orchestration state.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `cellar daemon` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client *apiclient.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	} else if !IsUnavailable(err) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	pid, err := WaitForReady(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// WaitForReady polls the daemon status until it answers or timeout elapses.
func WaitForReady(ctx context.Context, client *apiclient.Client, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil {
			return status.PID, nil
		}
		lastErr = err
		if err := sleep(ctx, pollInterval); err != nil {
			return 0, err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return 0, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// WaitForShutdown polls until the daemon API stops answering.
func WaitForShutdown(ctx context.Context, client *apiclient.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := client.Status(ctx); err != nil && IsUnavailable(err) {
			return nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// Stop sends SIGTERM to the daemon and waits for its API to go away. When the
// grace period expires the process is killed and its pid file removed.
func Stop(ctx context.Context, client *apiclient.Client, pidPath string, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		if IsUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	pid := status.PID
	if filePID, err := ReadPID(pidPath); err == nil && filePID > 0 {
		pid = filePID
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if err := WaitForShutdown(ctx, client, gracePeriod); err == nil {
		return result, nil
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	result.ForcedKill = true
	return result, nil
}

// ReadPID parses the pid file written by the daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %q: %w", path, err)
	}
	return pid, nil
}

// IsUnavailable reports whether err means the daemon API could not be reached
// at all, as opposed to answering with an error.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

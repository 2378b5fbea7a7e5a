package grid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

// tunnelBackOff paces the checks for the tunnel's ready file.
var tunnelBackOff = func() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 60)
}

// Tunnel manages a Sauce Connect Proxy, which lets Sauce Labs browsers reach
// HTTP endpoints on the local machine.
type Tunnel struct {
	// Path is the path to the Sauce Connect Proxy binary.
	Path string
	// UserName and AccessKey are the credentials used to authenticate with
	// Sauce Labs.
	UserName, AccessKey string
	// LogFile is the location of the log file that the proxy should create.
	LogFile string
	// SeleniumPort is the port the proxy listens on for new WebDriver
	// connections.
	SeleniumPort int
	// Verbose makes the proxy log to this process's standard streams.
	Verbose bool
	// Args are additional arguments to provide to the proxy.
	Args []string

	cmd  *exec.Cmd
	dir  string
	done chan struct{}
	err  error

	killOnce sync.Once
	killErr  error
	killed   atomic.Bool
}

// Start starts the proxy and waits until it accepts connections.
func (t *Tunnel) Start(ctx context.Context) error {
	if t.cmd != nil {
		return errors.New("tunnel already started")
	}
	dir, err := os.MkdirTemp("", "selenium-sauce-connect")
	if err != nil {
		return err
	}
	t.dir = dir

	args := append([]string(nil), t.Args...)
	if t.UserName != "" {
		args = append(args, "--user", t.UserName)
	}
	if t.AccessKey != "" {
		args = append(args, "--api-key", t.AccessKey)
	}
	if t.SeleniumPort > 0 {
		args = append(args, "--se-port", strconv.Itoa(t.SeleniumPort))
	}
	if t.Verbose {
		args = append(args, "-v")
	}
	if t.LogFile != "" {
		args = append(args, "--logfile", t.LogFile)
	}
	// The proxy touches the ready file once it accepts connections.
	readyPath := filepath.Join(dir, "ready")
	args = append(args, "--readyfile", readyPath, "--pidfile", filepath.Join(dir, "pid"))

	t.cmd = newExecCommand(t.Path, args...)
	if t.Verbose {
		t.cmd.Stdout = os.Stdout
		t.cmd.Stderr = os.Stderr
	}
	t.done = make(chan struct{})
	if err := t.cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("starting Sauce Connect: %w", err)
	}
	go func() {
		t.err = t.cmd.Wait()
		os.RemoveAll(t.dir) // best effort
		close(t.done)
	}()

	ready := func() error {
		select {
		case <-t.done:
			return backoff.Permanent(fmt.Errorf("Sauce Connect exited during start-up: %v", t.err))
		default:
		}
		_, err := os.Stat(readyPath)
		return err
	}
	if err := backoff.Retry(ready, backoff.WithContext(tunnelBackOff(), ctx)); err != nil {
		t.Kill()
		return fmt.Errorf("proxy process did not become ready: %w", err)
	}
	glog.Infof("Sauce Connect ready on port %d", t.SeleniumPort)
	return nil
}

// Addr returns the URL of the WebDriver endpoint to use for driving the
// browser.
func (t *Tunnel) Addr() string {
	return fmt.Sprintf("http://%s:%s@localhost:%d/wd/hub", t.UserName, t.AccessKey, t.SeleniumPort)
}

// Kill terminates the proxy without waiting for it to exit.
func (t *Tunnel) Kill() error {
	if t.cmd == nil {
		return errors.New("tunnel not started")
	}
	t.killOnce.Do(func() {
		select {
		case <-t.done:
			return
		default:
		}
		t.killed.Store(true)
		if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			t.killErr = err
		}
	})
	return t.killErr
}

// Wait blocks until the proxy exits or ctx is done.
func (t *Tunnel) Wait(ctx context.Context) error {
	if t.cmd == nil {
		return errors.New("tunnel not started")
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.err != nil && !killedExit(t.err, t.killed.Load()) {
		return t.err
	}
	return nil
}

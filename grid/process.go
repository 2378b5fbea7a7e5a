// Package grid launches and supervises a local Selenium grid and allocates
// driver sessions from it, or from Sauce Labs.
package grid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blang/semver"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/tebeka/selenium"
)

// newExecCommand is replaced in tests.
var newExecCommand = exec.Command

// readyBackOff paces the status probes made while a process starts.
var readyBackOff = func() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 30)
}

// Role is the part a Selenium server plays in a grid.
type Role string

// Server roles.
const (
	Hub        Role = "hub"
	Node       Role = "node"
	Standalone Role = "standalone"
)

// grid4 is the first server version launched through the Grid 4 command line.
var grid4 = semver.MustParse("4.0.0")

// ProcessOption configures a Process.
type ProcessOption func(*Process) error

// Display specifies the value to which set the DISPLAY environment variable,
// as well as the path to the Xauthority file containing credentials needed to
// write to that X server.
func Display(d, xauthPath string) ProcessOption {
	return func(p *Process) error {
		if p.display != "" {
			return fmt.Errorf("process display already set: %v", p.display)
		}
		if !isDisplay(d) {
			return fmt.Errorf("supplied display %q must be of the format 'x' or 'x.y' where x and y are integers", d)
		}
		p.display = d
		p.xauthPath = xauthPath
		return nil
	}
}

// isDisplay validates that the given disp is in the format "x" or "x.y", where
// x and y are both integers.
func isDisplay(disp string) bool {
	ds := strings.Split(disp, ".")
	if len(ds) > 2 {
		return false
	}
	for _, d := range ds {
		if _, err := strconv.Atoi(d); err != nil {
			return false
		}
	}
	return true
}

// StartFrameBuffer runs the process inside a new X virtual frame buffer with
// the given screen size, or the Xvfb default if size is empty. The frame
// buffer is stopped once the process exits.
func StartFrameBuffer(size string) ProcessOption {
	return func(p *Process) error {
		if p.xvfb != nil {
			return errors.New("process Xvfb instance already running")
		}
		fb, err := selenium.NewFrameBufferWithOptions(selenium.FrameBufferOptions{ScreenSize: size})
		if err != nil {
			return fmt.Errorf("error starting frame buffer: %w", err)
		}
		if err := Display(fb.Display, fb.AuthPath)(p); err != nil {
			fb.Stop()
			return err
		}
		p.xvfb = fb
		return nil
	}
}

// Output specifies that the server should log to the provided writer.
func Output(w io.Writer) ProcessOption {
	return func(p *Process) error {
		p.output = w
		return nil
	}
}

// JavaPath specifies the path to the JRE.
func JavaPath(path string) ProcessOption {
	return func(p *Process) error {
		p.javaPath = path
		return nil
	}
}

// ClassPath adds JARs ahead of the server JAR, such as the drivers of
// browsers that run inside the node.
func ClassPath(paths ...string) ProcessOption {
	return func(p *Process) error {
		p.classPath = append(p.classPath, paths...)
		return nil
	}
}

// SystemProperty passes -Dkey=value to the JVM.
func SystemProperty(key, value string) ProcessOption {
	return func(p *Process) error {
		p.props = append(p.props, "-D"+key+"="+value)
		return nil
	}
}

// Process is a Selenium server running as a subprocess.
type Process struct {
	role    Role
	port    int
	version semver.Version
	addr    string

	cmd  *exec.Cmd
	done chan struct{}
	err  error // set before done is closed

	display, xauthPath string
	xvfb               *selenium.FrameBuffer

	javaPath  string
	classPath []string
	props     []string
	output    io.Writer

	killOnce sync.Once
	killErr  error
	killed   atomic.Bool
}

// StartHub starts a grid hub listening on port and waits until it answers
// status requests.
func StartHub(ctx context.Context, jarPath string, version semver.Version, port int, opts ...ProcessOption) (*Process, error) {
	return start(ctx, jarPath, version, Hub, port, "", opts...)
}

// StartNode starts a grid node listening on port that registers with the hub
// at hubURL.
func StartNode(ctx context.Context, jarPath string, version semver.Version, port int, hubURL string, opts ...ProcessOption) (*Process, error) {
	return start(ctx, jarPath, version, Node, port, hubURL, opts...)
}

// StartStandalone starts a server that hosts browsers without a hub.
func StartStandalone(ctx context.Context, jarPath string, version semver.Version, port int, opts ...ProcessOption) (*Process, error) {
	return start(ctx, jarPath, version, Standalone, port, "", opts...)
}

func start(ctx context.Context, jarPath string, version semver.Version, role Role, port int, hubURL string, opts ...ProcessOption) (*Process, error) {
	p := &Process{
		role:    role,
		port:    port,
		version: version,
		done:    make(chan struct{}),
	}
	p.addr = fmt.Sprintf("http://localhost:%d", port)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.stopFrameBuffer()
			return nil, err
		}
	}

	p.cmd = newExecCommand("java", p.args(jarPath, hubURL)...)
	if p.javaPath != "" {
		p.cmd.Path = p.javaPath
	}
	p.cmd.Stderr = p.output
	p.cmd.Stdout = p.output
	p.cmd.Env = append(p.cmd.Env, os.Environ()...)
	if p.display != "" {
		p.cmd.Env = append(p.cmd.Env, "DISPLAY=:"+p.display)
	}
	if p.xauthPath != "" {
		p.cmd.Env = append(p.cmd.Env, "XAUTHORITY="+p.xauthPath)
	}

	if err := p.cmd.Start(); err != nil {
		p.stopFrameBuffer()
		return nil, fmt.Errorf("starting grid %s: %w", role, err)
	}
	go p.wait()

	if err := p.awaitReady(ctx); err != nil {
		p.Kill()
		return nil, err
	}
	glog.Infof("grid %s ready at %s", role, p.addr)
	return p, nil
}

// args builds the JVM command line. Grid 3 servers are launched through
// GridLauncherV3 with a -role flag; Grid 4 servers take the role as a
// subcommand.
func (p *Process) args(jarPath, hubURL string) []string {
	args := append([]string(nil), p.props...)
	classPath := append(append([]string(nil), p.classPath...), jarPath)
	args = append(args, "-cp", strings.Join(classPath, string(os.PathListSeparator)))
	port := strconv.Itoa(p.port)

	if p.grid4() {
		args = append(args, "org.openqa.selenium.grid.Main", string(p.role), "--port", port)
		if p.role == Node {
			args = append(args, "--hub", hubURL)
		}
		return args
	}
	args = append(args, "org.openqa.grid.selenium.GridLauncherV3", "-role", string(p.role), "-port", port)
	if p.role == Node {
		args = append(args, "-hub", strings.TrimSuffix(hubURL, "/")+"/grid/register")
	}
	return args
}

func (p *Process) grid4() bool {
	return p.version.GTE(grid4)
}

func (p *Process) statusURL() string {
	if p.grid4() {
		return p.addr + "/status"
	}
	return p.addr + "/wd/hub/status"
}

func (p *Process) wait() {
	p.err = p.cmd.Wait()
	p.stopFrameBuffer()
	close(p.done)
}

func (p *Process) stopFrameBuffer() {
	if p.xvfb == nil {
		return
	}
	if err := p.xvfb.Stop(); err != nil {
		glog.Warningf("stopping frame buffer of grid %s: %v", p.role, err)
	}
}

func (p *Process) awaitReady(ctx context.Context) error {
	probe := func() error {
		select {
		case <-p.done:
			return backoff.Permanent(fmt.Errorf("grid %s exited during start-up: %v", p.role, p.err))
		default:
		}
		return checkStatus(ctx, p.statusURL())
	}
	if err := backoff.Retry(probe, backoff.WithContext(readyBackOff(), ctx)); err != nil {
		return fmt.Errorf("grid %s did not respond on port %d: %w", p.role, p.port, err)
	}
	return nil
}

// checkStatus reports whether the server at statusURL answers.
func checkStatus(ctx context.Context, statusURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", statusURL, resp.Status)
	}
	return nil
}

// Role returns the part the process plays in the grid.
func (p *Process) Role() Role { return p.role }

// Addr returns the base URL of the server.
func (p *Process) Addr() string { return p.addr }

// Kill signals the process to terminate and returns without waiting for it
// to exit. Killing an exited process is not an error.
func (p *Process) Kill() error {
	p.killOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.killed.Store(true)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = err
		}
	})
	return p.killErr
}

// Wait blocks until the process exits or ctx is done. Exiting because of Kill
// is not an error.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.err != nil && !killedExit(p.err, p.killed.Load()) {
		return p.err
	}
	return nil
}

// killedExit reports whether err is the exit of a process that died from a
// signal after Kill was issued.
func killedExit(err error, killIssued bool) bool {
	var exitErr *exec.ExitError
	if !killIssued || !errors.As(err, &exitErr) {
		return false
	}
	// ExitCode is -1 when the process was terminated by a signal.
	return exitErr.ExitCode() == -1
}

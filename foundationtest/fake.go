package foundationtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tebeka/selenium"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
)

// ErrNoAlert mimics the error a driver returns when there is no dialog to
// dismiss.
var ErrNoAlert = errors.New("no such alert")

// Driver is an in-memory selenium.WebDriver recording the calls the driver
// lifecycle makes. Methods it does not implement panic through the nil
// embedded interface.
type Driver struct {
	selenium.WebDriver

	Session string
	// Errors returned by the corresponding calls.
	TimeoutErr, GetErr, ScriptErr, AlertErr, QuitErr error
	// Screen and Source are returned by Screenshot and PageSource.
	Screen []byte
	Source string

	mu            sync.Mutex
	calls         []string
	scriptTimeout time.Duration
	implicitWait  time.Duration
	pageLoad      time.Duration
	url           string
	quits         int
}

// NewDriver returns a driver reporting session id. Stopping scripts succeeds
// and dismissing an alert fails with ErrNoAlert, as on an idle page.
func NewDriver(session string) *Driver {
	return &Driver{Session: session, AlertErr: ErrNoAlert}
}

func (d *Driver) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

// Calls returns the recorded calls in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Timeouts returns the script, implicit wait and page load timeouts set on
// the driver.
func (d *Driver) Timeouts() (script, implicit, pageLoad time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scriptTimeout, d.implicitWait, d.pageLoad
}

// QuitCount returns how many times Quit was called.
func (d *Driver) QuitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

func (d *Driver) SessionID() string { return d.Session }

func (d *Driver) SetAsyncScriptTimeout(timeout time.Duration) error {
	d.record("SetAsyncScriptTimeout")
	if d.TimeoutErr != nil {
		return d.TimeoutErr
	}
	d.mu.Lock()
	d.scriptTimeout = timeout
	d.mu.Unlock()
	return nil
}

func (d *Driver) SetImplicitWaitTimeout(timeout time.Duration) error {
	d.record("SetImplicitWaitTimeout")
	d.mu.Lock()
	d.implicitWait = timeout
	d.mu.Unlock()
	return nil
}

func (d *Driver) SetPageLoadTimeout(timeout time.Duration) error {
	d.record("SetPageLoadTimeout")
	d.mu.Lock()
	d.pageLoad = timeout
	d.mu.Unlock()
	return nil
}

func (d *Driver) Get(url string) error {
	d.record("Get " + url)
	if d.GetErr != nil {
		return d.GetErr
	}
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	d.record("ExecuteScript " + script)
	return nil, d.ScriptErr
}

func (d *Driver) DismissAlert() error {
	d.record("DismissAlert")
	return d.AlertErr
}

func (d *Driver) Screenshot() ([]byte, error) {
	d.record("Screenshot")
	return d.Screen, nil
}

func (d *Driver) PageSource() (string, error) {
	d.record("PageSource")
	return d.Source, nil
}

func (d *Driver) Quit() error {
	d.record("Quit")
	d.mu.Lock()
	d.quits++
	d.mu.Unlock()
	return d.QuitErr
}

// Provisioner hands out fresh Drivers and remembers them.
type Provisioner struct {
	// Err, if set, is returned instead of a driver.
	Err error
	// Configure, if set, is applied to each new driver before it is returned.
	Configure func(*Driver)

	mu      sync.Mutex
	drivers []*Driver
}

// ProvideDriver implements foundation.Provisioner.
func (p *Provisioner) ProvideDriver(inv *foundation.Invocation) (selenium.WebDriver, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d := NewDriver(fmt.Sprintf("%s-%d", inv.ID(), len(p.drivers)))
	if p.Configure != nil {
		p.Configure(d)
	}
	p.drivers = append(p.drivers, d)
	return d, nil
}

// Drivers returns the drivers handed out so far.
func (p *Provisioner) Drivers() []*Driver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Driver(nil), p.drivers...)
}

// Events records the order in which fake grid processes are signalled.
type Events struct {
	mu  sync.Mutex
	log []string
}

func (e *Events) add(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, ev)
}

// Log returns the recorded events.
func (e *Events) Log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// Process is a fake grid process handle. It exits when killed unless Hang is
// set.
type Process struct {
	Name    string
	KillErr error
	Hang    bool

	events *Events
	once   sync.Once
	exited chan struct{}
}

// NewProcess returns a running process that reports to events.
func NewProcess(name string, events *Events) *Process {
	return &Process{Name: name, events: events, exited: make(chan struct{})}
}

// Kill records the signal and, unless Hang or KillErr is set, lets Wait
// return.
func (p *Process) Kill() error {
	p.events.add("kill " + p.Name)
	if p.KillErr != nil {
		return p.KillErr
	}
	if !p.Hang {
		p.once.Do(func() { close(p.exited) })
	}
	return nil
}

// Wait blocks until the process has been killed or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.exited:
		p.events.add("exited " + p.Name)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Grid is a fake foundation.GridAllocator backed by a Provisioner.
type Grid struct {
	Provisioner
	// HubProcess and NodeProcess are nil when the grid was already running.
	HubProcess, NodeProcess *Process
	Events                  Events
}

// NewGrid returns a grid whose hub and node were started by this run.
func NewGrid() *Grid {
	g := &Grid{}
	g.HubProcess = NewProcess("hub", &g.Events)
	g.NodeProcess = NewProcess("node", &g.Events)
	return g
}

// Driver implements foundation.GridAllocator.
func (g *Grid) Driver(inv *foundation.Invocation) (selenium.WebDriver, error) {
	return g.ProvideDriver(inv)
}

// Hub implements foundation.GridAllocator.
func (g *Grid) Hub() foundation.ProcessHandle {
	if g.HubProcess == nil {
		return nil
	}
	return g.HubProcess
}

// Node implements foundation.GridAllocator.
func (g *Grid) Node() foundation.ProcessHandle {
	if g.NodeProcess == nil {
		return nil
	}
	return g.NodeProcess
}

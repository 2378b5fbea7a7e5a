// Package foundationtest provides fakes and a reusable suite of tests for the
// driver lifecycle of package foundation. The tests live outside the package
// so that other allocators and runner adapters can be validated with them.
package foundationtest

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/config"
)

// DefaultTargetURI is the target URI used when Config.Settings is nil.
const DefaultTargetURI = "http://foundation.test/app/"

// Config parameterizes RunLifecycleTests.
type Config struct {
	// Settings is given to every manager. If nil, config.Default() with
	// DefaultTargetURI is used.
	Settings *config.Config
	// Options are applied to every manager after the fake grid.
	Options []foundation.Option
}

func (c Config) settings() *config.Config {
	if c.Settings != nil {
		return c.Settings
	}
	s := config.Default()
	s.TargetURI = DefaultTargetURI
	return s
}

func runTest(f func(*testing.T, Config), c Config) func(*testing.T) {
	return func(t *testing.T) {
		f(t, c)
	}
}

func newManager(t *testing.T, c Config, g *Grid) *foundation.Manager {
	t.Helper()
	opts := append([]foundation.Option{foundation.WithGrid(g)}, c.Options...)
	m, err := foundation.NewManager(c.settings(), opts...)
	if err != nil {
		t.Fatalf("NewManager() returned error: %v", err)
	}
	return m
}

func invoke(name string, m *foundation.Method) *foundation.Invocation {
	return foundation.NewInvocation(name, m)
}

func beforeInvocation(t *testing.T, m *foundation.Manager, inv *foundation.Invocation) {
	t.Helper()
	if err := m.BeforeInvocation(inv); err != nil {
		t.Fatalf("BeforeInvocation(%v) returned error: %v", inv, err)
	}
}

func boundDriver(t *testing.T, m *foundation.Manager, inv *foundation.Invocation) *Driver {
	t.Helper()
	wd, ok := m.Driver(inv)
	if !ok {
		t.Fatalf("Driver(%v) = _, false, want a bound driver", inv)
	}
	d, ok := wd.(*Driver)
	if !ok {
		t.Fatalf("Driver(%v) = %T, want *foundationtest.Driver", inv, wd)
	}
	return d
}

// RunLifecycleTests exercises the gate, the teardown sequence and the suite
// shutdown hook of managers built with c.
func RunLifecycleTests(t *testing.T, c Config) {
	t.Run("DriverWithoutMarkers", runTest(testDriverWithoutMarkers, c))
	t.Run("MethodInitialPage", runTest(testMethodInitialPage, c))
	t.Run("ExistingDriverKept", runTest(testExistingDriverKept, c))
	t.Run("SkippedTeardown", runTest(testSkippedTeardown, c))
	t.Run("NoDriverWins", runTest(testNoDriverWins, c))
	t.Run("MethodPageBeatsClassPage", runTest(testMethodPageBeatsClassPage, c))
	t.Run("ClassPageFallback", runTest(testClassPageFallback, c))
	t.Run("BoundPageBeatsClassPage", runTest(testBoundPageBeatsClassPage, c))
	t.Run("ClassProvisioner", runTest(testClassProvisioner, c))
	t.Run("NonQualifyingKinds", runTest(testNonQualifyingKinds, c))
	t.Run("BeforeEachSharesDriver", runTest(testBeforeEachSharesDriver, c))
	t.Run("TerminalOutcomes", runTest(testTerminalOutcomes, c))
	t.Run("StartedOutcomeKeepsDriver", runTest(testStartedOutcomeKeepsDriver, c))
	t.Run("TeardownIdempotent", runTest(testTeardownIdempotent, c))
	t.Run("AdvisoryFailuresIgnored", runTest(testAdvisoryFailuresIgnored, c))
	t.Run("ReleaseFailure", runTest(testReleaseFailure, c))
	t.Run("ProvisionFailure", runTest(testProvisionFailure, c))
	t.Run("TimeoutFailure", runTest(testTimeoutFailure, c))
	t.Run("InitialPageFailure", runTest(testInitialPageFailure, c))
	t.Run("ParallelInvocations", runTest(testParallelInvocations, c))
	t.Run("FinishKillsNodeThenHub", runTest(testFinishKillsNodeThenHub, c))
	t.Run("FinishWithReusedGrid", runTest(testFinishWithReusedGrid, c))
}

func testDriverWithoutMarkers(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	inv := invoke("a", &foundation.Method{Name: "TestPlain"})
	beforeInvocation(t, m, inv)

	d := boundDriver(t, m, inv)
	settings := c.settings()
	script, implicit, pageLoad := d.Timeouts()
	if want := config.Script.Interval(settings); script != want {
		t.Errorf("script timeout = %v, want %v", script, want)
	}
	if want := config.Implied.Interval(settings); implicit != want {
		t.Errorf("implicit wait = %v, want %v", implicit, want)
	}
	if want := config.PageLoad.Interval(settings); pageLoad != want {
		t.Errorf("page load timeout = %v, want %v", pageLoad, want)
	}
	want := []string{"SetAsyncScriptTimeout", "SetImplicitWaitTimeout", "SetPageLoadTimeout"}
	if diff := cmp.Diff(want, d.Calls()); diff != "" {
		t.Errorf("driver calls returned diff (-want/+got):\n%s", diff)
	}
	if p, ok := m.InitialPage(inv); ok {
		t.Errorf("InitialPage() = %v, want none", p)
	}
}

func testMethodInitialPage(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	inv := invoke("b", &foundation.Method{
		Name:        "TestHome",
		InitialPage: &foundation.InitialPage{Type: Home},
	})
	beforeInvocation(t, m, inv)

	d := boundDriver(t, m, inv)
	p, ok := m.InitialPage(inv)
	if !ok {
		t.Fatalf("InitialPage() = _, false, want the Home page")
	}
	page, ok := p.(*Page)
	if !ok || page.Type != "Home" {
		t.Fatalf("InitialPage() = %#v, want a Home page", p)
	}
	target := c.settings().TargetURI
	if page.URL() != target {
		t.Errorf("page.URL() = %q, want %q", page.URL(), target)
	}
	if got, _ := d.CurrentURL(); got != target {
		t.Errorf("driver URL = %q, want %q", got, target)
	}
	if page.Driver() != d {
		t.Errorf("page.Driver() is not the bound driver")
	}
}

func testExistingDriverKept(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	inv := invoke("c", &foundation.Method{Name: "TestManual"})
	manual := NewDriver("manual")
	if err := m.SetDriver(inv, manual); err != nil {
		t.Fatalf("SetDriver() returned error: %v", err)
	}
	beforeInvocation(t, m, inv)

	if d := boundDriver(t, m, inv); d != manual {
		t.Errorf("bound driver = %q, want the manually set driver", d.Session)
	}
	if n := len(g.Drivers()); n != 0 {
		t.Errorf("grid provided %d drivers, want 0", n)
	}
	if calls := manual.Calls(); len(calls) != 0 {
		t.Errorf("manual driver calls = %v, want none", calls)
	}
	if err := m.SetDriver(inv, NewDriver("second")); err == nil {
		t.Errorf("SetDriver() over a bound driver returned nil error")
	}
}

var teardownCalls = []string{"ExecuteScript window.stop();", "DismissAlert", "Quit"}

func testSkippedTeardown(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	inv := invoke("d", &foundation.Method{Name: "TestSkipped"})
	beforeInvocation(t, m, inv)
	d := boundDriver(t, m, inv)

	if err := m.OnTestSkipped(inv); err != nil {
		t.Fatalf("OnTestSkipped() returned error: %v", err)
	}
	calls := d.Calls()
	if diff := cmp.Diff(teardownCalls, calls[len(calls)-3:]); diff != "" {
		t.Errorf("teardown calls returned diff (-want/+got):\n%s", diff)
	}
	if _, ok := m.Driver(inv); ok {
		t.Errorf("driver still bound after teardown")
	}
}

func testNoDriverWins(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	inv := invoke("e", &foundation.Method{
		Name:        "TestNoDriver",
		NoDriver:    true,
		InitialPage: &foundation.InitialPage{Type: Home},
	})
	beforeInvocation(t, m, inv)

	if _, ok := m.Driver(inv); ok {
		t.Errorf("driver bound for a NoDriver method")
	}
	if _, ok := m.InitialPage(inv); ok {
		t.Errorf("initial page bound for a NoDriver method")
	}
	if n := len(g.Drivers()); n != 0 {
		t.Errorf("grid provided %d drivers, want 0", n)
	}
	if err := m.OnTestSuccess(inv); err != nil {
		t.Errorf("OnTestSuccess() without a driver returned error: %v", err)
	}
}

func pageTypeOf(t *testing.T, m *foundation.Manager, inv *foundation.Invocation) string {
	t.Helper()
	p, ok := m.InitialPage(inv)
	if !ok {
		return ""
	}
	return p.(*Page).Type
}

func testMethodPageBeatsClassPage(t *testing.T, c Config) {
	m := newManager(t, c, NewGrid())
	class := &foundation.Class{Name: "Pages", InitialPage: &foundation.InitialPage{Type: Other}}
	inv := invoke("f", &foundation.Method{
		Name:        "TestHome",
		Class:       class,
		InitialPage: &foundation.InitialPage{Type: Home},
	})
	beforeInvocation(t, m, inv)
	if got := pageTypeOf(t, m, inv); got != "Home" {
		t.Errorf("initial page type = %q, want %q", got, "Home")
	}
}

func testClassPageFallback(t *testing.T, c Config) {
	m := newManager(t, c, NewGrid())
	class := &foundation.Class{Name: "Pages", InitialPage: &foundation.InitialPage{Type: Other}}
	inv := invoke("g", &foundation.Method{Name: "TestOther", Class: class})
	beforeInvocation(t, m, inv)
	if got := pageTypeOf(t, m, inv); got != "Other" {
		t.Errorf("initial page type = %q, want %q", got, "Other")
	}
	d := boundDriver(t, m, inv)
	want, err := resolve(c.settings().TargetURI, "other")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := d.CurrentURL(); got != want {
		t.Errorf("driver URL = %q, want %q", got, want)
	}
}

func testBoundPageBeatsClassPage(t *testing.T, c Config) {
	m := newManager(t, c, NewGrid())
	class := &foundation.Class{Name: "Pages", InitialPage: &foundation.InitialPage{Type: Other}}
	setup := &foundation.Method{Name: "SetUp", Kind: foundation.KindBeforeEach, Class: class, InitialPage: &foundation.InitialPage{Type: Search}}
	test := &foundation.Method{Name: "TestSearch", Class: class}

	inv := invoke("h", setup)
	beforeInvocation(t, m, inv)
	// The test body runs under the same invocation identity as its setup.
	testInv := foundation.NewInvocation(inv.ID(), test)
	beforeInvocation(t, m, testInv)
	if got := pageTypeOf(t, m, testInv); got != "Search" {
		t.Errorf("initial page type = %q, want %q", got, "Search")
	}
}

func testClassProvisioner(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	var own Provisioner
	class := &foundation.Class{Name: "Provided", Provisioner: &own}
	inv := invoke("i", &foundation.Method{Name: "TestProvided", Class: class})
	beforeInvocation(t, m, inv)

	d := boundDriver(t, m, inv)
	drivers := own.Drivers()
	if len(drivers) != 1 || drivers[0] != d {
		t.Errorf("class provisioner provided %d drivers, want the bound one", len(drivers))
	}
	if n := len(g.Drivers()); n != 0 {
		t.Errorf("grid provided %d drivers, want 0", n)
	}
}

func testNonQualifyingKinds(t *testing.T, c Config) {
	for _, k := range []foundation.Kind{foundation.KindAfterEach, foundation.KindBeforeClass, foundation.KindAfterClass} {
		t.Run(k.String(), func(t *testing.T) {
			g := NewGrid()
			m := newManager(t, c, g)
			inv := invoke("j", &foundation.Method{Name: "Hook", Kind: k, InitialPage: &foundation.InitialPage{Type: Home}})
			beforeInvocation(t, m, inv)
			if _, ok := m.Driver(inv); ok {
				t.Errorf("driver bound for a %v method", k)
			}
			if n := len(g.Drivers()); n != 0 {
				t.Errorf("grid provided %d drivers, want 0", n)
			}
		})
	}
}

func testBeforeEachSharesDriver(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	setup := invoke("k", &foundation.Method{Name: "SetUp", Kind: foundation.KindBeforeEach})
	beforeInvocation(t, m, setup)
	first := boundDriver(t, m, setup)

	test := foundation.NewInvocation(setup.ID(), &foundation.Method{Name: "TestShared"})
	beforeInvocation(t, m, test)
	if d := boundDriver(t, m, test); d != first {
		t.Errorf("test bound driver %q, want the setup driver %q", d.Session, first.Session)
	}
	if n := len(g.Drivers()); n != 1 {
		t.Errorf("grid provided %d drivers, want 1", n)
	}
}

func testTerminalOutcomes(t *testing.T, c Config) {
	for _, o := range []foundation.Outcome{foundation.Success, foundation.Failure, foundation.FailedWithinSuccessPercentage, foundation.Skipped} {
		t.Run(o.String(), func(t *testing.T) {
			m := newManager(t, c, NewGrid())
			inv := invoke("l", &foundation.Method{Name: "TestOutcome"})
			beforeInvocation(t, m, inv)
			d := boundDriver(t, m, inv)
			if err := m.Complete(inv, o); err != nil {
				t.Fatalf("Complete(%v) returned error: %v", o, err)
			}
			if n := d.QuitCount(); n != 1 {
				t.Errorf("Quit called %d times, want 1", n)
			}
			if n := m.Store().Len(); n != 0 {
				t.Errorf("store holds %d invocations after teardown, want 0", n)
			}
		})
	}
}

func testStartedOutcomeKeepsDriver(t *testing.T, c Config) {
	m := newManager(t, c, NewGrid())
	inv := invoke("m", &foundation.Method{Name: "TestStarted"})
	beforeInvocation(t, m, inv)
	d := boundDriver(t, m, inv)
	if err := m.Complete(inv, foundation.Started); err != nil {
		t.Fatalf("Complete(Started) returned error: %v", err)
	}
	if n := d.QuitCount(); n != 0 {
		t.Errorf("Quit called %d times on start, want 0", n)
	}
	boundDriver(t, m, inv)
}

func testTeardownIdempotent(t *testing.T, c Config) {
	m := newManager(t, c, NewGrid())
	empty := invoke("n-empty", nil)
	if err := m.OnTestFailure(empty); err != nil {
		t.Errorf("teardown without a driver returned error: %v", err)
	}

	inv := invoke("n", &foundation.Method{Name: "TestTwice"})
	beforeInvocation(t, m, inv)
	d := boundDriver(t, m, inv)
	for i := 0; i < 2; i++ {
		if err := m.OnTestSuccess(inv); err != nil {
			t.Fatalf("OnTestSuccess() call %d returned error: %v", i, err)
		}
	}
	if n := d.QuitCount(); n != 1 {
		t.Errorf("Quit called %d times, want 1", n)
	}
}

func testAdvisoryFailuresIgnored(t *testing.T, c Config) {
	g := NewGrid()
	g.Configure = func(d *Driver) {
		d.ScriptErr = errors.New("javascript error")
		d.AlertErr = ErrNoAlert
	}
	m := newManager(t, c, g)
	inv := invoke("o", &foundation.Method{Name: "TestAdvisory"})
	beforeInvocation(t, m, inv)
	d := boundDriver(t, m, inv)

	if err := m.OnTestFailure(inv); err != nil {
		t.Fatalf("OnTestFailure() returned error: %v", err)
	}
	if n := d.QuitCount(); n != 1 {
		t.Errorf("Quit called %d times, want 1", n)
	}
}

func testReleaseFailure(t *testing.T, c Config) {
	g := NewGrid()
	quitErr := errors.New("session not found")
	g.Configure = func(d *Driver) { d.QuitErr = quitErr }
	m := newManager(t, c, g)
	inv := invoke("p", &foundation.Method{Name: "TestRelease"})
	beforeInvocation(t, m, inv)
	d := boundDriver(t, m, inv)

	err := m.OnTestSuccess(inv)
	var relErr *foundation.ReleaseError
	if !errors.As(err, &relErr) {
		t.Fatalf("OnTestSuccess() returned %v, want a *ReleaseError", err)
	}
	if relErr.Session != d.Session || !errors.Is(err, quitErr) {
		t.Errorf("ReleaseError = %+v, want session %q wrapping %v", relErr, d.Session, quitErr)
	}
	if err := m.OnTestSuccess(inv); err != nil {
		t.Errorf("second OnTestSuccess() returned error: %v", err)
	}
}

func wantSetupError(t *testing.T, err error, step foundation.SetupStep, cause error) {
	t.Helper()
	var setupErr *foundation.SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("BeforeInvocation() returned %v, want a *SetupError", err)
	}
	if setupErr.Step != step {
		t.Errorf("SetupError.Step = %q, want %q", setupErr.Step, step)
	}
	if cause != nil && !errors.Is(err, cause) {
		t.Errorf("BeforeInvocation() error %v does not wrap %v", err, cause)
	}
}

func testProvisionFailure(t *testing.T, c Config) {
	g := NewGrid()
	g.Err = errors.New("no free slots")
	m := newManager(t, c, g)
	inv := invoke("q", &foundation.Method{Name: "TestNoSlots"})
	wantSetupError(t, m.BeforeInvocation(inv), foundation.StepProvision, g.Err)
	if _, ok := m.Driver(inv); ok {
		t.Errorf("driver bound after a provisioning failure")
	}
}

func testTimeoutFailure(t *testing.T, c Config) {
	g := NewGrid()
	timeoutErr := errors.New("invalid argument")
	g.Configure = func(d *Driver) { d.TimeoutErr = timeoutErr }
	m := newManager(t, c, g)
	inv := invoke("r", &foundation.Method{Name: "TestTimeouts"})
	wantSetupError(t, m.BeforeInvocation(inv), foundation.StepTimeouts, timeoutErr)
	if _, ok := m.Driver(inv); ok {
		t.Errorf("driver bound after a timeout failure")
	}
	drivers := g.Drivers()
	if len(drivers) != 1 || drivers[0].QuitCount() != 1 {
		t.Errorf("unbound driver was not quit")
	}
}

func testInitialPageFailure(t *testing.T, c Config) {
	g := NewGrid()
	getErr := errors.New("net::ERR_CONNECTION_REFUSED")
	g.Configure = func(d *Driver) { d.GetErr = getErr }
	m := newManager(t, c, g)
	inv := invoke("s", &foundation.Method{Name: "TestUnreachable", InitialPage: &foundation.InitialPage{Type: Home}})
	wantSetupError(t, m.BeforeInvocation(inv), foundation.StepInitialPage, getErr)

	d := boundDriver(t, m, inv)
	if err := m.OnTestFailure(inv); err != nil {
		t.Fatalf("OnTestFailure() returned error: %v", err)
	}
	if n := d.QuitCount(); n != 1 {
		t.Errorf("Quit called %d times, want 1", n)
	}

	noType := invoke("s-none", &foundation.Method{Name: "TestNoType", InitialPage: &foundation.InitialPage{Path: "x"}})
	wantSetupError(t, m.BeforeInvocation(noType), foundation.StepInitialPage, foundation.ErrNoPageType)
	if err := m.OnTestFailure(noType); err != nil {
		t.Errorf("OnTestFailure() returned error: %v", err)
	}
}

func testParallelInvocations(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	const n = 16
	drivers := make([]*Driver, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv := invoke(fmt.Sprintf("par-%d", i), &foundation.Method{Name: "TestParallel", InitialPage: &foundation.InitialPage{Type: Home}})
			if err := m.BeforeInvocation(inv); err != nil {
				t.Errorf("BeforeInvocation(%v) returned error: %v", inv, err)
				return
			}
			wd, _ := m.Driver(inv)
			drivers[i], _ = wd.(*Driver)
			if err := m.OnTestSuccess(inv); err != nil {
				t.Errorf("OnTestSuccess(%v) returned error: %v", inv, err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[*Driver]bool)
	for i, d := range drivers {
		if d == nil {
			t.Fatalf("invocation %d had no driver", i)
		}
		if seen[d] {
			t.Errorf("driver %q bound to two invocations", d.Session)
		}
		seen[d] = true
		if q := d.QuitCount(); q != 1 {
			t.Errorf("driver %q quit %d times, want 1", d.Session, q)
		}
	}
	if l := m.Store().Len(); l != 0 {
		t.Errorf("store holds %d invocations, want 0", l)
	}
}

func testFinishKillsNodeThenHub(t *testing.T, c Config) {
	g := NewGrid()
	m := newManager(t, c, g)
	if err := m.OnFinish(); err != nil {
		t.Fatalf("OnFinish() returned error: %v", err)
	}
	got := g.Events.Log()
	if len(got) < 2 || got[0] != "kill node" || got[1] != "kill hub" {
		t.Errorf("grid events = %v, want node killed before hub", got)
	}
}

func testFinishWithReusedGrid(t *testing.T, c Config) {
	g := NewGrid()
	g.HubProcess, g.NodeProcess = nil, nil
	m := newManager(t, c, g)
	if err := m.OnFinish(); err != nil {
		t.Fatalf("OnFinish() returned error: %v", err)
	}
	if got := g.Events.Log(); len(got) != 0 {
		t.Errorf("grid events = %v, want none", got)
	}
}

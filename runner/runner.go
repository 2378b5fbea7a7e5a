// Package runner drives a foundation.Manager from plain Go tests.
//
// Each call to Run is one invocation: its before-each hooks and the test body
// share the invocation's driver, and the driver is released in a cleanup
// function once the test's outcome is known.
//
//	func TestLogin(t *testing.T) {
//		runner.Run(t, mgr, loginTest, func(s *runner.Session) {
//			page := s.InitialPage().(*LoginPage)
//			...
//		})
//	}
package runner

import (
	"fmt"
	"os"
	"testing"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/tebeka/selenium"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/browser"
	"github.com/ibrahimuye/Selenium-Foundation/config"
	"github.com/ibrahimuye/Selenium-Foundation/grid"
)

// Session is the view of an invocation available to hooks and test bodies.
type Session struct {
	T   testing.TB
	mgr *foundation.Manager
	inv *foundation.Invocation
}

// Invocation returns the invocation the session belongs to.
func (s *Session) Invocation() *foundation.Invocation { return s.inv }

// Driver returns the bound driver, or nil for NoDriver methods.
func (s *Session) Driver() selenium.WebDriver {
	wd, _ := s.mgr.Driver(s.inv)
	return wd
}

// InitialPage returns the bound initial page, or nil.
func (s *Session) InitialPage() foundation.Page {
	p, _ := s.mgr.InitialPage(s.inv)
	return p
}

// SetDriver binds a driver created by the test itself. It is released with
// the invocation like any other.
func (s *Session) SetDriver(wd selenium.WebDriver) error {
	return s.mgr.SetDriver(s.inv, wd)
}

// Hook runs around the test body under the test's invocation.
type Hook struct {
	// Method describes the before-each method. If nil, Before runs without
	// passing through the lifecycle gate.
	Method *foundation.Method
	Before func(*Session) error
	// After runs once the outcome is known, before the driver is released.
	After func(*Session, foundation.Outcome)
}

// BeforeEach returns a hook that prepares a driver and initial page for fn
// as for a before-each method.
func BeforeEach(name string, fn func(*Session) error) Hook {
	return Hook{
		Method: &foundation.Method{Name: name, Kind: foundation.KindBeforeEach},
		Before: fn,
	}
}

// Run executes body as an invocation of m.
func Run(t *testing.T, mgr *foundation.Manager, m *foundation.Method, body func(*Session), hooks ...Hook) {
	t.Helper()
	s := Start(t, mgr, m)
	t.Cleanup(func() {
		if err := s.Finish(OutcomeOf(t), hooks...); err != nil {
			t.Errorf("teardown: %v", err)
		}
	})
	if err := s.Prepare(hooks...); err != nil {
		t.Fatalf("setup: %v", err)
	}
	body(s)
}

// Start begins a new invocation of m on behalf of tb. Runner adapters that
// cannot use Run call Start, Prepare and Finish themselves.
func Start(tb testing.TB, mgr *foundation.Manager, m *foundation.Method) *Session {
	inv := foundation.NewInvocation(uuid.NewString(), m)
	mgr.OnTestStart(inv)
	return &Session{T: tb, mgr: mgr, inv: inv}
}

// Prepare runs the before-each hooks and then prepares the invocation itself.
func (s *Session) Prepare(hooks ...Hook) error {
	m := s.inv.Method()
	for _, h := range hooks {
		if h.Before == nil {
			continue
		}
		hs := s
		if h.Method != nil {
			hm := *h.Method
			if hm.Class == nil {
				hm.Class = m.Class
			}
			hs = &Session{T: s.T, mgr: s.mgr, inv: foundation.NewInvocation(s.inv.ID(), &hm)}
			if err := s.mgr.BeforeInvocation(hs.inv); err != nil {
				return err
			}
		}
		if err := h.Before(hs); err != nil {
			return fmt.Errorf("%s: %w", hookName(h), err)
		}
	}
	return s.mgr.BeforeInvocation(s.inv)
}

func hookName(h Hook) string {
	if h.Method == nil {
		return "hook"
	}
	return h.Method.Name
}

// Finish runs the after hooks and completes the invocation with outcome o.
func (s *Session) Finish(o foundation.Outcome, hooks ...Hook) error {
	for _, h := range hooks {
		if h.After != nil {
			h.After(s, o)
		}
	}
	return s.mgr.Complete(s.inv, o)
}

// Result is the part of testing.TB that decides an outcome.
type Result interface {
	Failed() bool
	Skipped() bool
}

// OutcomeOf maps a finished test to its outcome. A test that failed and was
// then skipped counts as skipped, as the testing package reports it.
func OutcomeOf(r Result) foundation.Outcome {
	switch {
	case r.Skipped():
		return foundation.Skipped
	case r.Failed():
		return foundation.Failure
	}
	return foundation.Success
}

// NewManager returns a manager allocating sessions of the configured browser
// from Sauce Labs, if enabled, or else from the configured grid.
func NewManager(cfg *config.Config, opts ...foundation.Option) (*foundation.Manager, error) {
	plugin, err := browser.ForConfig(cfg.Browser)
	if err != nil {
		return nil, err
	}
	var g foundation.GridAllocator
	if cfg.Sauce.Enabled {
		g = grid.NewSauce(cfg.Sauce, plugin)
	} else {
		local, err := grid.New(cfg, plugin)
		if err != nil {
			return nil, err
		}
		g = local
	}
	return foundation.NewManager(cfg, append([]foundation.Option{foundation.WithGrid(g)}, opts...)...)
}

// Main runs the tests and then the suite shutdown hook, and exits. Call it
// from TestMain.
func Main(m *testing.M, mgr *foundation.Manager) {
	os.Exit(run(m, mgr))
}

func run(m interface{ Run() int }, mgr *foundation.Manager) int {
	mgr.OnStart()
	code := m.Run()
	if err := mgr.OnFinish(); err != nil {
		glog.Errorf("suite shutdown: %v", err)
		if code == 0 {
			code = 1
		}
	}
	glog.Flush()
	return code
}

package foundation

import (
	"time"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"

	"github.com/ibrahimuye/Selenium-Foundation/config"
)

// BeforeInvocation prepares inv to run. For test and before-each methods it
// binds a driver unless one is already bound or the method is marked
// NoDriver, then opens the method's (or failing that, the class's) initial
// page. Other kinds of method are left alone.
//
// Failures are reported as *SetupError. A driver that was bound before the
// failure stays bound and is released by the outcome callback.
func (m *Manager) BeforeInvocation(inv *Invocation) error {
	mustValidate(inv)
	meth := inv.Method()
	if !meth.Kind.qualifies() {
		return nil
	}

	wd, ok := m.store.Driver(inv)
	if !ok && !meth.NoDriver {
		var err error
		if wd, err = m.provide(inv); err != nil {
			return err
		}
	}
	if wd == nil {
		return nil
	}

	ip := meth.InitialPage
	if ip == nil {
		if _, bound := m.store.Get(inv, InitialPageKey); !bound {
			ip = meth.classInitialPage()
		}
	}
	if ip == nil {
		return nil
	}
	page, err := OpenInitialPage(ip, wd, m.cfg.TargetURI)
	if err != nil {
		return m.setupFailed(StepInitialPage, inv, err)
	}
	m.store.SetInitialPage(inv, page)
	m.metrics.recordInitialPage(ip.String())
	glog.V(1).Infof("%v: opened initial page %v", inv, ip)
	return nil
}

// provide obtains a driver for inv, applies the configured timeouts and binds
// it.
func (m *Manager) provide(inv *Invocation) (selenium.WebDriver, error) {
	var (
		wd     selenium.WebDriver
		err    error
		source string
	)
	start := time.Now()
	if p := inv.Method().provisioner(); p != nil {
		source = "provisioner"
		wd, err = p.ProvideDriver(inv)
	} else if m.grid != nil {
		source = "grid"
		wd, err = m.grid.Driver(inv)
	} else {
		err = ErrNoAllocator
	}
	if err == nil && wd == nil {
		err = ErrNilDriver
	}
	if err != nil {
		return nil, m.setupFailed(StepProvision, inv, err)
	}
	took := time.Since(start)

	if err := applyTimeouts(wd, m.cfg); err != nil {
		// Not bound yet, so teardown would never see it.
		if qerr := wd.Quit(); qerr != nil {
			glog.Warningf("%v: quitting driver after timeout failure: %v", inv, qerr)
		}
		return nil, m.setupFailed(StepTimeouts, inv, err)
	}

	if !m.store.SetDriver(inv, wd) {
		// Someone else bound a driver while this one was being created; keep
		// theirs.
		if qerr := wd.Quit(); qerr != nil {
			glog.Warningf("%v: quitting surplus driver: %v", inv, qerr)
		}
		bound, _ := m.store.Driver(inv)
		return bound, nil
	}
	m.bound(inv, source, took)
	glog.V(1).Infof("%v: bound driver from %s in %v", inv, source, took)
	return wd, nil
}

// applyTimeouts sets the script, implicit wait and page load timeouts, in
// that order.
func applyTimeouts(wd selenium.WebDriver, cfg *config.Config) error {
	if err := wd.SetAsyncScriptTimeout(config.Script.Interval(cfg)); err != nil {
		return err
	}
	if err := wd.SetImplicitWaitTimeout(config.Implied.Interval(cfg)); err != nil {
		return err
	}
	return wd.SetPageLoadTimeout(config.PageLoad.Interval(cfg))
}

func (m *Manager) setupFailed(step SetupStep, inv *Invocation, err error) error {
	m.metrics.recordSetupFailure(step)
	return &SetupError{Step: step, Method: inv.Method().ID(), Err: err}
}

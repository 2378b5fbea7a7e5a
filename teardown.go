package foundation

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"
)

// stopScript halts page loads and pending scripts in the current window.
const stopScript = "window.stop();"

// AdvisoryResult is the outcome of a best-effort cleanup step. Failures are
// expected (there is usually no script running and no dialog open) and are
// never reported to the test.
type AdvisoryResult struct {
	Step string
	Err  error
}

// OK reports whether the step succeeded.
func (r AdvisoryResult) OK() bool { return r.Err == nil }

func stopScripts(wd selenium.WebDriver) AdvisoryResult {
	_, err := wd.ExecuteScript(stopScript, nil)
	return AdvisoryResult{Step: "stop scripts", Err: err}
}

func dismissAlert(wd selenium.WebDriver) AdvisoryResult {
	return AdvisoryResult{Step: "dismiss alert", Err: wd.DismissAlert()}
}

// closeDriver releases the driver bound to inv, if any, and discards the
// invocation's attributes. Only the final Quit can fail the call.
func (m *Manager) closeDriver(inv *Invocation, o Outcome) error {
	mustValidate(inv)
	defer m.store.Discard(inv)
	_, counted := m.counted.Pop(inv.id)

	v, ok := m.store.Take(inv, DriverKey)
	if !ok {
		return nil
	}
	wd, ok := v.(selenium.WebDriver)
	if !ok {
		return fmt.Errorf("%v: %s attribute holds %T, not a driver", inv, DriverKey, v)
	}

	for _, r := range []AdvisoryResult{stopScripts(wd), dismissAlert(wd)} {
		m.metrics.recordAdvisory(r)
		if !r.OK() {
			glog.V(2).Infof("%v: %s: %v", inv, r.Step, r.Err)
		}
	}

	session := wd.SessionID()
	if err := wd.Quit(); err != nil {
		m.metrics.recordTeardown(o, false, counted)
		return &ReleaseError{Method: inv.Method().ID(), Session: session, Err: err}
	}
	m.metrics.recordTeardown(o, true, counted)
	glog.V(1).Infof("%v: released session %q after %v", inv, session, o)
	return nil
}

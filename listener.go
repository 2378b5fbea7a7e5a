package foundation

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Outcome is the terminal state of an invocation, or Started for one that
// has begun running.
type Outcome int

// Invocation outcomes.
const (
	Started Outcome = iota
	Success
	Failure
	FailedWithinSuccessPercentage
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case FailedWithinSuccessPercentage:
		return "failed within success percentage"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Terminal reports whether o ends an invocation.
func (o Outcome) Terminal() bool {
	switch o {
	case Success, Failure, FailedWithinSuccessPercentage, Skipped:
		return true
	}
	return false
}

// Complete dispatches o to the matching outcome callback. A *ReleaseError is
// returned if the invocation's driver could not be quit; the caller reports
// it alongside, not instead of, the test's own result.
func (m *Manager) Complete(inv *Invocation, o Outcome) error {
	switch o {
	case Started:
		m.OnTestStart(inv)
		return nil
	case Success:
		return m.OnTestSuccess(inv)
	case Failure:
		return m.OnTestFailure(inv)
	case FailedWithinSuccessPercentage:
		return m.OnTestFailedButWithinSuccessPercentage(inv)
	case Skipped:
		return m.OnTestSkipped(inv)
	}
	return fmt.Errorf("unknown outcome %v", o)
}

// OnStart is called before any invocation of the suite runs.
func (m *Manager) OnStart() {}

// OnTestStart is called when inv starts running. Drivers are released only
// once an outcome is known, so it does nothing.
func (m *Manager) OnTestStart(inv *Invocation) {}

// OnTestSuccess releases the driver of a passed invocation.
func (m *Manager) OnTestSuccess(inv *Invocation) error {
	return m.closeDriver(inv, Success)
}

// OnTestFailure releases the driver of a failed invocation.
func (m *Manager) OnTestFailure(inv *Invocation) error {
	return m.closeDriver(inv, Failure)
}

// OnTestFailedButWithinSuccessPercentage releases the driver of an
// invocation that failed within its tolerated failure rate.
func (m *Manager) OnTestFailedButWithinSuccessPercentage(inv *Invocation) error {
	return m.closeDriver(inv, FailedWithinSuccessPercentage)
}

// OnTestSkipped releases the driver of a skipped invocation.
func (m *Manager) OnTestSkipped(inv *Invocation) error {
	return m.closeDriver(inv, Skipped)
}

// OnFinish kills the grid node and then the hub if this run started them.
// Unless a shutdown timeout is configured it returns as soon as the kill
// signals are sent; with one, it waits up to the timeout for both processes
// to exit.
func (m *Manager) OnFinish() error {
	if m.grid == nil {
		return nil
	}
	procs := []struct {
		role string
		h    ProcessHandle
	}{
		{"node", m.grid.Node()},
		{"hub", m.grid.Hub()},
	}

	var errs []error
	var killed []ProcessHandle
	for _, p := range procs {
		if p.h == nil {
			continue
		}
		if err := p.h.Kill(); err != nil {
			glog.Warningf("killing grid %s: %v", p.role, err)
			errs = append(errs, fmt.Errorf("killing grid %s: %w", p.role, err))
			continue
		}
		glog.Infof("killed grid %s", p.role)
		killed = append(killed, p.h)
	}

	if m.shutdownTimeout > 0 && len(killed) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		defer cancel()
		for _, h := range killed {
			if err := h.Wait(ctx); err != nil {
				errs = append(errs, fmt.Errorf("waiting for grid process: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

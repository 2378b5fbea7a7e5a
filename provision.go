package foundation

import (
	"context"

	"github.com/tebeka/selenium"
)

// Provisioner supplies a ready, navigable driver for an invocation.
type Provisioner interface {
	ProvideDriver(inv *Invocation) (selenium.WebDriver, error)
}

// ProvisionerFunc adapts a function to the Provisioner interface.
type ProvisionerFunc func(inv *Invocation) (selenium.WebDriver, error)

// ProvideDriver calls f(inv).
func (f ProvisionerFunc) ProvideDriver(inv *Invocation) (selenium.WebDriver, error) {
	return f(inv)
}

// ProcessHandle controls a grid process started by this run.
type ProcessHandle interface {
	// Kill signals the process to terminate and returns without waiting.
	Kill() error
	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) error
}

// GridAllocator is the shared driver source used when a class has no
// provisioner of its own.
type GridAllocator interface {
	// Driver opens a new session for inv.
	Driver(inv *Invocation) (selenium.WebDriver, error)
	// Hub and Node return the grid processes started by this run, or nil if
	// the run did not start them.
	Hub() ProcessHandle
	Node() ProcessHandle
}

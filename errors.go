package foundation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAllocator is returned when a driver is required, the class has no
	// provisioner and no grid allocator was configured.
	ErrNoAllocator = errors.New("no grid allocator configured")
	// ErrNoPageType is returned for an initial page marker without a page
	// type.
	ErrNoPageType = errors.New("initial page has no page type")
	// ErrNotRegistered is returned when a required method descriptor is not
	// in the registry.
	ErrNotRegistered = errors.New("method not registered")
	// ErrNilDriver is returned when a provisioner reports success without a
	// driver.
	ErrNilDriver = errors.New("provisioner returned a nil driver")
)

// SetupStep identifies the part of BeforeInvocation that failed.
type SetupStep string

// The steps of BeforeInvocation.
const (
	StepProvision   SetupStep = "provision driver"
	StepTimeouts    SetupStep = "configure timeouts"
	StepInitialPage SetupStep = "open initial page"
)

// SetupError reports a failure to prepare an invocation before its body ran.
type SetupError struct {
	Step   SetupStep
	Method string
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Method, e.Step, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ReleaseError reports that a driver session could not be quit.
type ReleaseError struct {
	Method  string
	Session string
	Err     error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("%s: quitting session %q: %v", e.Method, e.Session, e.Err)
}

func (e *ReleaseError) Unwrap() error { return e.Err }

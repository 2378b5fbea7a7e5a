// Package testsuite binds the driver lifecycle to testify suites.
//
// Embed Suite in a suite struct and run it with Run. Every test method gets
// its own invocation. Markers are looked up in the registry under
// "<suite type>.<method>"; unregistered methods get a driver and the class's
// initial page. Class-level markers come from the suite itself: see
// PageDeclarer and foundation.Provisioner.
//
//	type CheckoutSuite struct {
//		testsuite.Suite
//	}
//
//	func (s *CheckoutSuite) TestPay() {
//		page := s.InitialPage().(*CartPage)
//		...
//	}
//
//	func TestCheckout(t *testing.T) {
//		testsuite.Run(t, mgr, registry, &CheckoutSuite{})
//	}
package testsuite

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/tebeka/selenium"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/runner"
)

// Suite is embedded by testify suites whose tests drive a browser.
type Suite struct {
	suite.Suite

	// Manager, Registry and Class are set by Run.
	Manager  *foundation.Manager
	Registry *foundation.Registry
	Class    *foundation.Class
	// Hooks run around every test method.
	Hooks []runner.Hook

	session *runner.Session
}

// Binder is implemented by suites embedding Suite.
type Binder interface {
	suite.TestingSuite
	bind(mgr *foundation.Manager, reg *foundation.Registry, class *foundation.Class)
}

func (s *Suite) bind(mgr *foundation.Manager, reg *foundation.Registry, class *foundation.Class) {
	s.Manager, s.Registry, s.Class = mgr, reg, class
}

// PageDeclarer is implemented by suites whose test methods share an initial
// page.
type PageDeclarer interface {
	ClassInitialPage() *foundation.InitialPage
}

// Run runs the suite's test methods sequentially, each as its own
// invocation. If the suite implements foundation.Provisioner it supplies the
// drivers for its methods.
func Run(t *testing.T, mgr *foundation.Manager, reg *foundation.Registry, s Binder) {
	t.Helper()
	if reg == nil {
		reg = foundation.NewRegistry()
	}
	class := &foundation.Class{Name: reflect.Indirect(reflect.ValueOf(s)).Type().Name()}
	if p, ok := s.(foundation.Provisioner); ok {
		class.Provisioner = p
	}
	if d, ok := s.(PageDeclarer); ok {
		class.InitialPage = d.ClassInitialPage()
	}
	s.bind(mgr, reg, class)
	suite.Run(t, s)
}

// BeforeTest starts the invocation of the named test method and prepares its
// driver. A preparation failure fails the test before its body runs.
func (s *Suite) BeforeTest(suiteName, testName string) {
	m := *s.Registry.Resolve(s.Class, testName)
	m.Class = s.Class
	s.session = runner.Start(s.T(), s.Manager, &m)
	s.Require().NoError(s.session.Prepare(s.Hooks...), "setup")
}

// AfterTest releases the test method's driver according to its outcome.
func (s *Suite) AfterTest(suiteName, testName string) {
	if s.session == nil {
		return
	}
	sess := s.session
	s.session = nil
	if err := sess.Finish(runner.OutcomeOf(s.T()), s.Hooks...); err != nil {
		s.T().Errorf("teardown: %v", err)
	}
}

// Session returns the running test method's session.
func (s *Suite) Session() *runner.Session { return s.session }

// Driver returns the running test method's driver, or nil.
func (s *Suite) Driver() selenium.WebDriver {
	if s.session == nil {
		return nil
	}
	return s.session.Driver()
}

// InitialPage returns the running test method's initial page, or nil.
func (s *Suite) InitialPage() foundation.Page {
	if s.session == nil {
		return nil
	}
	return s.session.InitialPage()
}

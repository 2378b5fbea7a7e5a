/*
Package foundation binds Selenium WebDriver sessions to the invocations of a
test run.

A Manager sits between the test runner and the driver sources. Before each
test or before-each method runs, BeforeInvocation makes sure a driver is bound
to the invocation, either from the method's class provisioner or from the
shared grid allocator, applies the configured script, implicit wait and page
load timeouts and opens the initial page named by the method or its class.
Once the outcome of the invocation is known, the matching outcome callback
stops pending scripts, dismisses any open alert and quits the driver. Only the
final quit can fail the callback. At the end of the suite, OnFinish kills the
grid node and hub if this run started them.

Methods are described up front rather than discovered by reflection:

	class := &foundation.Class{
		Name:        "LoginSuite",
		InitialPage: &foundation.InitialPage{Type: loginPage},
	}
	reg := foundation.NewRegistry()
	reg.Register(
		&foundation.Method{Name: "TestLogin", Class: class},
		&foundation.Method{Name: "TestStatus", Class: class, NoDriver: true},
	)

Package runner drives a Manager from plain Go tests and package testsuite
from testify suites. Package grid provides the local and Sauce Labs
allocators.
*/
package foundation

package foundation_test

import (
	"fmt"

	"github.com/tebeka/selenium"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/config"
	"github.com/ibrahimuye/Selenium-Foundation/foundationtest"
)

// This example shows how a runner adapter prepares an invocation, lets the
// test body use the bound driver, and releases the driver once the test has
// passed.
//
// The class provisioner here connects to a Selenium server that is already
// running. If you want to actually run this example:
//
//  1. Start a Selenium server listening on port 4444.
//  2. Add an "Output:" comment at the bottom of the function.
//  3. Run:
//     go test -test.run=Example$ github.com/ibrahimuye/Selenium-Foundation
func Example() {
	cfg := config.Default()
	cfg.TargetURI = "https://go.dev/"
	mgr, err := foundation.NewManager(cfg)
	if err != nil {
		panic(err) // panic is used only as an example and is not otherwise recommended.
	}

	home := &foundation.PageType{
		Name: "Home",
		New:  func(b *foundation.BasePage) foundation.Page { return b },
	}
	class := &foundation.Class{
		Name:        "DocsSuite",
		InitialPage: &foundation.InitialPage{Type: home},
		Provisioner: foundation.ProvisionerFunc(func(*foundation.Invocation) (selenium.WebDriver, error) {
			return selenium.NewRemote(selenium.Capabilities{"browserName": "firefox"}, "http://localhost:4444/wd/hub")
		}),
	}
	inv := foundation.NewInvocation("1", &foundation.Method{Name: "TestTitle", Class: class})

	if err := mgr.BeforeInvocation(inv); err != nil {
		panic(err)
	}
	wd, _ := mgr.Driver(inv)
	title, err := wd.Title()
	if err != nil {
		panic(err)
	}
	fmt.Println(title)

	if err := mgr.OnTestSuccess(inv); err != nil {
		panic(err)
	}
}

func ExampleManager_BeforeInvocation() {
	cfg := config.Default()
	cfg.TargetURI = "http://foundation.test/app/"
	mgr, err := foundation.NewManager(cfg, foundation.WithGrid(foundationtest.NewGrid()))
	if err != nil {
		panic(err)
	}

	inv := foundation.NewInvocation("1", &foundation.Method{
		Name:        "TestSearch",
		InitialPage: &foundation.InitialPage{Type: foundationtest.Search},
	})
	if err := mgr.BeforeInvocation(inv); err != nil {
		panic(err)
	}
	page, _ := mgr.InitialPage(inv)
	fmt.Println(page.(*foundationtest.Page).URL())

	wd, _ := mgr.Driver(inv)
	if err := mgr.OnTestFailure(inv); err != nil {
		panic(err)
	}
	for _, call := range wd.(*foundationtest.Driver).Calls() {
		fmt.Println(call)
	}
	// Output:
	// http://foundation.test/app/search
	// SetAsyncScriptTimeout
	// SetImplicitWaitTimeout
	// SetPageLoadTimeout
	// Get http://foundation.test/app/search
	// ExecuteScript window.stop();
	// DismissAlert
	// Quit
}

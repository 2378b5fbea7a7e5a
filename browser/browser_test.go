package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"

	"github.com/ibrahimuye/Selenium-Foundation/config"
)

func TestForConfig(t *testing.T) {
	for _, tc := range []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "chrome"},
		{name: "chrome", want: "chrome"},
		{name: "Firefox", want: "firefox"},
		{name: "htmlunit", want: "htmlunit"},
		{name: "netscape", wantErr: true},
	} {
		p, err := ForConfig(config.Browser{Name: tc.name})
		if tc.wantErr {
			if err == nil {
				t.Errorf("ForConfig(%q) returned nil error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForConfig(%q) returned error: %v", tc.name, err)
			continue
		}
		if got := p.BrowserName(); got != tc.want {
			t.Errorf("ForConfig(%q).BrowserName() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestChromeCapabilities(t *testing.T) {
	c := &Chrome{Config: config.Browser{
		Binary:   "/opt/chrome/chrome",
		Args:     []string{"--no-sandbox"},
		Headless: true,
		LogLevel: "severe",
	}}
	got, err := c.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	want := selenium.Capabilities{"browserName": "chrome"}
	want.AddChrome(chrome.Capabilities{
		Path: "/opt/chrome/chrome",
		Args: []string{"--no-sandbox", "--headless"},
		W3C:  true,
	})
	want.SetLogLevel(log.Browser, log.Severe)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capabilities() returned diff (-want/+got):\n%s", diff)
	}
	if deps := c.DependencyPaths(); len(deps) != 0 {
		t.Errorf("DependencyPaths() = %v, want none", deps)
	}
}

func TestChromeArgsNotShared(t *testing.T) {
	args := make([]string, 1, 4)
	args[0] = "--no-sandbox"
	c := &Chrome{Config: config.Browser{Args: args, Headless: true}}
	if _, err := c.Capabilities(); err != nil {
		t.Fatal(err)
	}
	if got := args[:2][1]; got != "" {
		t.Errorf("Capabilities() wrote %q into the configured args", got)
	}
}

func TestFirefoxCapabilities(t *testing.T) {
	f := &Firefox{Config: config.Browser{Binary: "firefox-bin", Headless: true}}
	got, err := f.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	abs, err := filepath.Abs("firefox-bin")
	if err != nil {
		t.Fatal(err)
	}
	want := selenium.Capabilities{"browserName": "firefox"}
	want.AddFirefox(firefox.Capabilities{Binary: abs, Args: []string{"-headless"}})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capabilities() returned diff (-want/+got):\n%s", diff)
	}
}

func TestHTMLUnit(t *testing.T) {
	h := &HTMLUnit{Config: config.Browser{DriverJar: "vendor/htmlunit-driver.jar"}}
	got, err := h.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	want := selenium.Capabilities{"browserName": "htmlunit", "javascriptEnabled": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capabilities() returned diff (-want/+got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"vendor/htmlunit-driver.jar"}, h.DependencyPaths()); diff != "" {
		t.Errorf("DependencyPaths() returned diff (-want/+got):\n%s", diff)
	}
	if deps := (&HTMLUnit{}).DependencyPaths(); deps != nil {
		t.Errorf("DependencyPaths() without a driver JAR = %v, want nil", deps)
	}
}

func TestProxy(t *testing.T) {
	h := &HTMLUnit{Config: config.Browser{Proxy: "localhost:1080"}}
	got, err := h.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	want := selenium.Capabilities{"browserName": "htmlunit", "javascriptEnabled": true}
	want.AddProxy(selenium.Proxy{Type: selenium.Manual, SOCKS: "localhost:1080", SOCKSVersion: 5})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capabilities() returned diff (-want/+got):\n%s", diff)
	}
}

func TestChromeExtensions(t *testing.T) {
	crx := filepath.Join(t.TempDir(), "ext.crx")
	if err := os.WriteFile(crx, []byte("Cr24"), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Chrome{Config: config.Browser{Extensions: []string{crx}}}
	caps, err := c.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	chrCaps, ok := caps[chrome.CapabilitiesKey].(chrome.Capabilities)
	if !ok {
		t.Fatalf("capability %q = %T, want chrome.Capabilities", chrome.CapabilitiesKey, caps[chrome.CapabilitiesKey])
	}
	if n := len(chrCaps.Extensions); n != 1 {
		t.Errorf("%d extensions installed, want 1", n)
	}

	c.Config.Extensions = []string{filepath.Join(t.TempDir(), "missing.crx")}
	if _, err := c.Capabilities(); err == nil {
		t.Errorf("Capabilities() with a missing extension returned nil error")
	}
}

func TestFirefoxProfile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "prefs.js"), []byte(`user_pref("browser.startup.homepage", "about:blank");`), 0644); err != nil {
		t.Fatal(err)
	}
	f := &Firefox{Config: config.Browser{Profile: dir}}
	caps, err := f.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() returned error: %v", err)
	}
	ffCaps, ok := caps[firefox.CapabilitiesKey].(firefox.Capabilities)
	if !ok {
		t.Fatalf("capability %q = %T, want firefox.Capabilities", firefox.CapabilitiesKey, caps[firefox.CapabilitiesKey])
	}
	if ffCaps.Profile == "" {
		t.Errorf("Profile is empty, want the encoded profile directory")
	}

	f.Config.Profile = filepath.Join(dir, "missing")
	if _, err := f.Capabilities(); err == nil {
		t.Errorf("Capabilities() with a missing profile returned nil error")
	}
}

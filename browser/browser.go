// Package browser describes the browsers that grid sessions can be opened
// with: the capabilities requested from the grid and the extra JARs a locally
// launched node needs on its classpath.
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"

	"github.com/ibrahimuye/Selenium-Foundation/config"
)

// Plugin supplies what the grid needs to host one kind of browser.
type Plugin interface {
	// BrowserName is the WebDriver "browserName" capability.
	BrowserName() string
	// Capabilities returns the capabilities to request a new session with.
	Capabilities() (selenium.Capabilities, error)
	// DependencyPaths lists the JARs a local node needs on its classpath to
	// host the browser.
	DependencyPaths() []string
}

// ForConfig returns the plugin for the configured browser.
func ForConfig(cfg config.Browser) (Plugin, error) {
	switch strings.ToLower(cfg.Name) {
	case "chrome", "":
		return &Chrome{Config: cfg}, nil
	case "firefox":
		return &Firefox{Config: cfg}, nil
	case "htmlunit":
		return &HTMLUnit{Config: cfg}, nil
	}
	return nil, fmt.Errorf("unsupported browser %q", cfg.Name)
}

// withCommon applies the settings shared by all browsers.
func withCommon(caps selenium.Capabilities, cfg config.Browser) {
	if cfg.LogLevel != "" {
		caps.SetLogLevel(log.Browser, log.Level(strings.ToUpper(cfg.LogLevel)))
	}
	if cfg.Proxy != "" {
		caps.AddProxy(selenium.Proxy{
			Type:         selenium.Manual,
			SOCKS:        cfg.Proxy,
			SOCKSVersion: 5,
		})
	}
}

// Chrome hosts Google Chrome through ChromeDriver.
type Chrome struct {
	Config config.Browser
}

// BrowserName implements Plugin.
func (c *Chrome) BrowserName() string { return "chrome" }

// Capabilities requests a W3C Chrome session with the configured binary,
// arguments and extensions.
func (c *Chrome) Capabilities() (selenium.Capabilities, error) {
	caps := selenium.Capabilities{"browserName": c.BrowserName()}
	chrCaps := chrome.Capabilities{
		Path: c.Config.Binary,
		Args: append([]string(nil), c.Config.Args...),
		W3C:  true,
	}
	if c.Config.Headless {
		chrCaps.Args = append(chrCaps.Args, "--headless")
	}
	for _, ext := range c.Config.Extensions {
		if err := addExtension(&chrCaps, ext); err != nil {
			return nil, fmt.Errorf("adding Chrome extension %q: %w", ext, err)
		}
	}
	caps.AddChrome(chrCaps)
	withCommon(caps, c.Config)
	return caps, nil
}

// addExtension installs a packed .crx file or packs an unpacked extension
// directory.
func addExtension(c *chrome.Capabilities, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return c.AddUnpackedExtension(path)
	}
	return c.AddExtension(path)
}

// DependencyPaths is empty: the Selenium server bundles the Chrome driver
// bindings and ChromeDriver itself is found on PATH.
func (c *Chrome) DependencyPaths() []string { return nil }

// Firefox hosts Mozilla Firefox through geckodriver.
type Firefox struct {
	Config config.Browser
}

// BrowserName implements Plugin.
func (f *Firefox) BrowserName() string { return "firefox" }

// Capabilities requests a Firefox session with the configured binary,
// arguments and profile.
func (f *Firefox) Capabilities() (selenium.Capabilities, error) {
	caps := selenium.Capabilities{"browserName": f.BrowserName()}
	ffCaps := firefox.Capabilities{
		Args: append([]string(nil), f.Config.Args...),
	}
	if f.Config.Binary != "" {
		p, err := filepath.Abs(f.Config.Binary)
		if err != nil {
			return nil, fmt.Errorf("resolving Firefox binary %q: %w", f.Config.Binary, err)
		}
		ffCaps.Binary = p
	}
	if f.Config.Headless {
		ffCaps.Args = append(ffCaps.Args, "-headless")
	}
	if f.Config.Profile != "" {
		if err := ffCaps.SetProfile(f.Config.Profile); err != nil {
			return nil, fmt.Errorf("loading Firefox profile %q: %w", f.Config.Profile, err)
		}
	}
	caps.AddFirefox(ffCaps)
	withCommon(caps, f.Config)
	return caps, nil
}

// DependencyPaths is empty: geckodriver is found on PATH.
func (f *Firefox) DependencyPaths() []string { return nil }

// HTMLUnit hosts the headless HtmlUnit browser, which runs inside the node
// and therefore needs the HtmlUnit driver JAR on the node's classpath.
type HTMLUnit struct {
	Config config.Browser
}

// BrowserName implements Plugin.
func (h *HTMLUnit) BrowserName() string { return "htmlunit" }

// Capabilities requests an HtmlUnit session with JavaScript enabled.
func (h *HTMLUnit) Capabilities() (selenium.Capabilities, error) {
	caps := selenium.Capabilities{
		"browserName":       h.BrowserName(),
		"javascriptEnabled": true,
	}
	withCommon(caps, h.Config)
	return caps, nil
}

// DependencyPaths returns the configured HtmlUnit driver JAR, if any.
func (h *HTMLUnit) DependencyPaths() []string {
	if h.Config.DriverJar == "" {
		return nil
	}
	return []string{h.Config.DriverJar}
}

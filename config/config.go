// Package config holds the resolved settings consumed by the driver
// lifecycle: wait intervals, the target URI that initial pages are opened
// against, and the location of the Selenium grid.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WaitType names one of the configured wait intervals.
type WaitType int

// The configured wait intervals.
const (
	// Implied is the implicit wait applied to element searches.
	Implied WaitType = iota
	// PageLoad bounds how long the driver waits for a page to load.
	PageLoad
	// Script bounds how long asynchronous scripts may run.
	Script
	// Wait is the default explicit wait used by page objects.
	Wait
	// Host bounds how long to wait for a grid hub or node to respond.
	Host
)

var waitTypeNames = map[WaitType]string{
	Implied:  "implied",
	PageLoad: "page load",
	Script:   "script",
	Wait:     "wait",
	Host:     "host",
}

func (w WaitType) String() string {
	if name, ok := waitTypeNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WaitType(%d)", int(w))
}

// Interval returns the configured interval for w. Unknown wait types
// yield zero.
func (w WaitType) Interval(c *Config) time.Duration {
	var secs int
	switch w {
	case Implied:
		secs = c.Timeouts.Implied
	case PageLoad:
		secs = c.Timeouts.PageLoad
	case Script:
		secs = c.Timeouts.Script
	case Wait:
		secs = c.Timeouts.Wait
	case Host:
		secs = c.Timeouts.Host
	}
	return time.Duration(secs) * time.Second
}

// Timeouts are wait intervals expressed in whole seconds.
type Timeouts struct {
	Implied  int `yaml:"implied"`
	PageLoad int `yaml:"page_load"`
	Script   int `yaml:"script"`
	Wait     int `yaml:"wait"`
	Host     int `yaml:"host"`
}

// Grid describes the Selenium grid that drivers are allocated from.
type Grid struct {
	// HubHost and HubPort locate the hub. If no hub answers there and Launch
	// is set, a local hub and node are started.
	HubHost string `yaml:"hub_host"`
	HubPort int    `yaml:"hub_port"`
	// NodePort is the port of a locally launched node.
	NodePort int `yaml:"node_port"`
	// Launch permits starting a local hub and node.
	Launch bool `yaml:"launch"`
	// ServerJar is the path to the Selenium server JAR used for local launch.
	ServerJar string `yaml:"server_jar"`
	// ServerVersion selects the launch command line layout, e.g. "3.141.59"
	// or "4.8.0".
	ServerVersion string `yaml:"server_version"`
	// JavaPath overrides the "java" binary found on PATH.
	JavaPath string `yaml:"java_path"`
	// FrameBuffer runs the local node inside an Xvfb display.
	FrameBuffer bool `yaml:"frame_buffer"`
	// ScreenSize is the Xvfb screen, e.g. "1280x1024x24". Empty uses the
	// Xvfb default.
	ScreenSize string `yaml:"screen_size"`
	// ShutdownTimeout, in seconds, makes suite shutdown wait for the hub and
	// node to exit. Zero keeps shutdown fire-and-forget.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// HubURL returns the base URL of the hub.
func (g Grid) HubURL() string {
	return fmt.Sprintf("http://%s:%d", g.HubHost, g.HubPort)
}

// Browser selects and tunes the browser that sessions are opened with.
type Browser struct {
	Name     string   `yaml:"name"`
	Binary   string   `yaml:"binary"`
	Args     []string `yaml:"args"`
	Headless bool     `yaml:"headless"`
	// DriverJar is the HtmlUnit driver JAR added to the node classpath.
	DriverJar string `yaml:"driver_jar"`
	// LogLevel is the browser console log level to capture, e.g. "SEVERE".
	LogLevel string `yaml:"log_level"`
	// Extensions are Chrome extensions to install: .crx files or unpacked
	// extension directories.
	Extensions []string `yaml:"extensions"`
	// Profile is a Firefox profile directory to start the browser with.
	Profile string `yaml:"profile"`
	// Proxy is the host:port of a SOCKS5 proxy the browser sends all
	// traffic through.
	Proxy string `yaml:"proxy"`
}

// Sauce selects Sauce Labs as the source of driver sessions.
type Sauce struct {
	// Enabled allocates sessions from Sauce Labs instead of the grid.
	Enabled   bool   `yaml:"enabled"`
	UserName  string `yaml:"user_name"`
	AccessKey string `yaml:"access_key"`
	// Platform and Version pick the operating system and browser version,
	// e.g. "Windows 10" and "latest".
	Platform         string `yaml:"platform"`
	Version          string `yaml:"version"`
	ScreenResolution string `yaml:"screen_resolution"`
	// ConnectPath is the Sauce Connect Proxy binary. If set, sessions are
	// opened through a tunnel listening on ConnectPort.
	ConnectPath string `yaml:"connect_path"`
	ConnectPort int    `yaml:"connect_port"`
}

// Config is the resolved configuration for one test run.
type Config struct {
	// TargetURI is the base address initial pages are resolved against.
	TargetURI string   `yaml:"target_uri"`
	Timeouts  Timeouts `yaml:"timeouts"`
	Grid      Grid     `yaml:"grid"`
	Browser   Browser  `yaml:"browser"`
	Sauce     Sauce    `yaml:"sauce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timeouts: Timeouts{
			Implied:  15,
			PageLoad: 60,
			Script:   30,
			Wait:     15,
			Host:     30,
		},
		Grid: Grid{
			HubHost:       "localhost",
			HubPort:       4444,
			NodePort:      5555,
			ServerVersion: "3.141.59",
		},
		Browser: Browser{
			Name: "chrome",
		},
		Sauce: Sauce{
			ConnectPort: 4445,
		},
	}
}

// Load returns the default configuration overlaid with the YAML file at
// path (if path is non-empty) and then with SELENIUM_* environment
// variables. A .env file in the working directory is read first if present.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SELENIUM_TARGET_URI":     &c.TargetURI,
		"SELENIUM_HUB_HOST":       &c.Grid.HubHost,
		"SELENIUM_SERVER_JAR":     &c.Grid.ServerJar,
		"SELENIUM_SERVER_VERSION": &c.Grid.ServerVersion,
		"SELENIUM_JAVA_PATH":      &c.Grid.JavaPath,
		"SELENIUM_BROWSER":        &c.Browser.Name,
		"SELENIUM_BROWSER_BINARY": &c.Browser.Binary,
		"SELENIUM_BROWSER_PROXY":  &c.Browser.Proxy,
		"SELENIUM_SCREEN_SIZE":    &c.Grid.ScreenSize,
		"SAUCE_USERNAME":          &c.Sauce.UserName,
		"SAUCE_ACCESS_KEY":        &c.Sauce.AccessKey,
		"SAUCE_CONNECT_PATH":      &c.Sauce.ConnectPath,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"SELENIUM_IMPLIED_TIMEOUT":   &c.Timeouts.Implied,
		"SELENIUM_PAGE_LOAD_TIMEOUT": &c.Timeouts.PageLoad,
		"SELENIUM_SCRIPT_TIMEOUT":    &c.Timeouts.Script,
		"SELENIUM_WAIT_TIMEOUT":      &c.Timeouts.Wait,
		"SELENIUM_HOST_TIMEOUT":      &c.Timeouts.Host,
		"SELENIUM_HUB_PORT":          &c.Grid.HubPort,
		"SELENIUM_NODE_PORT":         &c.Grid.NodePort,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", name, v, err)
		}
		*dst = n
	}
	bools := map[string]*bool{
		"SELENIUM_GRID_LAUNCH":  &c.Grid.Launch,
		"SELENIUM_HEADLESS":     &c.Browser.Headless,
		"SELENIUM_FRAME_BUFFER": &c.Grid.FrameBuffer,
		"SELENIUM_SAUCE":        &c.Sauce.Enabled,
	}
	for name, dst := range bools {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", name, v, err)
		}
		*dst = b
	}
	return nil
}

// BindFlags registers flags on fs that override c when fs is parsed.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.TargetURI, "selenium_target_uri", c.TargetURI, "The base URI that initial pages are opened against.")
	fs.IntVar(&c.Timeouts.Implied, "selenium_implied_timeout", c.Timeouts.Implied, "Implicit wait, in seconds.")
	fs.IntVar(&c.Timeouts.PageLoad, "selenium_page_load_timeout", c.Timeouts.PageLoad, "Page load timeout, in seconds.")
	fs.IntVar(&c.Timeouts.Script, "selenium_script_timeout", c.Timeouts.Script, "Asynchronous script timeout, in seconds.")
	fs.StringVar(&c.Grid.HubHost, "selenium_hub_host", c.Grid.HubHost, "The host of the Selenium grid hub.")
	fs.IntVar(&c.Grid.HubPort, "selenium_hub_port", c.Grid.HubPort, "The port of the Selenium grid hub.")
	fs.BoolVar(&c.Grid.Launch, "selenium_grid_launch", c.Grid.Launch, "If true, start a local hub and node when no hub is reachable.")
	fs.StringVar(&c.Grid.ServerJar, "selenium_server_jar", c.Grid.ServerJar, "The path to the Selenium server JAR for local launch.")
	fs.StringVar(&c.Browser.Name, "selenium_browser", c.Browser.Name, "The browser to open sessions with.")
	fs.BoolVar(&c.Browser.Headless, "selenium_headless", c.Browser.Headless, "If true, run the browser headless.")
	fs.BoolVar(&c.Sauce.Enabled, "selenium_sauce", c.Sauce.Enabled, "If true, open sessions on Sauce Labs instead of the grid.")
	fs.StringVar(&c.Sauce.UserName, "sauce_user_name", c.Sauce.UserName, "The username to use for Sauce Labs.")
	fs.StringVar(&c.Sauce.AccessKey, "sauce_access_key", c.Sauce.AccessKey, "The access key to use for Sauce Labs.")
	fs.StringVar(&c.Sauce.ConnectPath, "sauce_connect_path", c.Sauce.ConnectPath, "The path to the Sauce Connect binary. If empty, no tunnel is started.")
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	for _, w := range []WaitType{Implied, PageLoad, Script, Wait, Host} {
		if w.Interval(c) < 0 {
			return fmt.Errorf("%s timeout must not be negative: %v", w, w.Interval(c))
		}
	}
	if c.Grid.ShutdownTimeout < 0 {
		return fmt.Errorf("grid shutdown timeout must not be negative: %d", c.Grid.ShutdownTimeout)
	}
	if c.TargetURI != "" {
		u, err := url.Parse(c.TargetURI)
		if err != nil {
			return fmt.Errorf("invalid target URI %q: %w", c.TargetURI, err)
		}
		if !u.IsAbs() {
			return fmt.Errorf("target URI %q must be absolute", c.TargetURI)
		}
	}
	if c.Grid.HubPort <= 0 {
		return fmt.Errorf("invalid hub port %d", c.Grid.HubPort)
	}
	if c.Sauce.Enabled {
		if c.Sauce.UserName == "" || c.Sauce.AccessKey == "" {
			return errors.New("a user name and access key are required for Sauce Labs")
		}
		if c.Sauce.ConnectPath != "" && c.Sauce.ConnectPort <= 0 {
			return fmt.Errorf("invalid Sauce Connect port %d", c.Sauce.ConnectPort)
		}
	}
	return nil
}

package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/tebeka/selenium"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/browser"
	"github.com/ibrahimuye/Selenium-Foundation/config"
)

// RemoteFunc opens a WebDriver session at the given URL prefix.
type RemoteFunc func(caps selenium.Capabilities, urlPrefix string) (selenium.WebDriver, error)

// Option configures a Grid.
type Option func(*Grid) error

// ProcessOptions are applied to the hub and node if the grid launches them.
func ProcessOptions(opts ...ProcessOption) Option {
	return func(g *Grid) error {
		g.procOpts = append(g.procOpts, opts...)
		return nil
	}
}

// Remote replaces selenium.NewRemote as the way sessions are opened.
func Remote(f RemoteFunc) Option {
	return func(g *Grid) error {
		if f == nil {
			return errors.New("remote function must be non-nil")
		}
		g.newRemote = f
		return nil
	}
}

// Grid allocates sessions from the configured hub. If no hub answers and
// local launch is enabled, the first call to Driver starts a hub and a node
// and the Grid owns them until the suite's shutdown hook kills them.
type Grid struct {
	cfg       *config.Config
	plugin    browser.Plugin
	version   semver.Version
	procOpts  []ProcessOption
	newRemote RemoteFunc

	once      sync.Once
	launchErr error

	mu        sync.Mutex
	hub, node *Process
}

// New returns a grid allocator opening sessions of plugin's browser.
func New(cfg *config.Config, plugin browser.Plugin, opts ...Option) (*Grid, error) {
	version, err := semver.ParseTolerant(cfg.Grid.ServerVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid server version %q: %w", cfg.Grid.ServerVersion, err)
	}
	g := &Grid{
		cfg:       cfg,
		plugin:    plugin,
		version:   version,
		newRemote: selenium.NewRemote,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Driver opens a session for inv, launching the local grid first if needed.
func (g *Grid) Driver(inv *foundation.Invocation) (selenium.WebDriver, error) {
	g.once.Do(func() {
		g.launchErr = g.launch(context.Background())
	})
	if g.launchErr != nil {
		return nil, g.launchErr
	}
	caps, err := g.plugin.Capabilities()
	if err != nil {
		return nil, err
	}
	wd, err := g.newRemote(caps, g.remoteURL())
	if err != nil {
		return nil, fmt.Errorf("opening %s session for %v: %w", g.plugin.BrowserName(), inv, err)
	}
	return wd, nil
}

func (g *Grid) hubURL() string {
	return g.cfg.Grid.HubURL()
}

func (g *Grid) remoteURL() string {
	if g.version.GTE(grid4) {
		return g.hubURL()
	}
	return g.hubURL() + "/wd/hub"
}

func (g *Grid) statusURL() string {
	if g.version.GTE(grid4) {
		return g.hubURL() + "/status"
	}
	return g.hubURL() + "/wd/hub/status"
}

func (g *Grid) launch(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, config.Host.Interval(g.cfg))
	err := checkStatus(probeCtx, g.statusURL())
	cancel()
	if err == nil {
		glog.Infof("using grid hub at %s", g.hubURL())
		return nil
	}
	if !g.cfg.Grid.Launch {
		return fmt.Errorf("no grid hub at %s and local launch is disabled: %w", g.hubURL(), err)
	}
	if g.cfg.Grid.ServerJar == "" {
		return errors.New("local grid launch requires a server JAR")
	}

	base := append([]ProcessOption(nil), g.procOpts...)
	if g.cfg.Grid.JavaPath != "" {
		base = append(base, JavaPath(g.cfg.Grid.JavaPath))
	}
	hub, err := StartHub(ctx, g.cfg.Grid.ServerJar, g.version, g.cfg.Grid.HubPort, base...)
	if err != nil {
		return err
	}

	nodeOpts := append(base, ClassPath(g.plugin.DependencyPaths()...))
	if g.cfg.Grid.FrameBuffer {
		nodeOpts = append(nodeOpts, StartFrameBuffer(g.cfg.Grid.ScreenSize))
	}
	node, err := StartNode(ctx, g.cfg.Grid.ServerJar, g.version, g.cfg.Grid.NodePort, g.hubURL(), nodeOpts...)
	if err != nil {
		if kerr := hub.Kill(); kerr != nil {
			glog.Warningf("killing grid hub after node failure: %v", kerr)
		}
		return err
	}

	g.mu.Lock()
	g.hub, g.node = hub, node
	g.mu.Unlock()
	return nil
}

// Hub returns the hub started by this grid, or nil if an existing hub was
// used.
func (g *Grid) Hub() foundation.ProcessHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hub == nil {
		return nil
	}
	return g.hub
}

// Node returns the node started by this grid, or nil if an existing hub was
// used.
func (g *Grid) Node() foundation.ProcessHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.node == nil {
		return nil
	}
	return g.node
}

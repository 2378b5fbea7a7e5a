package grid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/sauce"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/browser"
	"github.com/ibrahimuye/Selenium-Foundation/config"
)

// Sauce allocates sessions from Sauce Labs. Each job is named after the
// invoked method.
type Sauce struct {
	// UserName and AccessKey are the Sauce Labs credentials.
	UserName, AccessKey string
	Plugin              browser.Plugin
	// Capabilities are merged into every session request.
	Capabilities sauce.Capabilities
	// Tunnel, if set, is started before the first session and sessions are
	// opened through it. It is reported as the grid node so that the suite's
	// shutdown hook stops it.
	Tunnel *Tunnel

	newRemote RemoteFunc

	once     sync.Once
	startErr error
	started  atomic.Bool
}

// NewSauce returns an allocator for the Sauce Labs account in cfg. A tunnel
// is configured if cfg names a Sauce Connect binary.
func NewSauce(cfg config.Sauce, plugin browser.Plugin) *Sauce {
	s := &Sauce{
		UserName:  cfg.UserName,
		AccessKey: cfg.AccessKey,
		Plugin:    plugin,
		Capabilities: sauce.Capabilities{
			Platform:         cfg.Platform,
			Version:          cfg.Version,
			ScreenResolution: cfg.ScreenResolution,
		},
	}
	if cfg.ConnectPath != "" {
		s.Tunnel = &Tunnel{
			Path:         cfg.ConnectPath,
			UserName:     cfg.UserName,
			AccessKey:    cfg.AccessKey,
			SeleniumPort: cfg.ConnectPort,
		}
	}
	return s
}

// Driver opens a Sauce Labs session for inv.
func (s *Sauce) Driver(inv *foundation.Invocation) (selenium.WebDriver, error) {
	s.once.Do(func() {
		if s.Tunnel == nil {
			return
		}
		if s.startErr = s.Tunnel.Start(context.Background()); s.startErr == nil {
			s.started.Store(true)
		}
	})
	if s.startErr != nil {
		return nil, s.startErr
	}

	caps, err := s.capabilities(inv)
	if err != nil {
		return nil, err
	}
	newRemote := s.newRemote
	if newRemote == nil {
		newRemote = selenium.NewRemote
	}
	wd, err := newRemote(caps, s.addr())
	if err != nil {
		return nil, fmt.Errorf("opening Sauce Labs session for %v: %w", inv, err)
	}
	return wd, nil
}

func (s *Sauce) capabilities(inv *foundation.Invocation) (selenium.Capabilities, error) {
	caps, err := s.Plugin.Capabilities()
	if err != nil {
		return nil, err
	}
	m, err := s.Capabilities.ToMap()
	if err != nil {
		return nil, fmt.Errorf("error obtaining map for sauce.Capabilities: %w", err)
	}
	for k, v := range m {
		caps[k] = v
	}
	caps["name"] = inv.Method().ID()
	return caps, nil
}

func (s *Sauce) addr() string {
	if s.started.Load() {
		return s.Tunnel.Addr()
	}
	return sauce.Addr(s.UserName, s.AccessKey)
}

// Hub is always nil: Sauce Labs hosts the hub.
func (s *Sauce) Hub() foundation.ProcessHandle { return nil }

// Node returns the tunnel if this run started one.
func (s *Sauce) Node() foundation.ProcessHandle {
	if !s.started.Load() {
		return nil
	}
	return s.Tunnel
}

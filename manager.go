package foundation

import (
	"errors"
	"fmt"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tebeka/selenium"

	"github.com/ibrahimuye/Selenium-Foundation/config"
)

// Option configures a Manager.
type Option func(*Manager) error

// WithGrid sets the allocator used for methods whose class has no
// provisioner.
func WithGrid(g GridAllocator) Option {
	return func(m *Manager) error {
		if m.grid != nil {
			return errors.New("grid allocator already set")
		}
		m.grid = g
		return nil
	}
}

// WithMetrics records lifecycle events in metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) error {
		m.metrics = metrics
		return nil
	}
}

// WithStore makes the manager bind attributes in s instead of a store of its
// own.
func WithStore(s *Store) Option {
	return func(m *Manager) error {
		if s == nil {
			return errors.New("store must be non-nil")
		}
		m.store = s
		return nil
	}
}

// WithShutdownTimeout makes OnFinish wait up to d for the grid processes to
// exit after killing them. Zero leaves shutdown fire-and-forget.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		if d < 0 {
			return fmt.Errorf("shutdown timeout must not be negative: %v", d)
		}
		m.shutdownTimeout = d
		return nil
	}
}

// Manager binds drivers and initial pages to invocations before they run and
// releases the drivers once their outcome is known.
type Manager struct {
	cfg             *config.Config
	store           *Store
	grid            GridAllocator
	metrics         *Metrics
	shutdownTimeout time.Duration

	// counted holds the IDs of invocations whose driver was bound by the
	// manager and so is included in the active driver gauge.
	counted cmap.ConcurrentMap[string, struct{}]
}

// NewManager returns a manager reading wait intervals and the target URI from
// cfg. A nil cfg selects config.Default().
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Manager{
		cfg:             cfg,
		shutdownTimeout: time.Duration(cfg.Grid.ShutdownTimeout) * time.Second,
		counted:         cmap.New[struct{}](),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.store == nil {
		m.store = NewStore()
	}
	return m, nil
}

// Config returns the configuration the manager was created with.
func (m *Manager) Config() *config.Config { return m.cfg }

// Store returns the store holding invocation attributes.
func (m *Manager) Store() *Store { return m.store }

// Grid returns the configured grid allocator, or nil.
func (m *Manager) Grid() GridAllocator { return m.grid }

// Driver returns the driver bound to inv.
func (m *Manager) Driver(inv *Invocation) (selenium.WebDriver, bool) {
	return m.store.Driver(inv)
}

// SetDriver binds a driver obtained outside the lifecycle gate, typically in
// a hook that runs before the test. The manager takes ownership and quits wd
// when the invocation completes. Binding a second driver is an error.
func (m *Manager) SetDriver(inv *Invocation, wd selenium.WebDriver) error {
	if wd == nil {
		return ErrNilDriver
	}
	if !m.store.SetDriver(inv, wd) {
		return fmt.Errorf("%v already has a driver bound", inv)
	}
	m.bound(inv, "manual", 0)
	return nil
}

// bound records a driver the manager has just bound to inv.
func (m *Manager) bound(inv *Invocation, source string, took time.Duration) {
	m.counted.Set(inv.id, struct{}{})
	m.metrics.recordProvision(source, took)
}

// InitialPage returns the initial page bound to inv.
func (m *Manager) InitialPage(inv *Invocation) (Page, bool) {
	return m.store.InitialPage(inv)
}

package foundation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/config"
	"github.com/ibrahimuye/Selenium-Foundation/foundationtest"
)

func TestOutcomeString(t *testing.T) {
	for o, want := range map[foundation.Outcome]string{
		foundation.Started:                       "started",
		foundation.Success:                       "success",
		foundation.Failure:                       "failure",
		foundation.FailedWithinSuccessPercentage: "failed within success percentage",
		foundation.Skipped:                       "skipped",
		foundation.Outcome(7):                    "Outcome(7)",
	} {
		assert.Equal(t, want, o.String())
	}
	assert.False(t, foundation.Started.Terminal())
	assert.True(t, foundation.Skipped.Terminal())
}

func TestCompleteUnknownOutcome(t *testing.T) {
	m, err := foundation.NewManager(nil)
	require.NoError(t, err)
	assert.Error(t, m.Complete(foundation.NewInvocation("1", nil), foundation.Outcome(7)))
}

func TestOnFinishWithoutGrid(t *testing.T) {
	m, err := foundation.NewManager(nil)
	require.NoError(t, err)
	assert.NoError(t, m.OnFinish())
}

func TestOnFinishAwaitsExit(t *testing.T) {
	g := foundationtest.NewGrid()
	m, err := foundation.NewManager(nil, foundation.WithGrid(g), foundation.WithShutdownTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, m.OnFinish())

	want := []string{"kill node", "kill hub", "exited node", "exited hub"}
	if diff := cmp.Diff(want, g.Events.Log()); diff != "" {
		t.Errorf("grid events returned diff (-want/+got):\n%s", diff)
	}
}

func TestOnFinishTimeout(t *testing.T) {
	g := foundationtest.NewGrid()
	g.HubProcess.Hang = true
	m, err := foundation.NewManager(nil, foundation.WithGrid(g), foundation.WithShutdownTimeout(10*time.Millisecond))
	require.NoError(t, err)

	err = m.OnFinish()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnFinishFireAndForget(t *testing.T) {
	g := foundationtest.NewGrid()
	g.HubProcess.Hang = true
	m, err := foundation.NewManager(nil, foundation.WithGrid(g))
	require.NoError(t, err)
	assert.NoError(t, m.OnFinish())
}

func TestOnFinishKillFailure(t *testing.T) {
	g := foundationtest.NewGrid()
	killErr := errors.New("operation not permitted")
	g.NodeProcess.KillErr = killErr
	m, err := foundation.NewManager(nil, foundation.WithGrid(g))
	require.NoError(t, err)

	err = m.OnFinish()
	assert.ErrorIs(t, err, killErr)
	// The hub is still killed after the node fails.
	assert.Equal(t, []string{"kill node", "kill hub"}, g.Events.Log())
}

func TestShutdownTimeoutFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.ShutdownTimeout = 1
	g := foundationtest.NewGrid()
	m, err := foundation.NewManager(cfg, foundation.WithGrid(g))
	require.NoError(t, err)
	require.NoError(t, m.OnFinish())
	assert.Contains(t, g.Events.Log(), "exited hub")
}

func TestManagerOptions(t *testing.T) {
	for _, tc := range []struct {
		desc string
		opts []foundation.Option
	}{
		{"two grids", []foundation.Option{foundation.WithGrid(foundationtest.NewGrid()), foundation.WithGrid(foundationtest.NewGrid())}},
		{"nil store", []foundation.Option{foundation.WithStore(nil)}},
		{"negative shutdown timeout", []foundation.Option{foundation.WithShutdownTimeout(-time.Second)}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := foundation.NewManager(nil, tc.opts...)
			assert.Error(t, err)
		})
	}

	s := foundation.NewStore()
	m, err := foundation.NewManager(nil, foundation.WithStore(s))
	require.NoError(t, err)
	assert.Same(t, s, m.Store())
	assert.Equal(t, config.Default(), m.Config())
}

func TestNoAllocator(t *testing.T) {
	m, err := foundation.NewManager(nil)
	require.NoError(t, err)
	err = m.BeforeInvocation(foundation.NewInvocation("1", &foundation.Method{Name: "TestA"}))
	assert.ErrorIs(t, err, foundation.ErrNoAllocator)
}

func TestNilDriverFromProvisioner(t *testing.T) {
	m, err := foundation.NewManager(nil)
	require.NoError(t, err)
	class := &foundation.Class{Provisioner: foundation.ProvisionerFunc(func(*foundation.Invocation) (selenium.WebDriver, error) {
		return nil, nil
	})}
	err = m.BeforeInvocation(foundation.NewInvocation("1", &foundation.Method{Name: "TestA", Class: class}))
	assert.ErrorIs(t, err, foundation.ErrNilDriver)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := foundationtest.NewGrid()
	g.Configure = func(d *foundationtest.Driver) { d.AlertErr = foundationtest.ErrNoAlert }
	cfg := config.Default()
	cfg.TargetURI = foundationtest.DefaultTargetURI
	m, err := foundation.NewManager(cfg, foundation.WithGrid(g), foundation.WithMetrics(foundation.NewMetrics(reg)))
	require.NoError(t, err)

	inv := foundation.NewInvocation("1", &foundation.Method{
		Name:        "TestMetrics",
		InitialPage: &foundation.InitialPage{Type: foundationtest.Home},
	})
	require.NoError(t, m.BeforeInvocation(inv))
	require.NoError(t, m.OnTestFailure(inv))

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "selenium_foundation_drivers_provisioned_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "selenium_foundation_initial_pages_opened_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "selenium_foundation_advisory_cleanup_failures_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "selenium_foundation_teardowns_total"))

	assert.Equal(t, 0.0, activeDrivers(t, reg))
}

func activeDrivers(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "selenium_foundation_active_drivers" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("active driver gauge not registered")
	return 0
}

func TestStoreBindingKeepsProvisionedDriver(t *testing.T) {
	g := foundationtest.NewGrid()
	m, err := foundation.NewManager(nil, foundation.WithGrid(g))
	require.NoError(t, err)
	inv := foundation.NewInvocation("1", &foundation.Method{Name: "TestA"})
	require.NoError(t, m.BeforeInvocation(inv))
	require.Len(t, g.Drivers(), 1)
	first := g.Drivers()[0]

	second := foundationtest.NewDriver("second")
	assert.False(t, m.Store().SetDriver(inv, second), "Store().SetDriver over a provisioned driver")
	require.NoError(t, m.OnTestSuccess(inv))

	assert.Equal(t, 1, first.QuitCount(), "quits of the provisioned driver")
	assert.Equal(t, 0, second.QuitCount(), "quits of the refused driver")
}

func TestActiveDriversCountsManagedDrivers(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := foundationtest.NewGrid()
	m, err := foundation.NewManager(nil, foundation.WithGrid(g), foundation.WithMetrics(foundation.NewMetrics(reg)))
	require.NoError(t, err)

	managed := foundation.NewInvocation("managed", &foundation.Method{Name: "TestManaged"})
	require.NoError(t, m.BeforeInvocation(managed))
	direct := foundation.NewInvocation("direct", &foundation.Method{Name: "TestDirect"})
	require.True(t, m.Store().SetDriver(direct, foundationtest.NewDriver("direct")))
	assert.Equal(t, 1.0, activeDrivers(t, reg), "after binding")

	require.NoError(t, m.OnTestSuccess(direct))
	assert.Equal(t, 1.0, activeDrivers(t, reg), "after releasing the store-bound driver")
	require.NoError(t, m.OnTestSuccess(managed))
	assert.Equal(t, 0.0, activeDrivers(t, reg), "after releasing the managed driver")
}

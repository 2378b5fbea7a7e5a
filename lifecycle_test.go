package foundation_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
	"github.com/ibrahimuye/Selenium-Foundation/config"
	"github.com/ibrahimuye/Selenium-Foundation/foundationtest"
)

func TestLifecycle(t *testing.T) {
	foundationtest.RunLifecycleTests(t, foundationtest.Config{})
}

func TestLifecycleCustomSettings(t *testing.T) {
	settings := config.Default()
	settings.TargetURI = "https://shop.example.com/app/"
	settings.Timeouts.Script = 5
	settings.Timeouts.Implied = 1
	settings.Timeouts.PageLoad = 90
	foundationtest.RunLifecycleTests(t, foundationtest.Config{Settings: settings})
}

func TestLifecycleWithMetrics(t *testing.T) {
	foundationtest.RunLifecycleTests(t, foundationtest.Config{
		Options: []foundation.Option{
			foundation.WithMetrics(foundation.NewMetrics(prometheus.NewRegistry())),
		},
	})
}

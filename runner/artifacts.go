package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	foundation "github.com/ibrahimuye/Selenium-Foundation"
)

// CaptureOnFailure returns a hook that saves a screenshot and the page source
// of a failed test's browser into dir, as <test>.png and <test>.html.
// Capture errors are logged and do not affect the test.
func CaptureOnFailure(dir string) Hook {
	return Hook{After: func(s *Session, o foundation.Outcome) {
		if o != foundation.Failure {
			return
		}
		wd := s.Driver()
		if wd == nil {
			return
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			glog.Warningf("creating artifact directory: %v", err)
			return
		}
		base := filepath.Join(dir, artifactName(s.T.Name()))

		var errs []error
		if png, err := wd.Screenshot(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, os.WriteFile(base+".png", png, 0644))
		}
		if src, err := wd.PageSource(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, os.WriteFile(base+".html", []byte(src), 0644))
		}
		if err := errors.Join(errs...); err != nil {
			glog.Warningf("capturing artifacts of %s: %v", s.T.Name(), err)
			return
		}
		s.T.Logf("browser artifacts saved to %s.{png,html}", base)
	}}
}

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", ":", "_")

func artifactName(test string) string {
	return nameReplacer.Replace(test)
}

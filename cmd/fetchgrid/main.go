// Binary fetchgrid downloads the Selenium server, browser drivers and
// optionally the browsers needed to launch a local grid.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/google/go-github/v27/github"
	"github.com/spf13/cobra"

	"github.com/ibrahimuye/Selenium-Foundation/internal/download"
)

const (
	// desiredChromeBuild is the known build of Chromium to download from the
	// chromium-browser-snapshots/Linux_x64 bucket.
	//
	// Update this periodically.
	desiredChromeBuild = "1181205"

	// desiredFirefoxVersion is the known version of Firefox to download.
	//
	// Update this periodically.
	desiredFirefoxVersion = "115.0"
)

type options struct {
	dir           string
	serverVersion string
	browsers      bool
	latest        bool
	sauceConnect  bool
	parallel      int
}

// sources are the services consulted to locate the latest files.
type sources struct {
	github *github.Client
	bucket func(context.Context) (download.Bucket, error)
}

var defaultSources = sources{
	github: github.NewClient(nil),
	bucket: func(ctx context.Context) (download.Bucket, error) {
		return download.ChromiumBucket(ctx)
	},
}

// plan returns the files to download. Files that cannot be located are
// logged and left out.
func plan(ctx context.Context, src sources, o options) ([]download.File, error) {
	v, err := semver.ParseTolerant(o.serverVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid server version %q: %w", o.serverVersion, err)
	}
	files := []download.File{download.SeleniumServer(v)}
	if o.sauceConnect {
		files = append(files, download.SauceConnectFile)
	}

	chromeBuild, firefoxVersion := desiredChromeBuild, desiredFirefoxVersion
	if o.latest {
		chromeBuild, firefoxVersion = "", ""
	}
	if bkt, err := src.bucket(ctx); err != nil {
		glog.Errorf("Unable to open the Chromium bucket: %v", err)
	} else if chromium, err := download.Chromium(ctx, bkt, chromeBuild, o.browsers); err != nil {
		glog.Errorf("Unable to locate ChromeDriver: %v", err)
	} else {
		files = append(files, chromium...)
	}
	if o.browsers {
		files = append(files, download.Firefox(firefoxVersion))
	}

	for _, r := range []struct {
		owner, repo, asset, name string
	}{
		{"SeleniumHQ", "htmlunit-driver", "htmlunit-driver-.*-jar-with-dependencies.jar", "htmlunit-driver.jar"},
		{"mozilla", "geckodriver", "geckodriver-.*linux64.tar.gz", "geckodriver.tar.gz"},
	} {
		f, err := download.LatestRelease(ctx, src.github, r.owner, r.repo, r.asset, r.name)
		if err != nil {
			glog.Errorf("Unable to find the latest %s: %v", r.repo, err)
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func newRootCmd(src sources) *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:   "fetchgrid",
		Short: "Download the files needed to launch a local Selenium grid",
		Long: `Download the Selenium server JAR, ChromeDriver, geckodriver and the
HtmlUnit driver, and optionally Chromium, Firefox and Sauce Connect.

Examples:
  fetchgrid --dir=deps                  # Drivers and server only
  fetchgrid --dir=deps --browsers       # Also download browsers
  fetchgrid list --latest               # Show what would be downloaded`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := plan(cmd.Context(), src, o)
			if err != nil {
				return err
			}
			return download.All(cmd.Context(), http.DefaultClient, files, o.dir, o.parallel)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&o.dir, "dir", ".", "Directory to download files into")
	f.StringVar(&o.serverVersion, "server_version", "3.141.59", "Version of the Selenium server JAR")
	f.BoolVar(&o.browsers, "browsers", false, "Also download the Chromium and Firefox browsers")
	f.BoolVar(&o.latest, "latest", false, "Download the latest browser builds instead of the known good ones")
	f.BoolVar(&o.sauceConnect, "sauce_connect", false, "Also download the Sauce Connect Proxy")
	f.IntVar(&o.parallel, "parallel", 4, "Maximum number of concurrent downloads")

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the files that would be downloaded",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := plan(cmd.Context(), src, o)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	})
	return root
}

func printFiles(w io.Writer, files []download.File) {
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\n", f.Name, f.URL)
	}
}

func main() {
	// glog registers its flags on the standard flag set.
	root := newRootCmd(defaultSources)
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.PersistentPreRun = func(*cobra.Command, []string) {
		flag.CommandLine.Parse(nil)
	}
	err := root.ExecuteContext(context.Background())
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

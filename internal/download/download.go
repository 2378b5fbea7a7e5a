// Package download fetches the Selenium server, browser drivers and browsers
// needed to launch a local grid.
package download

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/google/go-github/v27/github"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// File describes how to download a file from the Web.
type File struct {
	URL  string
	Name string
	// Hash is the expected hex digest of the download. If empty, the file is
	// downloaded every time and not verified.
	Hash     string
	HashType string // default is sha256
	// Rename, if set, moves Rename[0] to Rename[1] after unpacking.
	Rename []string
	// Browser marks browser binaries, which callers may choose to skip.
	Browser bool
}

// Path returns the location of the downloaded file in dir.
func (f File) Path(dir string) string {
	if dir != "" {
		return filepath.Join(dir, f.Name)
	}
	return f.Name
}

// SauceConnectFile describes how to download the Sauce Connect Proxy.
var SauceConnectFile = File{
	URL:    "https://saucelabs.com/downloads/sc-4.9.2-linux.tar.gz",
	Name:   "sauce-connect.tar.gz",
	Rename: []string{"sc-4.9.2-linux", "sauce-connect"},
}

// SeleniumServer describes how to download the server JAR of version v,
// saved as selenium-server.jar.
func SeleniumServer(v semver.Version) File {
	const name = "selenium-server.jar"
	if v.Major < 4 {
		return File{
			URL:  fmt.Sprintf("https://selenium-release.storage.googleapis.com/%d.%d/selenium-server-standalone-%s.jar", v.Major, v.Minor, v),
			Name: name,
		}
	}
	return File{
		URL:  fmt.Sprintf("https://github.com/SeleniumHQ/selenium/releases/download/selenium-%d.%d.0/selenium-server-%s.jar", v.Major, v.Minor, v),
		Name: name,
	}
}

// Firefox describes how to download the given Firefox release, or the
// latest nightly if version is empty.
func Firefox(version string) File {
	if version == "" {
		return File{
			URL:     "https://download.mozilla.org/?product=firefox-nightly-latest-ssl&os=linux64&lang=en-US",
			Name:    "firefox-nightly.tar.bz2",
			Browser: true,
		}
	}
	v := url.PathEscape(version)
	return File{
		URL:     "https://download-installer.cdn.mozilla.net/pub/firefox/releases/" + v + "/linux-x86_64/en-US/firefox-" + v + ".tar.bz2",
		Name:    "firefox.tar.bz2",
		Browser: true,
	}
}

// LatestRelease returns the asset of the latest release of the GitHub
// repository owner/repo whose name matches assetPattern, to be saved as
// localName.
func LatestRelease(ctx context.Context, gh *github.Client, owner, repo, assetPattern, localName string) (File, error) {
	re, err := regexp.Compile(assetPattern)
	if err != nil {
		return File{}, fmt.Errorf("invalid asset name regular expression %q: %w", assetPattern, err)
	}
	rel, _, err := gh.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return File{}, fmt.Errorf("latest release of %s/%s: %w", owner, repo, err)
	}
	for _, a := range rel.Assets {
		if !re.MatchString(a.GetName()) {
			continue
		}
		u := a.GetBrowserDownloadURL()
		if u == "" {
			return File{}, fmt.Errorf("%s does not have a download URL", a.GetName())
		}
		return File{URL: u, Name: localName}, nil
	}
	return File{}, fmt.Errorf("release asset %s not found at https://github.com/%s/%s/releases", assetPattern, owner, repo)
}

// Bucket is the read-only view of a Cloud Storage bucket used to locate
// Chromium snapshots.
type Bucket interface {
	Attrs(ctx context.Context, object string) (*storage.ObjectAttrs, error)
	ReadAll(ctx context.Context, object string) ([]byte, error)
}

type gcsBucket struct {
	bkt *storage.BucketHandle
}

// ChromiumBucket opens the public Chromium snapshot bucket anonymously.
func ChromiumBucket(ctx context.Context, opts ...option.ClientOption) (Bucket, error) {
	opts = append([]option.ClientOption{option.WithoutAuthentication()}, opts...)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create a storage client for downloading Chromium: %w", err)
	}
	return gcsBucket{client.Bucket(chromiumBucket)}, nil
}

func (b gcsBucket) Attrs(ctx context.Context, object string) (*storage.ObjectAttrs, error) {
	return b.bkt.Object(object).Attrs(ctx)
}

func (b gcsBucket) ReadAll(ctx context.Context, object string) ([]byte, error) {
	r, err := b.bkt.Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

const (
	chromiumBucket = "chromium-browser-snapshots"
	chromiumPrefix = "Linux_x64"
)

// Chromium describes how to download ChromeDriver, and the browser if
// browser is set, from the given Chromium snapshot build. An empty build
// selects the latest one.
func Chromium(ctx context.Context, bkt Bucket, build string, browser bool) ([]File, error) {
	gcsPath := fmt.Sprintf("gs://%s/", chromiumBucket)
	if build == "" {
		lastChange := path.Join(chromiumPrefix, "LAST_CHANGE")
		data, err := bkt.ReadAll(ctx, lastChange)
		if err != nil {
			return nil, fmt.Errorf("cannot read from %s%s: %w", gcsPath, lastChange, err)
		}
		build = strings.TrimSpace(string(data))
	}

	var files []File
	add := func(object string, f File) error {
		obj := path.Join(chromiumPrefix, build, object)
		attrs, err := bkt.Attrs(ctx, obj)
		if err != nil {
			return fmt.Errorf("cannot get the attributes of %s%s: %w", gcsPath, obj, err)
		}
		f.URL = attrs.MediaLink
		if len(attrs.MD5) > 0 {
			f.Hash, f.HashType = hex.EncodeToString(attrs.MD5), "md5"
		}
		files = append(files, f)
		return nil
	}
	if browser {
		if err := add("chrome-linux.zip", File{Name: "chrome-linux.zip", Browser: true}); err != nil {
			return nil, err
		}
	}
	err := add("chromedriver_linux64.zip", File{
		Name:   "chromedriver.zip",
		Rename: []string{"chromedriver_linux64/chromedriver", "chromedriver"},
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Download fetches file into dir unless a copy with the expected hash is
// already there, then unpacks and renames it.
func Download(ctx context.Context, client *http.Client, file File, dir string) error {
	if file.Hash != "" && sameHash(file, dir) {
		glog.Infof("Skipping file %q which has already been downloaded.", file.Name)
	} else {
		glog.Infof("Downloading %q from %q", file.Name, file.URL)
		if err := fetch(ctx, client, file, dir); err != nil {
			return err
		}
	}

	if args := unpackArgs(file, dir); args != nil {
		glog.Infof("Unpacking %q", file.Path(dir))
		if out, err := execCommand(ctx, args[0], args[1:]...).CombinedOutput(); err != nil {
			return fmt.Errorf("error unpacking %q: %v\n%s", file.Name, err, out)
		}
	}

	if rename := file.Rename; len(rename) == 2 {
		from := filepath.Join(dir, rename[0])
		to := filepath.Join(dir, rename[1])
		glog.Infof("Renaming %q to %q", from, to)
		os.RemoveAll(to) // Ignore error.
		if err := os.Rename(from, to); err != nil {
			glog.Warningf("Error renaming %q to %q: %v", from, to, err)
		}
	}
	return nil
}

// All downloads files into dir, at most limit at a time. A limit below one
// means no limit.
func All(ctx context.Context, client *http.Client, files []File, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0755); err != nil && dir != "" {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := Download(ctx, client, file, dir); err != nil {
				return fmt.Errorf("error handling %s: %w", file.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

var execCommand = exec.CommandContext

func unpackArgs(file File, dir string) []string {
	if dir == "" {
		dir = "."
	}
	switch path.Ext(file.Name) {
	case ".zip":
		return []string{"unzip", "-d", dir, "-o", file.Path(dir)}
	case ".gz":
		return []string{"tar", "-xzf", file.Path(dir), "-C", dir}
	case ".bz2":
		return []string{"tar", "-xjf", file.Path(dir), "-C", dir}
	}
	return nil
}

func newHash(hashType string) hash.Hash {
	switch strings.ToLower(hashType) {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	}
	return sha256.New()
}

func fetch(ctx context.Context, client *http.Client, file File, dir string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", file.Name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: error downloading %q: %w", file.Name, file.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: error downloading %q: %s", file.Name, file.URL, resp.Status)
	}

	f, err := os.Create(file.Path(dir))
	if err != nil {
		return fmt.Errorf("error creating %q: %w", file.Path(dir), err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing %q: %w", file.Path(dir), closeErr)
		}
	}()

	h := newHash(file.HashType)
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		return fmt.Errorf("%s: error downloading %q: %w", file.Name, file.URL, err)
	}
	if file.Hash == "" {
		return nil
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != file.Hash {
		return fmt.Errorf("%s: got %s hash %q, want %q", file.Name, hashName(file.HashType), sum, file.Hash)
	}
	return nil
}

func hashName(hashType string) string {
	if hashType == "" {
		return "sha256"
	}
	return hashType
}

func sameHash(file File, dir string) bool {
	f, err := os.Open(file.Path(dir))
	if err != nil {
		return false
	}
	defer f.Close()

	h := newHash(file.HashType)
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if sum != file.Hash {
		glog.Warningf("File %q: got hash %q, expect hash %q", file.Name, sum, file.Hash)
		return false
	}
	return true
}

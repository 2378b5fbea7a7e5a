package foundation

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tebeka/selenium"
)

// Page is a page object bound to a driver.
type Page interface {
	Driver() selenium.WebDriver
}

// PageType describes how to construct a page object.
type PageType struct {
	Name string
	// Path is the page's location relative to the target URI, used when the
	// marker does not name one.
	Path string
	// New wraps the opened page. Page objects usually embed the *BasePage.
	New func(base *BasePage) Page
}

// InitialPage is the marker naming a page to open before a test body runs.
type InitialPage struct {
	Type *PageType
	// Path overrides Type.Path.
	Path string
}

func (ip *InitialPage) String() string {
	if ip == nil || ip.Type == nil {
		return "<no page type>"
	}
	return ip.Type.Name
}

// BasePage is the driver-facing part of a page object.
type BasePage struct {
	driver     selenium.WebDriver
	url        string
	acquiredAt time.Time
}

// NewBasePage returns a page for wd at url.
func NewBasePage(wd selenium.WebDriver, url string) *BasePage {
	return &BasePage{driver: wd, url: url, acquiredAt: time.Now()}
}

// Driver returns the driver the page was opened with.
func (p *BasePage) Driver() selenium.WebDriver { return p.driver }

// URL returns the address the page was opened at.
func (p *BasePage) URL() string { return p.url }

// AcquiredAt returns when the page was opened.
func (p *BasePage) AcquiredAt() time.Time { return p.acquiredAt }

// OpenInitialPage navigates wd to the page named by ip, resolved against
// targetURI, and returns the constructed page object.
func OpenInitialPage(ip *InitialPage, wd selenium.WebDriver, targetURI string) (Page, error) {
	if ip == nil || ip.Type == nil || ip.Type.New == nil {
		return nil, ErrNoPageType
	}
	path := ip.Path
	if path == "" {
		path = ip.Type.Path
	}
	u, err := resolvePageURL(targetURI, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ip.Type.Name, err)
	}
	if err := wd.Get(u); err != nil {
		return nil, fmt.Errorf("%s: opening %q: %w", ip.Type.Name, u, err)
	}
	return ip.Type.New(NewBasePage(wd, u)), nil
}

// resolvePageURL resolves ref against base following RFC 3986.
func resolvePageURL(base, ref string) (string, error) {
	if base == "" {
		r, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("failed to parse page path %q: %w", ref, err)
		}
		if !r.IsAbs() {
			return "", errors.New("no target URI configured for a relative page path")
		}
		return r.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse target URI %q: %w", base, err)
	}
	if ref == "" {
		return baseURL.String(), nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse page path %q: %w", ref, err)
	}
	return baseURL.ResolveReference(r).String(), nil
}

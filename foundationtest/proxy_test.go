package foundationtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestStartProxy(t *testing.T) {
	site := httptest.NewServer(Handler)
	defer site.Close()

	proxy := StartProxy(t, site.URL)
	client := &http.Client{Transport: &http.Transport{
		Proxy: http.ProxyURL(&url.URL{Scheme: "socks5", Host: proxy}),
	}}
	resp, err := client.Get(DefaultTargetURI + "other")
	if err != nil {
		t.Fatalf("Get() through the proxy returned error: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Selenium Foundation Test Site - Other Page"; !strings.Contains(string(body), want) {
		t.Errorf("page served through the proxy lacks %q:\n%s", want, body)
	}
}

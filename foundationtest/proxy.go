package foundationtest

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"testing"

	socks5 "github.com/armon/go-socks5"
)

// addrRewriter rewrites all requested addresses to the one specified by the
// URL.
type addrRewriter struct {
	host string
	port int
}

func (a *addrRewriter) Rewrite(ctx context.Context, _ *socks5.Request) (context.Context, *socks5.AddrSpec) {
	return ctx, &socks5.AddrSpec{FQDN: a.host, Port: a.port}
}

// anyHost resolves every name, so that requests for made-up hosts reach the
// rewriter.
type anyHost struct{}

func (anyHost) Resolve(ctx context.Context, name string) (context.Context, net.IP, error) {
	return ctx, net.IPv4(127, 0, 0, 1), nil
}

// StartProxy starts a SOCKS5 proxy that sends every connection to the host
// of target, so that a browser can open pages under DefaultTargetURI while
// they are served by a local test server. It returns the proxy's host:port
// and stops the proxy when the test ends.
func StartProxy(t testing.TB, target string) string {
	t.Helper()
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("url.Parse(%q) returned error: %v", target, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("target %q has no port: %v", target, err)
	}
	socks, err := socks5.New(&socks5.Config{
		Resolver: anyHost{},
		Rewriter: &addrRewriter{host: u.Hostname(), port: port},
	})
	if err != nil {
		t.Fatalf("socks5.New(_) returned error: %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen(_, _) returned error: %v", err)
	}

	// Serve until the listener is closed at the end of the test.
	done := make(chan struct{})
	go func() {
		defer close(done)
		socks.Serve(l)
	}()
	t.Cleanup(func() {
		l.Close()
		<-done
	})
	return l.Addr().String()
}

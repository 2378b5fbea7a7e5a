package foundation

import (
	"errors"
	"testing"
)

func TestResolvePageURL(t *testing.T) {
	for _, tc := range []struct {
		desc, base, ref string
		want            string
		wantErr         bool
	}{
		{desc: "base only", base: "http://example.com/app/", want: "http://example.com/app/"},
		{desc: "relative path", base: "http://example.com/app/", ref: "login", want: "http://example.com/app/login"},
		{desc: "absolute path", base: "http://example.com/app/", ref: "/login", want: "http://example.com/login"},
		{desc: "parent", base: "http://example.com/app/page/", ref: "../other", want: "http://example.com/app/other"},
		{desc: "query", base: "http://example.com/app/", ref: "search?q=go", want: "http://example.com/app/search?q=go"},
		{desc: "absolute reference", base: "http://example.com/app/", ref: "https://other.com/x", want: "https://other.com/x"},
		{desc: "no base, absolute reference", ref: "https://other.com/x", want: "https://other.com/x"},
		{desc: "no base, relative reference", ref: "login", wantErr: true},
		{desc: "bad base", base: "http://[::1", ref: "login", wantErr: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := resolvePageURL(tc.base, tc.ref)
			if tc.wantErr {
				if err == nil {
					t.Errorf("resolvePageURL(%q, %q) = %q, want error", tc.base, tc.ref, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolvePageURL(%q, %q) returned error: %v", tc.base, tc.ref, err)
			}
			if got != tc.want {
				t.Errorf("resolvePageURL(%q, %q) = %q, want %q", tc.base, tc.ref, got, tc.want)
			}
		})
	}
}

func TestOpenInitialPageWithoutType(t *testing.T) {
	for _, ip := range []*InitialPage{nil, {}, {Type: &PageType{Name: "NoConstructor"}}} {
		if _, err := OpenInitialPage(ip, nil, "http://example.com/"); !errors.Is(err, ErrNoPageType) {
			t.Errorf("OpenInitialPage(%v) returned %v, want ErrNoPageType", ip, err)
		}
	}
}

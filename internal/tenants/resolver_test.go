package tenants

import (
	"net/http/httptest"
	"testing"
)

func TestHeaderOverrideWins(t *testing.T) {
	res := NewResolver(Options{
		BaseDomain:    "lms.courseloop.io",
		HostIsTenant:  true,
		HeaderKey:     "X-CL-Tenant",
		DefaultTenant: "local",
	})
	r := httptest.NewRequest("GET", "http://acme.lms.courseloop.io/", nil)
	r.Header.Set("X-CL-Tenant", "Beta")

	got, err := res.Resolve(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != "beta" {
		t.Fatalf("tenant = %q, want beta", got)
	}
}

func TestHostSubdomain(t *testing.T) {
	res := NewResolver(Options{BaseDomain: "lms.courseloop.io", HostIsTenant: true, DefaultTenant: "local"})

	cases := []struct {
		host string
		want string
	}{
		{"acme.lms.courseloop.io", "acme"},
		{"acme.lms.courseloop.io:8443", "acme"},
		{"lms.courseloop.io", "local"}, // bare base domain falls back
		{"other.example.com", "local"}, // unrelated host falls back
		{"a.b.lms.courseloop.io", "a"}, // leftmost label only
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "http://placeholder/", nil)
		r.Host = tc.host
		got, err := res.Resolve(r)
		if err != nil {
			t.Fatalf("%s: %v", tc.host, err)
		}
		if got != tc.want {
			t.Errorf("%s: tenant = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestBadHeaderTokenRejected(t *testing.T) {
	res := NewResolver(Options{HeaderKey: "X-CL-Tenant", DefaultTenant: "local"})
	r := httptest.NewRequest("GET", "http://x/", nil)
	r.Header.Set("X-CL-Tenant", "no spaces allowed")

	if _, err := res.Resolve(r); err == nil {
		t.Fatal("expected error for invalid tenant token")
	}
}

func TestNoTenantAnywhere(t *testing.T) {
	res := NewResolver(Options{})
	r := httptest.NewRequest("GET", "http://x/", nil)
	if _, err := res.Resolve(r); err == nil {
		t.Fatal("expected resolution failure with no sources configured")
	}
}

func TestContextRoundTrip(t *testing.T) {
	r := httptest.NewRequest("GET", "http://x/", nil)
	ctx := WithTenant(r.Context(), "acme")
	if got := FromContext(ctx); got != "acme" {
		t.Fatalf("tenant from context = %q", got)
	}
	if got := FromContext(r.Context()); got != "" {
		t.Fatalf("empty context should yield empty tenant, got %q", got)
	}
}

package tenants

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
)

var (
	errNoTenant       = errors.New("tenants: could not resolve tenant")
	errBadTenantToken = errors.New("tenants: invalid tenant identifier")
)

// Resolver resolves the current tenant from an HTTP request.
type Resolver interface {
	Resolve(r *http.Request) (tenantID string, err error)
}

// Options controls multi-tenant resolution.
//
// Typical host-based setup:
//
//	BaseDomain:   "lms.courseloop.io"
//	HostIsTenant: true               // {tenant}.lms.courseloop.io
//
// Header override (for tests/internal routing):
//
//	HeaderKey:    "X-CL-Tenant"      // if present, takes precedence
type Options struct {
	BaseDomain    string // e.g. "lms.courseloop.io" (no scheme)
	HostIsTenant  bool   // true => {tenant}.{BaseDomain}
	HeaderKey     string // optional override header
	DefaultTenant string // fallback when tenant could not be inferred
}

func NewResolver(opts Options) Resolver {
	return &resolver{opts: opts}
}

type resolver struct{ opts Options }

func (u *resolver) Resolve(r *http.Request) (string, error) {
	// 1) Header override (highest priority)
	if u.opts.HeaderKey != "" {
		if v := strings.TrimSpace(r.Header.Get(u.opts.HeaderKey)); v != "" {
			tenant := sanitizeTenant(v)
			if tenant == "" {
				return "", errBadTenantToken
			}
			return tenant, nil
		}
	}

	// 2) Host-based tenant, e.g., {tenant}.lms.courseloop.io
	if u.opts.HostIsTenant {
		if tenant := u.tenantFromHost(r); tenant != "" {
			return tenant, nil
		}
	}

	// 3) Fallback default
	if u.opts.DefaultTenant != "" {
		tenant := sanitizeTenant(u.opts.DefaultTenant)
		if tenant == "" {
			return "", errBadTenantToken
		}
		return tenant, nil
	}

	return "", errNoTenant
}

// tenantFromHost extracts {tenant} from {tenant}.{BaseDomain}.
func (u *resolver) tenantFromHost(r *http.Request) string {
	host := hostWithoutPort(r.Host)
	base := strings.ToLower(strings.TrimSpace(u.opts.BaseDomain))
	if host == "" || base == "" {
		return ""
	}
	if strings.EqualFold(host, base) {
		return "" // exact base domain => no subdomain
	}
	suffix := "." + base
	if !strings.HasSuffix(strings.ToLower(host), suffix) {
		return ""
	}
	rest := host[:len(host)-len(suffix)]
	if rest == "" {
		return ""
	}
	labels := strings.Split(rest, ".")
	return sanitizeTenant(labels[0])
}

var tenantRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

func sanitizeTenant(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !tenantRe.MatchString(s) {
		return ""
	}
	return s
}

func hostWithoutPort(h string) string {
	if h == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return strings.ToLower(h)
}

// ---- tenant in context ----

type ctxKey struct{}

var ctxKeyTenant = ctxKey{}

func WithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTenant, id)
}

func FromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyTenant); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Middleware resolves the tenant once per request and stores it in the
// context. Unresolvable tenants are rejected before any handler runs.
func Middleware(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := res.Resolve(r)
			if err != nil {
				http.Error(w, "unknown tenant", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), id)))
		})
	}
}

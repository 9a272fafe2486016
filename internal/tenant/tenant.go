// Package tenant resolves the organization a request belongs to. Every
// dance organization on the platform is one tenant; storage queries and
// cache keys are always scoped by the resolved org.
package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const orgContextKey contextKey = "tenant.org"

// Resolver resolves organization slugs from a request header or the
// subdomain under the platform's root domain.
type Resolver struct {
	HeaderName string
	RootDomain string
	DefaultOrg string
}

// NewResolver returns a resolver using headerName (default "X-Org-ID"),
// rootDomain for subdomain resolution, and an optional fallback org slug.
func NewResolver(headerName, rootDomain, defaultOrg string) *Resolver {
	if headerName == "" {
		headerName = "X-Org-ID"
	}
	return &Resolver{
		HeaderName: headerName,
		RootDomain: strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultOrg: strings.TrimSpace(defaultOrg),
	}
}

// Middleware injects the resolved org slug into the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		org := r.Resolve(req)
		if org == "" {
			org = r.DefaultOrg
		}
		if org != "" {
			req = req.WithContext(WithOrg(req.Context(), org))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve finds the org slug from the configured header or the request
// subdomain. The header wins so staff tooling can impersonate an org.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if org := strings.TrimSpace(req.Header.Get(r.HeaderName)); org != "" {
		return org
	}
	host := hostWithoutPort(req.Host)
	if host == "" {
		return ""
	}
	return strings.TrimSpace(r.subdomainFromHost(host))
}

func (r *Resolver) subdomainFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if r.RootDomain != "" {
		if host == r.RootDomain {
			return ""
		}
		suffix := "." + r.RootDomain
		if !strings.HasSuffix(host, suffix) {
			return ""
		}
		host = strings.TrimSuffix(host, suffix)
	}
	parts := strings.Split(host, ".")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if idx := strings.Index(hostport, "]"); idx != -1 && hostport[1:idx] != "" {
			return hostport[1:idx]
		}
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	if idx := strings.Index(hostport, ":"); idx != -1 && strings.Count(hostport, ":") == 1 {
		return hostport[:idx]
	}
	return hostport
}

// WithOrg stores the org slug inside the context.
func WithOrg(ctx context.Context, org string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, orgContextKey, org)
}

// From extracts the org slug from the context if available.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	org, ok := ctx.Value(orgContextKey).(string)
	org = strings.TrimSpace(org)
	if !ok || org == "" {
		return "", false
	}
	return org, true
}

// PrefixKey namespaces a cache or queue key by org slug.
func PrefixKey(org, key string) string {
	if org == "" {
		return key
	}
	return org + ":" + key
}

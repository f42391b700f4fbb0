package tenant

import (
	"strings"

	"courier/internal/config"
	"courier/internal/constants"
)

// Resolver maps an incoming request to a tenant id using the configured
// strategy. It is built once at startup and is safe for concurrent use.
type Resolver struct {
	strategy string
	staticID string
	header   string
}

func NewResolver(cfg config.TenantConfig) *Resolver {
	header := cfg.Header
	if header == "" {
		header = constants.TenantHeader
	}
	staticID := cfg.StaticID
	if staticID == "" {
		staticID = constants.DefaultTenantID
	}
	return &Resolver{
		strategy: cfg.Strategy,
		staticID: staticID,
		header:   header,
	}
}

// Resolve picks the tenant id for a request. headerGet reads a request
// header by name; it may be nil for non-HTTP callers.
func (r *Resolver) Resolve(host string, headerGet func(string) string) string {
	switch r.strategy {
	case "host":
		if host != "" {
			// Strip a port if present, then require a subdomain:
			// tenant.example.com has three labels, example.com has two.
			if idx := strings.IndexByte(host, ':'); idx >= 0 {
				host = host[:idx]
			}
			parts := strings.Split(host, ".")
			if len(parts) > 2 {
				return parts[0]
			}
		}
	case "header":
		if headerGet != nil {
			if id := headerGet(r.header); id != "" {
				return id
			}
		}
	}
	return r.staticID
}

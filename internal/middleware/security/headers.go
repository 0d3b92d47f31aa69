package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginResource string
	// CacheControl applies to every response. Statistics are per user, so
	// shared caches must not keep them.
	CacheControl string
}

// DefaultHeadersConfig suits a JSON and CSV API that never serves markup.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'self'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{config: config}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		set := func(name, value string) {
			if value != "" {
				headers.Set(name, value)
			}
		}
		set("Content-Security-Policy", h.config.CSP)
		set("X-Frame-Options", h.config.XFrameOptions)
		set("X-Content-Type-Options", h.config.XContentTypeOptions)
		set("Referrer-Policy", h.config.ReferrerPolicy)
		set("Permissions-Policy", h.config.PermissionsPolicy)
		set("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)
		set("Cache-Control", h.config.CacheControl)

		// Only meaningful over TLS.
		if r.TLS != nil {
			set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

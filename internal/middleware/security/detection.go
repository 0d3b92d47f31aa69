// Package security sets response hardening headers and works out which
// client a request really came from.
package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"fintrack/internal/log"
)

// Detector resolves client addresses behind trusted proxies and flags
// requests that look like scanner probes. Flagged requests are logged,
// not blocked.
type Detector struct {
	trustedProxies []*net.IPNet
	suspicious     atomic.Int64
}

var defaultTrusted = []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}

var probePatterns = []string{
	"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin",
	"etc/passwd", "<script", "union select",
}

func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range defaultTrusted {
		if err := d.AddTrustedProxy(cidr); err != nil {
			panic(err)
		}
	}
	return d
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	peer := net.ParseIP(directIP)
	if peer == nil || !d.trusted(peer) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) trusted(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Suspicious reports whether the path or query contains a known probe pattern.
func (d *Detector) Suspicious(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	if len(target) > 2048 {
		return true
	}
	for _, p := range probePatterns {
		if strings.Contains(target, p) {
			return true
		}
	}
	return false
}

// SuspiciousCount is the number of flagged requests so far.
func (d *Detector) SuspiciousCount() int64 {
	return d.suspicious.Load()
}

func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.Suspicious(r) {
			d.suspicious.Add(1)
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).Warn("Suspicious request",
				log.NewFields().
					WithClientIP(d.ExtractClientIP(r)).
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
					ToSlice()...)
		}
		next.ServeHTTP(w, r)
	})
}

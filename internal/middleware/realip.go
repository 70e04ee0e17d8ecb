package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIP rewrites X-Real-IP from forwarding headers, but only when the
// direct peer is one of the trusted proxies. Requests from anywhere else
// have their X-Real-IP replaced by the socket address so a client cannot
// spoof the IP used for rate limiting.
type RealIP struct {
	prefixes []netip.Prefix
}

// NewRealIP parses trustedProxies as addresses or CIDRs. Unparseable
// entries are ignored.
func NewRealIP(trustedProxies []string) *RealIP {
	m := &RealIP{}
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		if p, err := netip.ParsePrefix(proxy); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(proxy); err == nil {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return m
}

// Handler returns the middleware handler.
func (m *RealIP) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := m.clientIP(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RealIP) clientIP(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	if !m.trusted(remote) {
		return remote
	}

	// Cloudflare's header takes priority.
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return strings.TrimSpace(cf)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return remote
}

func (m *RealIP) trusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

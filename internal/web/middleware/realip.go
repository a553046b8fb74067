package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the rate limit key for requests without X-Forwarded-For.
const UnknownClient = "unknown"

// TrustedRealIP rewrites RemoteAddr from X-Real-IP or X-Forwarded-For, but
// only when the connection comes from a trusted proxy CIDR. Otherwise the
// original RemoteAddr is kept.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	trustedNets := parseCIDRs(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isTrusted(extractIP(r.RemoteAddr), trustedNets) {
				if ip := headerIP(r); ip != nil {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ForwardedClientKey identifies the caller for rate limiting: the first
// entry of X-Forwarded-For, trimmed, or UnknownClient when the header is
// absent or blank. The value is not validated as an IP address.
func ForwardedClientKey(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if idx := strings.Index(xff, ","); idx >= 0 {
		xff = xff[:idx]
	}
	if key := strings.TrimSpace(xff); key != "" {
		return key
	}
	return UnknownClient
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}

		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Single addresses ("127.0.0.1") are accepted as /32 or /128.
			if ip := net.ParseIP(cidr); ip != nil {
				mask := net.CIDRMask(128, 128)
				if ip.To4() != nil {
					mask = net.CIDRMask(32, 32)
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: mask})
			} else {
				slog.Warn("realip: invalid trusted proxy CIDR, skipping",
					"cidr", cidr,
					"error", err,
				)
			}
			continue
		}
		nets = append(nets, network)
	}
	return nets
}

// headerIP returns the validated client IP from X-Real-IP, falling back to
// the first X-Forwarded-For entry.
func headerIP(r *http.Request) net.IP {
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return net.ParseIP(strings.TrimSpace(rip))
	}
	if r.Header.Get("X-Forwarded-For") == "" {
		return nil
	}
	return net.ParseIP(ForwardedClientKey(r))
}

// extractIP parses an IP address from a host:port string or plain IP.
func extractIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

package httpserver

import (
	"net"
	"net/http"
	"strings"
)

// effectiveClientIP resolves the address SPEC_FULL.md §4.3 step c
// describes: the TCP peer, or the first element of a trusted peer's
// X-Forwarded-For header. isIPv6 governs whether /ip and /claim are
// allowed; forwarded reports whether the header was honored at all (for
// access logging).
func (s *Server) effectiveClientIP(conn net.Conn, req *http.Request) (ip net.IP, isIPv6 bool, forwarded bool) {
	peerHost, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	peer := net.ParseIP(peerHost)

	xff := req.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer, isIPv6Addr(peer), false
	}

	if peer == nil || !s.Trust.IsTrustedProxy(peer) {
		s.Metrics.Unproxied.Inc()
		return peer, isIPv6Addr(peer), false
	}

	first, sawOnlyIPv6 := firstIPv4InForwardedFor(xff)
	if first == nil {
		if sawOnlyIPv6 {
			s.Metrics.IPv6Forwards.Inc()
		}
		return peer, true, true
	}

	s.Metrics.Proxied.Inc()
	return first, false, true
}

// firstIPv4InForwardedFor scans a comma-separated X-Forwarded-For value for
// the first syntactically valid IPv4 address. If every element parses as
// an address but none is IPv4, sawOnlyIPv6 is true.
func firstIPv4InForwardedFor(header string) (ip net.IP, sawOnlyIPv6 bool) {
	sawAny := false
	for _, part := range strings.Split(header, ",") {
		candidate := strings.TrimSpace(part)
		parsed := net.ParseIP(candidate)
		if parsed == nil {
			continue
		}
		sawAny = true
		if v4 := parsed.To4(); v4 != nil {
			return v4, false
		}
	}
	return nil, sawAny
}

func isIPv6Addr(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.To4() == nil
}

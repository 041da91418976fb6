package httpserver

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"turfwar/internal/asset"
	"turfwar/internal/metrics"
	"turfwar/internal/queue"
	"turfwar/internal/validate"

	"github.com/rs/zerolog"
)

// readAndRoute reads one HTTP message from br, routes it, writes a
// response on conn, and reports whether the connection must close after
// this message (per the keepalive-eligibility rule in SPEC_FULL.md §4.3
// step 2.g).
func (s *Server) readAndRoute(conn net.Conn, br *bufio.Reader, log zerolog.Logger) (closeAfter bool, err error) {
	req, err := http.ReadRequest(br)
	if err != nil {
		if isReadFailure(err) {
			s.Metrics.ReadFails.Inc()
		} else {
			s.Metrics.ParseFails.Inc()
		}
		return true, err
	}
	defer req.Body.Close()

	if req.ProtoMajor != 1 || req.ProtoMinor != 1 {
		s.Metrics.BadVersions.Inc()
		_ = s.writeResponse(conn, 505, nil, []byte("HTTP Version Not Supported"), false)
		return true, nil
	}

	peerIP, isIPv6, forwarded := s.effectiveClientIP(conn, req)
	s.Metrics.Messages.Inc()

	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Str("peer", peerIP.String()).Msg("request")

	forceClose := false

	switch {
	case req.URL.Path == "/statusz":
		s.Metrics.StatuszRequests.Inc()
		s.handleStatusz(conn, req)
		return true, nil

	case matchesAssetPrefix(req.URL.Path, "/ip"):
		forceClose = s.handleIP(conn, req, peerIP, isIPv6)

	case matchesAssetPrefix(req.URL.Path, "/claim"):
		forceClose = s.handleClaim(conn, req, peerIP, isIPv6)

	default:
		if cell, ct, ok := s.routeAsset(req.URL.Path); ok {
			s.serveAsset(conn, req, cell, ct)
		} else {
			s.Metrics.NotFounds.Inc()
			s.serve404(conn, req)
		}
	}

	_ = forwarded
	return forceClose || !s.keepaliveEligible(req), nil
}

// isReadFailure distinguishes a short/failed/timed-out read (counted as
// ReadFails) from a fully-read but syntactically malformed message
// (counted as ParseFails), per SPEC_FULL.md §7's distinct `read`/`parse`
// error classes. A connection closing or timing out before a full
// request line/headers arrive never reached the parser proper.
func isReadFailure(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// matchesAssetPrefix implements the spec's "exact or prefix match" rule for
// routes like /ip and /claim, which may carry a trailing query string or
// path fragment (e.g. /ip.json).
func matchesAssetPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+".") || strings.HasPrefix(path, prefix+"/")
}

// routeAsset maps a request path to its backing cell and content type,
// longest-prefix-first for /score/*, matching SPEC_FULL.md §4.3 step e.
func (s *Server) routeAsset(path string) (*asset.Cell, string, bool) {
	switch {
	case path == "/" || matchesAssetPrefix(path, "/index.html"):
		return s.Assets.Index, "text/html", true
	case matchesAssetPrefix(path, "/about.html"):
		return s.Assets.About, "text/html", true
	case matchesAssetPrefix(path, "/user.html"):
		return s.Assets.User, "text/html", true
	case matchesAssetPrefix(path, "/favicon.ico"):
		return s.Assets.Favicon, "image/x-icon", true
	case matchesAssetPrefix(path, "/score/month"):
		return s.Assets.ScoreMonth, "application/json", true
	case matchesAssetPrefix(path, "/score/week"):
		return s.Assets.ScoreWeek, "application/json", true
	case matchesAssetPrefix(path, "/score/day"):
		return s.Assets.ScoreDay, "application/json", true
	case matchesAssetPrefix(path, "/score/hour"):
		return s.Assets.ScoreHour, "application/json", true
	case matchesAssetPrefix(path, "/score"):
		return s.Assets.Score, "application/json", true
	case matchesAssetPrefix(path, "/recent"):
		return s.Assets.Recent, "application/json", true
	default:
		return nil, "", false
	}
}

// serveAsset implements 304/200 negotiation, gzip negotiation, and HEAD
// suppression, per SPEC_FULL.md §4.3 step f and testable property 4.
func (s *Server) serveAsset(conn net.Conn, req *http.Request, cell *asset.Cell, contentType string) {
	snap := cell.Read()

	if ims := req.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !snap.Mtime.Truncate(time.Second).After(t) {
			headers := []string{
				"Last-Modified: " + snap.LastModified + "\r\n",
				"Vary: Accept-Encoding\r\n",
			}
			_ = s.writeResponse(conn, 304, headers, nil, true)
			return
		}
	}

	acceptsGzip := strings.Contains(req.Header.Get("Accept-Encoding"), "gzip")
	useGzip := acceptsGzip && len(snap.Gzip) > 0 && len(snap.Gzip) < len(snap.Raw)

	body := snap.Raw
	headers := []string{
		"Content-Type: " + pick(contentType, snap.ContentType) + "\r\n",
		"Last-Modified: " + snap.LastModified + "\r\n",
		"Vary: Accept-Encoding\r\n",
		"Cache-Control: max-age=" + strconv.Itoa(snap.MaxAge) + ", must-revalidate\r\n",
	}
	if useGzip {
		body = snap.Gzip
		headers = append(headers, "Content-Encoding: gzip\r\n")
	}

	suppressBody := req.Method == http.MethodHead
	_ = s.writeResponse(conn, 200, headers, body, suppressBody)
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func (s *Server) serve404(conn net.Conn, req *http.Request) {
	body := []byte("<html><body><h1>404 Not Found</h1></body></html>")
	headers := []string{"Content-Type: text/html\r\n"}
	_ = s.writeResponse(conn, 404, headers, body, req.Method == http.MethodHead)
}

// handleIP serves GET /ip*: the dotted-quad IPv4 peer address, or 400 if
// the effective address is IPv6-only. Per SPEC_FULL.md §4.3.c/e the IPv6
// reject is an unconditional close, so it reports that to the caller
// rather than leaving it to keepaliveEligible.
func (s *Server) handleIP(conn net.Conn, req *http.Request, ip net.IP, isIPv6 bool) (forceClose bool) {
	if isIPv6 {
		_ = s.writeResponse(conn, 400, []string{"Content-Type: text/plain\r\n"}, []byte("Need IPv4"), false)
		return true
	}
	body := []byte(ip.String())
	headers := []string{"Content-Type: text/plain\r\n"}
	_ = s.writeResponse(conn, 200, headers, body, req.Method == http.MethodHead)
	return false
}

// handleClaim serves GET /claim?name=NICK: validates, enqueues with a 50ms
// deadline, and content-negotiates the success response by Accept. The
// IPv6 reject, invalid-name 400, and queue-full 502 outcomes are all
// unconditional closes per SPEC_FULL.md §4.3.e and §7 (`invalidname`,
// `queuefull`), so each reports that to the caller.
func (s *Server) handleClaim(conn net.Conn, req *http.Request, ip net.IP, isIPv6 bool) (forceClose bool) {
	if isIPv6 {
		_ = s.writeResponse(conn, 400, []string{"Content-Type: text/plain\r\n"}, []byte("Need IPv4"), false)
		return true
	}

	name := req.URL.Query().Get("name")
	if !validate.IsValidNick(name) {
		s.Metrics.InvalidNames.Inc()
		_ = s.writeResponse(conn, 400, []string{"Content-Type: text/plain\r\n"}, []byte("invalid name"), false)
		return true
	}

	ipv4 := ip.To4()
	if ipv4 == nil {
		_ = s.writeResponse(conn, 400, []string{"Content-Type: text/plain\r\n"}, []byte("Need IPv4"), false)
		return true
	}
	ipUint := uint32(ipv4[0])<<24 | uint32(ipv4[1])<<16 | uint32(ipv4[2])<<8 | uint32(ipv4[3])

	claim := queue.Claim{IP: ipUint, Nick: name, Created: s.claimTimestamp()}
	ok := s.Queue.Enqueue(claim, time.Now().Add(ClaimDeadline), s.Shutdown.Done())
	if !ok {
		s.Metrics.QueueFulls.Inc()
		_ = s.writeResponse(conn, 502, []string{"Content-Type: text/plain\r\n"}, []byte("Claims Queue Full"), false)
		return true
	}

	s.writeClaimSuccess(conn, req, ip, name)
	return false
}

func (s *Server) claimTimestamp() int64 {
	return s.now.Unix()
}

func (s *Server) writeClaimSuccess(conn net.Conn, req *http.Request, ip net.IP, name string) {
	accept := req.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "image/gif") || strings.Contains(accept, "image/*"):
		headers := []string{"Content-Type: image/gif\r\n"}
		_ = s.writeResponse(conn, 200, headers, transparentGIF, req.Method == http.MethodHead)

	case strings.Contains(accept, "text/plain") && !strings.Contains(accept, "text/html"):
		body := []byte("The land at " + ip.String() + " was claimed for " + name)
		headers := []string{"Content-Type: text/plain\r\n"}
		_ = s.writeResponse(conn, 200, headers, body, req.Method == http.MethodHead)

	case accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "text/*") || strings.Contains(accept, "*/*"):
		body := []byte(`<html><body>Claimed. <a href="/user.html?name=` + name + `">` + name + `</a></body></html>`)
		headers := []string{"Content-Type: text/html\r\n"}
		_ = s.writeResponse(conn, 200, headers, body, req.Method == http.MethodHead)

	default:
		_ = s.writeResponse(conn, 204, nil, nil, true)
	}
}

// handleStatusz serves the plain-text whitebox metrics report.
func (s *Server) handleStatusz(conn net.Conn, req *http.Request) {
	body := []byte(metrics.Render(s.Metrics, s.Workers, time.Now()))
	headers := []string{"Content-Type: text/plain\r\n"}
	_ = s.writeResponse(conn, 200, headers, body, req.Method == http.MethodHead)
}

// keepaliveEligible implements SPEC_FULL.md §4.3 step g: the connection may
// stay open only for GET/HEAD requests carrying no body-length framing.
func (s *Server) keepaliveEligible(req *http.Request) bool {
	if s.Shutdown.Fired() {
		return false
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return false
	}
	if req.ContentLength > 0 {
		return false
	}
	if len(req.TransferEncoding) > 0 {
		return false
	}
	return true
}

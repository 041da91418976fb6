package httpserver

import (
	"fmt"
	"net"
	"strconv"
)

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 502:
		return "Bad Gateway"
	case 505:
		return "HTTP Version Not Supported"
	default:
		return "OK"
	}
}

// commonHeaders are present on every response per SPEC_FULL.md §6.
func (s *Server) commonHeaders() []string {
	return []string{
		"Server: turfwar\r\n",
		"Referrer-Policy: origin\r\n",
		"Access-Control-Allow-Origin: *\r\n",
		"Date: " + s.now.Date() + "\r\n",
	}
}

// writeResponse composes and sends a response via a single gather-write
// (net.Buffers.WriteTo performs writev(2) where supported), the idiomatic
// match for the original's iovec-based response composition. body is
// omitted for HEAD requests and for 304/204 responses.
func (s *Server) writeResponse(conn net.Conn, status int, extraHeaders []string, body []byte, suppressBody bool) error {
	var head []byte
	head = append(head, fmt.Appendf(nil, "HTTP/1.1 %d %s\r\n", status, statusText(status))...)
	for _, h := range s.commonHeaders() {
		head = append(head, h...)
	}
	for _, h := range extraHeaders {
		head = append(head, h...)
	}
	head = append(head, "Content-Length: "+strconv.Itoa(len(body))+"\r\n\r\n"...)

	bufs := net.Buffers{head}
	if !suppressBody && len(body) > 0 {
		bufs = append(bufs, body)
	}
	_, err := bufs.WriteTo(conn)
	return err
}

// Package middleware holds HTTP middleware shared by the API server.
package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of r.RemoteAddr. Behind a trusted proxy,
// chi's RealIP middleware rewrites RemoteAddr before this runs.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

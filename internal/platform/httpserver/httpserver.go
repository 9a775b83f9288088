// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// Timeouts sized for this service's traffic: every endpoint is a small JSON
// exchange, except subject code allocation which may retry claim attempts
// under contention, so the write timeout carries headroom over the read side.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the server for the given route tree.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

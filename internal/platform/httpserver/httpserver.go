// Package httpserver builds the portal's *http.Server.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// Timeouts bound each phase of a request. WriteTimeout must exceed the
// store's transaction deadline so a slow transition still gets its response.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

// DefaultTimeouts suit JSON request/response traffic.
var DefaultTimeouts = Timeouts{
	ReadHeader: 5 * time.Second,
	Read:       15 * time.Second,
	Write:      30 * time.Second,
	Idle:       60 * time.Second,
}

// New builds a server that reports its own errors, such as failed TLS
// handshakes, through logger at warn level.
func New(addr string, handler http.Handler, logger *slog.Logger, t Timeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		ReadHeaderTimeout: t.ReadHeader,
		ReadTimeout:       t.Read,
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
	}
}

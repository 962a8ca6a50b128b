package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Write and idle timeouts stay generous because
// aggregate reads can fan out across several stores; the handler chain applies
// its own per-request timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

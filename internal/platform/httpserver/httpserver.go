package httpserver

import (
	"net/http"
	"time"
)

// New builds the engine's HTTP server. Header reads are bounded so a slow
// client cannot pin a connection; everything else runs under the request
// context deadlines the handlers set.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}

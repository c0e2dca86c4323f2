/*
Copyright 2011 Google Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package webserver implements the thin http.Server wrapper Verm runs its
// handler under: one-line-per-request logging (when verbose) and a live
// connection count, which the store package's "/_statistics" endpoint reads
// as the connections_current gauge. Request parsing, timeouts, and
// connection lifecycle otherwise stay exactly what net/http already does.
package webserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/willbryant/verm/pkg/webserver/listen"
)

// Server wraps http.Server with request logging and a connection counter.
type Server struct {
	handler  http.Handler
	listener net.Listener
	verbose  bool

	Logger *log.Logger // or nil, in which case the standard logger is used.

	httpServer *http.Server

	mu   sync.Mutex
	reqs int64

	conns int64
}

// New returns a Server logging each request (method, path, response code,
// byte count) when verbose is true. Call Handle before Serve: it's separate
// from New so a handler that itself needs to read the Server's connection
// count (as Verm's /_statistics does) can be built after the Server exists.
func New(verbose bool) *Server {
	s := &Server{verbose: verbose}
	s.httpServer = &http.Server{
		Handler:   s,
		ConnState: s.trackConnState,
	}
	return s
}

// Handle installs the request handler. Must be called once, before Serve.
func (s *Server) Handle(handler http.Handler) {
	s.handler = handler
}

func (s *Server) printf(format string, v ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

func (s *Server) trackConnState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		atomic.AddInt64(&s.conns, 1)
	case http.StateClosed, http.StateHijacked:
		atomic.AddInt64(&s.conns, -1)
	}
}

// ConnectionsCurrent reports the number of connections currently open,
// suitable for the /_statistics connections_current gauge.
func (s *Server) ConnectionsCurrent() int64 {
	return atomic.LoadInt64(&s.conns)
}

// ListenURL returns the http:// URL the server is listening on, once Listen
// has succeeded.
func (s *Server) ListenURL() string {
	if s.listener == nil {
		return ""
	}
	if taddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		if taddr.IP.IsUnspecified() {
			return fmt.Sprintf("http://localhost:%d", taddr.Port)
		}
	}
	return fmt.Sprintf("http://%s", s.listener.Addr())
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	var n int64
	if s.verbose {
		s.mu.Lock()
		s.reqs++
		n = s.reqs
		s.mu.Unlock()
		s.printf("Request #%d: %s %s (from %s) ...", n, req.Method, req.RequestURI, req.RemoteAddr)
		rw = &trackResponseWriter{ResponseWriter: rw}
	}
	s.handler.ServeHTTP(rw, req)
	if s.verbose {
		tw := rw.(*trackResponseWriter)
		s.printf("Request #%d: %s %s = code %d, %d bytes", n, req.Method, req.RequestURI, tw.code, tw.resSize)
	}
}

type trackResponseWriter struct {
	http.ResponseWriter
	code    int
	resSize int64
}

func (tw *trackResponseWriter) WriteHeader(code int) {
	tw.code = code
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackResponseWriter) Write(p []byte) (int, error) {
	if tw.code == 0 {
		tw.code = 200
	}
	tw.resSize += int64(len(p))
	return tw.ResponseWriter.Write(p)
}

// Listen starts listening on addr, which may be "port", ":port", "ip:port",
// or "FD:<fd_num>" (see pkg/webserver/listen).
func (s *Server) Listen(addr string) error {
	if s.listener != nil {
		return nil
	}
	if addr == "" {
		return fmt.Errorf("webserver: an address needs to be provided to start listening")
	}
	ln, err := listen.Listen(addr)
	if err != nil {
		return fmt.Errorf("webserver: failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.printf("Starting to listen on %s", s.ListenURL())
	return nil
}

// Serve blocks, accepting and serving connections until Shutdown is called
// (in which case it returns http.ErrServerClosed, which the caller should
// treat as a clean exit) or the listener errors out.
func (s *Server) Serve() error {
	return s.httpServer.Serve(s.listener)
}

// Shutdown stops the listener from accepting new connections and waits (up
// to ctx's deadline) for in-flight requests to finish. The caller is
// responsible for shutting down the replicators afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

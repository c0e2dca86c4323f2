// The vermd binary is Verm's daemon: it parses the CLI flags, wires up the
// MIME table, statistics, replication manager and store, starts the HTTP
// listener, and waits for a termination signal to drain it in order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/willbryant/verm/pkg/mimetype"
	"github.com/willbryant/verm/pkg/replica"
	"github.com/willbryant/verm/pkg/stats"
	"github.com/willbryant/verm/pkg/store"
	"github.com/willbryant/verm/pkg/webserver"
)

// Exit codes.
const (
	exitNormal        = 0
	exitDaemonFailed  = 1
	exitSignalSetup   = 6
	exitUsageError    = 100
	defaultHTTPPort   = "1138"
	shutdownGracePeriod = 5 * time.Second
)

// peerList collects -r flags, each "<host>[:port]", in the order given.
type peerList []replica.Peer

func (p *peerList) String() string {
	if p == nil {
		return ""
	}
	hosts := make([]string, len(*p))
	for i, peer := range *p {
		hosts[i] = peer.Hostname + ":" + peer.Service
	}
	return strings.Join(hosts, ",")
}

func (p *peerList) Set(v string) error {
	host, port, err := net.SplitHostPort(v)
	if err != nil {
		host, port = v, defaultHTTPPort
	}
	if host == "" {
		return fmt.Errorf("invalid replication peer %q", v)
	}
	*p = append(*p, replica.Peer{Hostname: host, Service: port})
	return nil
}

func main() {
	var (
		dataDir  = flag.String("d", "", "data `directory`; must be an absolute path")
		listen   = flag.String("l", defaultHTTPPort, "`port` (or host:port) to listen on")
		mimeFile = flag.String("m", "/etc/mime.types", "MIME types `file` to load in addition to the built-in table")
		quiet    = flag.Bool("q", false, "suppress per-request logging")
		peers    peerList
	)
	flag.Var(&peers, "r", "add a replication peer (`host[:port]`); may be repeated")
	flag.Parse()

	if *dataDir == "" || !strings.HasPrefix(*dataDir, "/") {
		fmt.Fprintln(os.Stderr, "vermd: -d <data directory> is required and must be an absolute path")
		os.Exit(exitUsageError)
	}
	if err := os.MkdirAll(*dataDir, 0777); err != nil {
		fmt.Fprintf(os.Stderr, "vermd: creating data directory %s: %v\n", *dataDir, err)
		os.Exit(exitUsageError)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	mimeTypes, err := mimetype.Load(*mimeFile)
	if err != nil {
		logger.Printf("vermd: loading MIME types from %s: %v", *mimeFile, err)
		os.Exit(exitDaemonFailed)
	}

	st := stats.New()

	var replicas *replica.Manager
	if len(peers) > 0 {
		replicas = replica.NewManager([]replica.Peer(peers), *dataDir, st, logger)
		replicas.Start()
	}

	s := store.New(*dataDir, mimeTypes, st, replicas, logger)

	ws := webserver.New(!*quiet)
	ws.Logger = logger
	ws.Handle(s.Handler(ws.ConnectionsCurrent))

	if err := ws.Listen(*listen); err != nil {
		logger.Printf("vermd: %v", err)
		os.Exit(exitDaemonFailed)
	}

	shutdown := make(chan struct{})
	go func() {
		err := ws.Serve()
		if err != nil && err != http.ErrServerClosed {
			logger.Printf("vermd: http server: %v", err)
		}
		close(shutdown)
	}()

	handleSignals(logger, ws, replicas)

	<-shutdown
	logger.Printf("vermd: shut down cleanly")
	os.Exit(exitNormal)
}

// handleSignals blocks until SIGINT, SIGTERM, or SIGQUIT arrives, then drains
// the listener and the replicators in order: stop accepting new connections
// and let in-flight requests finish, then shut down every replicator worker
// and free its queue.
func handleSignals(logger *log.Logger, ws *webserver.Server, replicas *replica.Manager) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-c
	logger.Printf("vermd: received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := ws.Shutdown(ctx); err != nil {
		logger.Printf("vermd: error shutting down HTTP server: %v", err)
	}

	if replicas != nil {
		replicas.Shutdown()
	}
}

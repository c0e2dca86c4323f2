// Package replica implements Verm's replication subsystem: one worker per
// configured peer, each draining its own queue of newly-stored files and
// PUTting them to that peer over a reused HTTP/1.0 connection, with
// exponential backoff on failure and a resync hook that rebuilds the queue
// from scratch by rescanning the data directory.
//
// Each Replicator owns its own queue and its own wake channel: a
// channel-based per-peer signal gives every worker its "new file enqueued" /
// "shut down" wakeups without a lock shared across peers, and lets backoff
// be an ordinary select on time.After that shutdown can still interrupt
// promptly.
package replica

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/willbryant/verm/pkg/stats"
)

// Backoff constants from the replication protocol: retry immediately after
// the first failure, BASE after the second, doubling thereafter, capped at
// CAP.
const (
	BackoffBase = 1 * time.Second
	BackoffCap  = 60 * time.Second
)

// File describes one file queued for replication to a peer.
type File struct {
	Location string // canonical URL path, e.g. "/default/LP/abc.txt"
	Path     string // absolute path of the stored file under the local data root
	Encoding string // "gzip" or ""
	QueuedAt time.Time
}

// Peer identifies a replication target.
type Peer struct {
	Hostname string
	Service  string // port number or service name
}

func (p Peer) addr() string {
	return net.JoinHostPort(p.Hostname, p.Service)
}

// Replicator drains one peer's queue. Create one with NewReplicator per
// configured peer, then run it with Run (typically in its own goroutine).
type Replicator struct {
	peer     Peer
	dataRoot string
	stats    *stats.Stats
	logger   *log.Logger

	mu             sync.Mutex
	queue          []File
	needResync     bool
	failedAttempts int

	wake     chan struct{}
	shutdown chan struct{}
	done     chan struct{}

	conn net.Conn
}

// NewReplicator returns a Replicator for peer, rooted at dataRoot (needed
// for resync's directory scan). Call Run to start its worker loop.
func NewReplicator(peer Peer, dataRoot string, st *stats.Stats, logger *log.Logger) *Replicator {
	return &Replicator{
		peer:     peer,
		dataRoot: dataRoot,
		stats:    st,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue appends f to the peer's FIFO and wakes the worker. Safe to call
// from any goroutine, concurrently with Run.
func (r *Replicator) Enqueue(f File) {
	r.mu.Lock()
	r.queue = append(r.queue, f)
	r.mu.Unlock()
	r.notify()
}

func (r *Replicator) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Shutdown asks the worker loop to exit and blocks until it has: the queue
// is dropped and the connection closed.
func (r *Replicator) Shutdown() {
	close(r.shutdown)
	<-r.done
}

func (r *Replicator) closeConn() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *Replicator) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// backoffDuration implements the schedule described in the protocol: no
// delay after the first consecutive failure, BackoffBase after the second,
// doubling each time after that, capped at BackoffCap.
func backoffDuration(failedAttempts int) time.Duration {
	if failedAttempts <= 1 {
		return 0
	}
	shift := failedAttempts - 2
	if shift > 6 { // 1s<<6 = 64s, already past the cap
		shift = 6
	}
	d := BackoffBase * time.Duration(uint64(1)<<uint(shift))
	if d > BackoffCap {
		d = BackoffCap
	}
	return d
}

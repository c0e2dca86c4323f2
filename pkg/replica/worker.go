package replica

import (
	"errors"
	"time"
)

// Run is the replicator's worker loop. It runs until Shutdown is called, and
// closes r.done on exit. Call it in its own goroutine, one per peer.
//
// Each iteration: a resync takes priority over draining the queue; draining
// the queue takes priority over waiting; and when there's nothing to do, the
// connection is closed (no point holding it open) and the worker blocks
// until woken by an enqueue, a resync request, or shutdown.
func (r *Replicator) Run() {
	defer close(r.done)
	defer r.closeConn()

	for {
		select {
		case <-r.shutdown:
			r.drainQueue()
			return
		default:
		}

		r.mu.Lock()
		needResync := r.needResync
		var next File
		hasNext := false
		if !needResync && len(r.queue) > 0 {
			next = r.queue[0]
			r.queue = r.queue[1:]
			hasNext = true
		}
		r.mu.Unlock()

		switch {
		case needResync:
			r.runResync()
		case hasNext:
			r.runPush(next)
		default:
			r.closeConn()
			if !r.waitForWork() {
				r.drainQueue()
				return
			}
		}
	}
}

func (r *Replicator) drainQueue() {
	r.mu.Lock()
	r.queue = nil
	r.mu.Unlock()
}

// waitForWork blocks until an enqueue/resync wakes the worker, or shutdown
// fires (in which case it returns false).
func (r *Replicator) waitForWork() bool {
	select {
	case <-r.wake:
		return true
	case <-r.shutdown:
		return false
	}
}

// backoff blocks for the current failure-count's backoff duration, or until
// shutdown fires.
func (r *Replicator) backoff() {
	d := backoffDuration(r.failedAttempts)
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-r.shutdown:
	}
}

func (r *Replicator) runPush(f File) {
	err := r.pushFile(f)
	failed := err != nil
	if r.stats != nil {
		r.stats.ReplicationPushAttempt(failed)
	}
	if err == nil {
		r.failedAttempts = 0
		return
	}
	r.logf("replication to %s: push of %s failed: %v", r.peer.addr(), f.Location, err)
	r.closeConn()
	if errors.Is(err, errFileGone) {
		r.mu.Lock()
		r.needResync = true
		r.mu.Unlock()
	}
	r.failedAttempts++
	r.backoff()
}

func (r *Replicator) runResync() {
	err := r.resync()
	if err != nil {
		r.logf("replication to %s: resync failed: %v", r.peer.addr(), err)
		r.mu.Lock()
		r.needResync = true
		r.mu.Unlock()
		r.closeConn()
		r.failedAttempts++
		r.backoff()
		return
	}
	r.mu.Lock()
	r.needResync = false
	r.mu.Unlock()
	r.failedAttempts = 0
}

// Package stats holds Verm's process-wide request counters.
//
// Every counter is monotonically non-decreasing and protected by a single
// mutex, mirroring the LogStatistics record described in the Verm protocol:
// all updates and the snapshot read used to answer /_statistics go through
// the same lock.
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Counters is a point-in-time copy of every counter. It's safe to read
// without holding any lock, since Snapshot hands out a copy.
type Counters struct {
	GetRequests                   int64
	GetRequestsNotFound           int64
	PostRequests                  int64
	PostRequestsNewFileStored     int64
	PostRequestsFailed            int64
	PutRequests                   int64
	PutRequestsNewFileStored      int64
	PutRequestsFailed             int64
	ReplicationPushAttempts       int64
	ReplicationPushAttemptsFailed int64
}

// Stats is the mutex-protected counter block shared by the ingest pipeline,
// the serve path, and the replicator.
type Stats struct {
	mu sync.Mutex
	c  Counters
}

// New returns a zeroed counter block.
func New() *Stats {
	return &Stats{}
}

// Snapshot copies out the whole record under the lock.
func (s *Stats) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

// GetRequest records a GET that wasn't for /_statistics.
func (s *Stats) GetRequest(found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.GetRequests++
	if !found {
		s.c.GetRequestsNotFound++
	}
}

// StoreRequest records the completion of a POST or PUT.
func (s *Stats) StoreRequest(method string, newFileStored, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch method {
	case "POST":
		s.c.PostRequests++
		if newFileStored {
			s.c.PostRequestsNewFileStored++
		}
		if failed {
			s.c.PostRequestsFailed++
		}
	case "PUT":
		s.c.PutRequests++
		if newFileStored {
			s.c.PutRequestsNewFileStored++
		}
		if failed {
			s.c.PutRequestsFailed++
		}
	default:
		panic("stats: StoreRequest called with method " + method)
	}
}

// ReplicationPushAttempt records one push_file invocation to a peer.
func (s *Stats) ReplicationPushAttempt(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ReplicationPushAttempts++
	if failed {
		s.c.ReplicationPushAttemptsFailed++
	}
}

// WriteReport writes the plaintext "/_statistics" body: one "name value"
// line per counter, plus a connections_current gauge supplied by the caller
// (the HTTP framework is the only thing that knows this).
func (s *Stats) WriteReport(w io.Writer, connectionsCurrent int64) error {
	c := s.Snapshot()
	lines := map[string]int64{
		"get_requests":                     c.GetRequests,
		"get_requests_not_found":           c.GetRequestsNotFound,
		"post_requests":                    c.PostRequests,
		"post_requests_new_file_stored":    c.PostRequestsNewFileStored,
		"post_requests_failed":             c.PostRequestsFailed,
		"put_requests":                     c.PutRequests,
		"put_requests_new_file_stored":     c.PutRequestsNewFileStored,
		"put_requests_failed":              c.PutRequestsFailed,
		"replication_push_attempts":        c.ReplicationPushAttempts,
		"replication_push_attempts_failed": c.ReplicationPushAttemptsFailed,
		"connections_current":              connectionsCurrent,
	}
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s %d\n", name, lines[name]); err != nil {
			return err
		}
	}
	return nil
}

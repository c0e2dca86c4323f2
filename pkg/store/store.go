// Package store implements Verm's ingest pipeline and serve path: the
// content-addressed upload state machine (hash, tempfile, dedup/collision
// link loop) and the GET/HEAD resolver that serves a stored file or its
// gzip-compressed twin. It also provides the top-level http.Handler that
// dispatches a request by method to one or the other.
package store

import (
	"log"

	"github.com/willbryant/verm/pkg/mimetype"
	"github.com/willbryant/verm/pkg/replica"
	"github.com/willbryant/verm/pkg/stats"
)

// Store is the server context threaded through every request handler: the
// data root, the MIME table loaded once at startup, the statistics
// counters, and (optionally) the replication manager. None of its fields
// are mutated after construction except through their own internal
// synchronization (Stats, replica.Manager).
type Store struct {
	Root      string
	MimeTypes *mimetype.Table
	Stats     *stats.Stats
	Replicas  *replica.Manager
	Logger    *log.Logger
}

// New returns a Store rooted at root. mimeTypes, st, and replicas may be
// supplied by the caller (cmd/vermd); replicas may be nil if no peers are
// configured.
func New(root string, mimeTypes *mimetype.Table, st *stats.Stats, replicas *replica.Manager, logger *log.Logger) *Store {
	return &Store{
		Root:      root,
		MimeTypes: mimeTypes,
		Stats:     st,
		Replicas:  replicas,
		Logger:    logger,
	}
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func (s *Store) recordGet(found bool) {
	if s.Stats != nil {
		s.Stats.GetRequest(found)
	}
}

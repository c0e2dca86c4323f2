package replica

import (
	"log"
	"sync"

	"github.com/willbryant/verm/pkg/stats"
)

// Manager owns one Replicator per configured peer and fans each stored file
// out to all of them.
type Manager struct {
	replicators []*Replicator
	wg          sync.WaitGroup
}

// NewManager builds a Replicator for each peer, rooted at dataRoot.
func NewManager(peers []Peer, dataRoot string, st *stats.Stats, logger *log.Logger) *Manager {
	m := &Manager{}
	for _, p := range peers {
		m.replicators = append(m.replicators, NewReplicator(p, dataRoot, st, logger))
	}
	return m
}

// Start launches each replicator's worker loop in its own goroutine.
func (m *Manager) Start() {
	for _, r := range m.replicators {
		m.wg.Add(1)
		r := r
		go func() {
			defer m.wg.Done()
			r.Run()
		}()
	}
}

// Enqueue queues f for replication to every configured peer. Called once per
// successful POST or PUT, including dedup hits.
func (m *Manager) Enqueue(f File) {
	for _, r := range m.replicators {
		r.Enqueue(f)
	}
}

// Shutdown asks every replicator to stop and waits for all of their worker
// loops to exit.
func (m *Manager) Shutdown() {
	for _, r := range m.replicators {
		r.Shutdown()
	}
	m.wg.Wait()
}

// Peers reports the configured replication targets, in order.
func (m *Manager) Peers() []Peer {
	peers := make([]Peer, len(m.replicators))
	for i, r := range m.replicators {
		peers[i] = r.peer
	}
	return peers
}

package replica

import (
	"testing"
	"time"
)

func TestManagerEnqueueFansOutToAllPeers(t *testing.T) {
	dir := t.TempDir()
	m := NewManager([]Peer{
		{Hostname: "127.0.0.1", Service: "1"},
		{Hostname: "127.0.0.1", Service: "2"},
	}, dir, nil, nil)

	m.Enqueue(File{Location: "/default/LP/abc.txt", Path: dir + "/abc.txt"})

	for _, r := range m.replicators {
		r.mu.Lock()
		n := len(r.queue)
		r.mu.Unlock()
		if n != 1 {
			t.Errorf("replicator for %s has queue length %d, want 1", r.peer.addr(), n)
		}
	}
}

func TestManagerStartAndShutdown(t *testing.T) {
	dir := t.TempDir()
	m := NewManager([]Peer{{Hostname: "127.0.0.1", Service: "1"}}, dir, nil, nil)
	m.Start()

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}

func TestManagerPeers(t *testing.T) {
	peers := []Peer{{Hostname: "a", Service: "1"}, {Hostname: "b", Service: "2"}}
	m := NewManager(peers, t.TempDir(), nil, nil)
	got := m.Peers()
	if len(got) != 2 || got[0].Hostname != "a" || got[1].Hostname != "b" {
		t.Errorf("Peers() = %+v", got)
	}
}

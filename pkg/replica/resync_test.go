package replica

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResyncQueuesEveryFile(t *testing.T) {
	dir := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.MkdirAll(filepath.Join(dir, "default", "LP"), 0755))
	must(os.WriteFile(filepath.Join(dir, "default", "LP", "plain.txt"), []byte("a"), 0644))
	must(os.WriteFile(filepath.Join(dir, "default", "LP", "gzipped.txt"), []byte("decompressed"), 0644))
	must(os.WriteFile(filepath.Join(dir, "default", "LP", "gzipped.txt.gz"), []byte("compressed"), 0644))

	r := NewReplicator(Peer{Hostname: "127.0.0.1", Service: "1"}, dir, nil, nil)
	if err := r.resync(); err != nil {
		t.Fatalf("resync: %v", err)
	}

	r.mu.Lock()
	queue := append([]File(nil), r.queue...)
	r.mu.Unlock()

	if len(queue) != 2 {
		t.Fatalf("queued %d files, want 2: %+v", len(queue), queue)
	}

	byLocation := map[string]File{}
	for _, f := range queue {
		byLocation[f.Location] = f
	}

	plain, ok := byLocation["/default/LP/plain.txt"]
	if !ok {
		t.Fatal("plain.txt not queued")
	}
	if plain.Encoding != "" {
		t.Errorf("plain.txt encoding = %q, want empty", plain.Encoding)
	}

	gzippedLoc := "/default/LP/gzipped.txt"
	gzipped, ok := byLocation[gzippedLoc]
	if !ok {
		t.Fatal("gzipped.txt not queued")
	}
	if gzipped.Encoding != "gzip" {
		t.Errorf("gzipped.txt encoding = %q, want gzip", gzipped.Encoding)
	}
	if filepath.Base(gzipped.Path) != "gzipped.txt.gz" {
		t.Errorf("gzipped.txt source path = %q, want the .gz twin", gzipped.Path)
	}
}

// TestResyncQueuesGzipOnlyBlob covers the common case for a gzip-encoded
// upload: linkLoop never writes a plain companion file, only the .gz one, so
// resync must queue it from the .gz entry itself rather than skipping it for
// want of a plain file to anchor on.
func TestResyncQueuesGzipOnlyBlob(t *testing.T) {
	dir := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.MkdirAll(filepath.Join(dir, "default", "LP"), 0755))
	must(os.WriteFile(filepath.Join(dir, "default", "LP", "onlygz.txt.gz"), []byte("compressed"), 0644))

	r := NewReplicator(Peer{Hostname: "127.0.0.1", Service: "1"}, dir, nil, nil)
	if err := r.resync(); err != nil {
		t.Fatalf("resync: %v", err)
	}

	r.mu.Lock()
	queue := append([]File(nil), r.queue...)
	r.mu.Unlock()

	if len(queue) != 1 {
		t.Fatalf("queued %d files, want 1: %+v", len(queue), queue)
	}
	if queue[0].Location != "/default/LP/onlygz.txt" {
		t.Errorf("location = %q, want /default/LP/onlygz.txt", queue[0].Location)
	}
	if queue[0].Encoding != "gzip" {
		t.Errorf("encoding = %q, want gzip", queue[0].Encoding)
	}
	if filepath.Base(queue[0].Path) != "onlygz.txt.gz" {
		t.Errorf("path = %q, want the .gz file itself", queue[0].Path)
	}
}

// TestResyncDiscardsExistingQueue covers the documented discard semantics:
// resync replaces whatever was already queued (e.g. left over from before
// the push that triggered need_resync) rather than appending the rescanned
// files on top of it.
func TestResyncDiscardsExistingQueue(t *testing.T) {
	dir := t.TempDir()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(os.MkdirAll(filepath.Join(dir, "default", "LP"), 0755))
	must(os.WriteFile(filepath.Join(dir, "default", "LP", "plain.txt"), []byte("a"), 0644))

	r := NewReplicator(Peer{Hostname: "127.0.0.1", Service: "1"}, dir, nil, nil)
	r.mu.Lock()
	r.queue = []File{{Location: "/default/AA/stale.txt", Path: "/nonexistent/stale.txt"}}
	r.mu.Unlock()

	if err := r.resync(); err != nil {
		t.Fatalf("resync: %v", err)
	}

	r.mu.Lock()
	queue := append([]File(nil), r.queue...)
	r.mu.Unlock()

	if len(queue) != 1 {
		t.Fatalf("queued %d files, want 1 (stale entry should have been discarded): %+v", len(queue), queue)
	}
	if queue[0].Location != "/default/LP/plain.txt" {
		t.Errorf("location = %q, want /default/LP/plain.txt (stale entry should be gone)", queue[0].Location)
	}
}

func TestResyncWakesWorker(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644)

	r := NewReplicator(Peer{Hostname: "127.0.0.1", Service: "1"}, dir, nil, nil)
	if err := r.resync(); err != nil {
		t.Fatalf("resync: %v", err)
	}

	select {
	case <-r.wake:
	default:
		t.Fatal("expected wake to be signalled after resync")
	}
}

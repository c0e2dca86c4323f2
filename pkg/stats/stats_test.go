package stats

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetRequest(t *testing.T) {
	s := New()
	s.GetRequest(true)
	s.GetRequest(false)
	s.GetRequest(true)

	want := Counters{GetRequests: 3, GetRequestsNotFound: 1}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreRequest(t *testing.T) {
	s := New()
	s.StoreRequest("POST", true, false)
	s.StoreRequest("POST", false, false)
	s.StoreRequest("POST", false, true)
	s.StoreRequest("PUT", true, false)

	want := Counters{
		PostRequests:              3,
		PostRequestsNewFileStored: 1,
		PostRequestsFailed:        1,
		PutRequests:               1,
		PutRequestsNewFileStored:  1,
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestReplicationPushAttempt(t *testing.T) {
	s := New()
	s.ReplicationPushAttempt(false)
	s.ReplicationPushAttempt(true)

	want := Counters{ReplicationPushAttempts: 2, ReplicationPushAttemptsFailed: 1}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.GetRequest(true)
		}()
	}
	wg.Wait()
	if c := s.Snapshot(); c.GetRequests != 100 {
		t.Errorf("GetRequests = %d, want 100", c.GetRequests)
	}
}

func TestWriteReport(t *testing.T) {
	s := New()
	s.GetRequest(true)
	s.StoreRequest("POST", true, false)

	var buf bytes.Buffer
	if err := s.WriteReport(&buf, 4); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"get_requests 1",
		"post_requests 1",
		"post_requests_new_file_stored 1",
		"connections_current 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q; got:\n%s", want, out)
		}
	}
}

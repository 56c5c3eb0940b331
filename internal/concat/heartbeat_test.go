package concat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// countingNotifier records delivered heartbeats.
type countingNotifier struct {
	mu    sync.Mutex
	beats []HeartbeatRequest
}

func (n *countingNotifier) Notify(ctx context.Context, req HeartbeatRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.beats = append(n.beats, req)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.beats)
}

func waitForBeats(t *testing.T, n *countingNotifier, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for n.count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d heartbeats, have %d", want, n.count())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHeartbeatLoopBeatsAtInterval(t *testing.T) {
	state := NewState()
	state.StartJob("ep-1", 4)
	state.SegmentFetched()

	n := &countingNotifier{}
	hb := startHeartbeat(context.Background(), n, state, 5*time.Millisecond, zerolog.Nop())
	waitForBeats(t, n, 3)
	hb.stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	first := n.beats[0]
	if first.JobID != "ep-1" {
		t.Errorf("job id = %q", first.JobID)
	}
	if first.State != string(StateProcessing) {
		t.Errorf("state = %q", first.State)
	}
	if first.Progress != 0.25 {
		t.Errorf("progress = %v, want 0.25", first.Progress)
	}
}

func TestHeartbeatLoopStopsImmediately(t *testing.T) {
	state := NewState()
	state.StartJob("ep-1", 1)

	n := &countingNotifier{}
	hb := startHeartbeat(context.Background(), n, state, 5*time.Millisecond, zerolog.Nop())
	waitForBeats(t, n, 2)
	hb.stop()

	// stop() is synchronous: once it returns, no further beat may fire.
	after := n.count()
	time.Sleep(30 * time.Millisecond)
	if got := n.count(); got != after {
		t.Errorf("beats after stop: %d -> %d", after, got)
	}
}

func TestHeartbeatLoopStopBeforeFirstTick(t *testing.T) {
	state := NewState()
	state.StartJob("ep-1", 1)

	n := &countingNotifier{}
	hb := startHeartbeat(context.Background(), n, state, time.Hour, zerolog.Nop())
	hb.stop()

	if got := n.count(); got != 0 {
		t.Errorf("expected 0 beats, got %d", got)
	}
}

func TestHeartbeatLoopRecordsLastHeartbeat(t *testing.T) {
	state := NewState()
	state.StartJob("ep-1", 1)

	n := &countingNotifier{}
	hb := startHeartbeat(context.Background(), n, state, 5*time.Millisecond, zerolog.Nop())
	waitForBeats(t, n, 1)
	hb.stop()

	deadline := time.Now().Add(time.Second)
	for state.Snapshot().LastHeartbeat == nil {
		if time.Now().After(deadline) {
			t.Fatal("LastHeartbeat never recorded")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHTTPNotifier(t *testing.T) {
	t.Run("acknowledged", func(t *testing.T) {
		var got HeartbeatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(HeartbeatResponse{Acknowledged: true, TimeoutExtended: true})
		}))
		defer srv.Close()

		n := NewHTTPNotifier(srv.URL)
		err := n.Notify(context.Background(), HeartbeatRequest{JobID: "ep-1", State: "processing", Progress: 0.5})
		if err != nil {
			t.Fatal(err)
		}
		if got.JobID != "ep-1" || got.Progress != 0.5 {
			t.Errorf("server saw %+v", got)
		}
	})

	t.Run("not_acknowledged", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(HeartbeatResponse{Acknowledged: false, Error: "unknown job"})
		}))
		defer srv.Close()

		err := NewHTTPNotifier(srv.URL).Notify(context.Background(), HeartbeatRequest{JobID: "ep-1"})
		if err == nil {
			t.Fatal("expected error for unacknowledged heartbeat")
		}
	})
}

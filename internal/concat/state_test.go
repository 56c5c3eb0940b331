package concat

import (
	"testing"
)

func TestStateTransitions(t *testing.T) {
	t.Run("starts_idle", func(t *testing.T) {
		st := NewState()
		if got := st.Snapshot().State; got != StateIdle {
			t.Errorf("state = %q, want idle", got)
		}
	})

	t.Run("start_job", func(t *testing.T) {
		st := NewState()
		if !st.StartJob("ep-1", 5) {
			t.Fatal("StartJob should succeed from idle")
		}
		snap := st.Snapshot()
		if snap.State != StateProcessing || snap.JobID != "ep-1" || snap.SegmentsTotal != 5 {
			t.Errorf("snapshot = %+v", snap)
		}
		if snap.StartedAt == nil {
			t.Error("StartedAt should be set")
		}
	})

	t.Run("rejects_concurrent_job", func(t *testing.T) {
		st := NewState()
		st.StartJob("ep-1", 1)
		if st.StartJob("ep-2", 1) {
			t.Error("StartJob must fail while processing")
		}
	})

	t.Run("finish_resets_to_idle", func(t *testing.T) {
		st := NewState()
		st.StartJob("ep-1", 3)
		st.SegmentFetched()
		st.Finish()
		snap := st.Snapshot()
		if snap.State != StateIdle || snap.JobID != "" || snap.SegmentsFetched != 0 {
			t.Errorf("snapshot after finish = %+v", snap)
		}
	})

	t.Run("fail_keeps_job_context", func(t *testing.T) {
		st := NewState()
		st.StartJob("ep-1", 3)
		st.Fail("concatenate: boom")
		snap := st.Snapshot()
		if snap.State != StateError {
			t.Errorf("state = %q, want error", snap.State)
		}
		if snap.JobID != "ep-1" || snap.LastError != "concatenate: boom" {
			t.Errorf("snapshot = %+v", snap)
		}
	})

	t.Run("error_cleared_by_next_start", func(t *testing.T) {
		st := NewState()
		st.StartJob("ep-1", 1)
		st.Fail("boom")
		if !st.StartJob("ep-2", 2) {
			t.Fatal("StartJob must succeed from error state")
		}
		snap := st.Snapshot()
		if snap.State != StateProcessing || snap.LastError != "" {
			t.Errorf("snapshot = %+v", snap)
		}
	})
}

func TestStateProgress(t *testing.T) {
	st := NewState()
	st.StartJob("ep-1", 4)

	if _, p := st.Progress(); p != 0 {
		t.Errorf("progress = %v, want 0", p)
	}

	st.SegmentFetched()
	st.SegmentFetched()
	job, p := st.Progress()
	if job != "ep-1" || p != 0.5 {
		t.Errorf("progress = (%q, %v), want (ep-1, 0.5)", job, p)
	}
}

func TestStateProgressZeroTotal(t *testing.T) {
	st := NewState()
	if _, p := st.Progress(); p != 0 {
		t.Errorf("progress with no job = %v, want 0", p)
	}
}

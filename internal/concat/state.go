package concat

import (
	"sync"
	"time"
)

// WorkerState is the coarse lifecycle phase of the worker.
type WorkerState string

const (
	StateIdle       WorkerState = "idle"
	StateProcessing WorkerState = "processing"
	StateError      WorkerState = "error"
)

// Status is the read-only snapshot exposed by the status endpoint.
type Status struct {
	State           WorkerState `json:"state"`
	JobID           string      `json:"job_id"`
	StartedAt       *time.Time  `json:"started_at"`
	SegmentsTotal   int         `json:"segments_total"`
	SegmentsFetched int         `json:"segments_downloaded"`
	LastError       string      `json:"last_error"`
	LastHeartbeat   *time.Time  `json:"last_heartbeat"`
}

// State is the worker's shared mutable status. The request path and the
// heartbeat loop both go through it; the mutex is held only across the field
// access itself, never across I/O.
type State struct {
	mu sync.Mutex
	s  Status
}

// NewState returns an idle worker state.
func NewState() *State {
	return &State{s: Status{State: StateIdle}}
}

// Snapshot returns a copy of the current status.
func (st *State) Snapshot() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// StartJob transitions to Processing for the given job. It reports false if a
// job is already in flight; an Error state is cleared by the next start.
func (st *State) StartJob(jobID string, totalSegments int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.State == StateProcessing {
		return false
	}
	now := time.Now()
	st.s = Status{
		State:         StateProcessing,
		JobID:         jobID,
		StartedAt:     &now,
		SegmentsTotal: totalSegments,
	}
	return true
}

// SegmentFetched bumps the fetched counter.
func (st *State) SegmentFetched() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.SegmentsFetched++
}

// Progress returns the job id and fetched/total fraction for heartbeats.
func (st *State) Progress() (jobID string, progress float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.SegmentsTotal > 0 {
		progress = float64(st.s.SegmentsFetched) / float64(st.s.SegmentsTotal)
	}
	return st.s.JobID, progress
}

// HeartbeatSent records a successful heartbeat.
func (st *State) HeartbeatSent() {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now()
	st.s.LastHeartbeat = &now
}

// Finish transitions back to Idle after a successful job.
func (st *State) Finish() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = Status{State: StateIdle}
}

// Fail transitions to Error with a stage-tagged message. The job id is kept
// so the status endpoint identifies the failed job.
func (st *State) Fail(msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.State = StateError
	st.s.LastError = msg
}

package concat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/metrics"
)

// HeartbeatRequest is the liveness report sent to the host while a job runs.
type HeartbeatRequest struct {
	JobID    string  `json:"job_id"`
	State    string  `json:"state"`
	Progress float64 `json:"progress,omitempty"`
}

// HeartbeatResponse is the host's acknowledgement.
type HeartbeatResponse struct {
	Acknowledged    bool   `json:"acknowledged"`
	TimeoutExtended bool   `json:"timeout_extended"`
	Error           string `json:"error,omitempty"`
}

// Notifier delivers one heartbeat. Implementations must be safe for use from
// the heartbeat goroutine.
type Notifier interface {
	Notify(ctx context.Context, req HeartbeatRequest) error
}

// HTTPNotifier POSTs heartbeats to the host-provided endpoint.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

// NewHTTPNotifier creates a notifier targeting the given URL.
func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify sends one heartbeat and verifies the acknowledgement.
func (n *HTTPNotifier) Notify(ctx context.Context, hb HeartbeatRequest) error {
	body, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	var ack HeartbeatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode heartbeat response: %w", err)
	}
	if !ack.Acknowledged {
		return fmt.Errorf("heartbeat not acknowledged: %s", ack.Error)
	}
	return nil
}

// heartbeatLoop reports liveness at a fixed interval while a job runs.
//
// stop() is synchronous: it closes the stop channel and waits for the
// goroutine to exit, so the caller can guarantee no heartbeat fires after the
// job's terminal state transition. Heartbeat delivery failures are logged and
// counted but never interrupt the job.
type heartbeatLoop struct {
	notifier Notifier
	state    *State
	interval time.Duration
	log      zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func startHeartbeat(ctx context.Context, notifier Notifier, state *State, interval time.Duration, log zerolog.Logger) *heartbeatLoop {
	hb := &heartbeatLoop{
		notifier: notifier,
		state:    state,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
	hb.wg.Add(1)
	go hb.run(ctx)
	return hb
}

func (hb *heartbeatLoop) run(ctx context.Context) {
	defer hb.wg.Done()
	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hb.beat(ctx)
		case <-hb.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (hb *heartbeatLoop) beat(ctx context.Context) {
	jobID, progress := hb.state.Progress()
	err := hb.notifier.Notify(ctx, HeartbeatRequest{
		JobID:    jobID,
		State:    string(StateProcessing),
		Progress: progress,
	})
	if err != nil {
		metrics.HeartbeatErrorsTotal.Inc()
		hb.log.Warn().Err(err).Str("job_id", jobID).Msg("heartbeat failed")
		return
	}
	metrics.HeartbeatsSentTotal.Inc()
	hb.state.HeartbeatSent()
	hb.log.Debug().Str("job_id", jobID).Float64("progress", progress).Msg("heartbeat acknowledged")
}

// stop halts the loop and blocks until the goroutine has exited.
func (hb *heartbeatLoop) stop() {
	close(hb.stopCh)
	hb.wg.Wait()
}

// Package concat implements the long-running concatenation worker: it fetches
// segment audio, splices it through ffmpeg with loudness normalization, and
// uploads the finished episode, proving liveness to its host throughout.
package concat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/audio"
	"github.com/strollcast/director/internal/config"
	"github.com/strollcast/director/internal/metrics"
)

var (
	// ErrCancelled marks a job aborted by the wall-clock deadline or an
	// external shutdown, as opposed to a tool or transfer failure.
	ErrCancelled = errors.New("job cancelled")

	// ErrBusy is returned when a job is already in flight.
	ErrBusy = errors.New("a job is already in flight")

	// ErrNoSegments and ErrNoOutputURL are request validation failures.
	ErrNoSegments  = errors.New("no segments provided")
	ErrNoOutputURL = errors.New("no output URL provided")
)

// Request is one concatenation job.
type Request struct {
	JobID     string     `json:"job_id"`
	Segments  []string   `json:"segments"`   // read URLs, in playback order
	OutputURL string     `json:"output_url"` // write URL for the finished episode
	Tags      audio.Tags `json:"tags"`
}

// Response is the job outcome returned to the caller.
type Response struct {
	Success         bool    `json:"success"`
	DurationSeconds float64 `json:"duration_seconds"`
	FileSize        int64   `json:"file_size"`
	Error           string  `json:"error,omitempty"`
}

// Tools is the audio-tool surface the service needs. Satisfied by
// audio.Toolset; stubbed in tests.
type Tools interface {
	Concat(ctx context.Context, listPath, outPath string, tags audio.Tags) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Service runs concatenation jobs one at a time.
type Service struct {
	cfg      config.ConcatConfig
	tools    Tools
	notifier Notifier // nil disables heartbeats
	state    *State
	client   *http.Client
	log      zerolog.Logger
}

// NewService creates a concatenation service.
func NewService(cfg config.ConcatConfig, tools Tools, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		tools:    tools,
		notifier: notifier,
		state:    NewState(),
		client:   &http.Client{Timeout: 5 * time.Minute},
		log:      log.With().Str("component", "concat").Logger(),
	}
}

// State exposes the worker status handle for the status endpoint.
func (s *Service) State() *State { return s.state }

// Run executes one job end to end. The passed context should be the process
// shutdown context rather than the request context, so a dropped client
// connection does not abort a job the host is still paying for; the job
// deadline is layered on top of it. A deadline or shutdown abort is reported
// as ErrCancelled.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if len(req.Segments) == 0 {
		return nil, ErrNoSegments
	}
	if req.OutputURL == "" {
		return nil, ErrNoOutputURL
	}
	if !s.state.StartJob(req.JobID, len(req.Segments)) {
		return nil, ErrBusy
	}

	log := s.log.With().Str("job_id", req.JobID).Logger()
	start := time.Now()

	var hb *heartbeatLoop
	if s.notifier != nil && s.cfg.HeartbeatInterval > 0 {
		hb = startHeartbeat(ctx, s.notifier, s.state, s.cfg.HeartbeatInterval, log)
	}
	// The heartbeat loop must be fully stopped before the terminal state
	// transition so no beat can fire after the job ends.
	finish := func(outcome string, err error) {
		if hb != nil {
			hb.stop()
		}
		metrics.ConcatJobsTotal.WithLabelValues(outcome).Inc()
		metrics.ConcatJobDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.state.Fail(err.Error())
		} else {
			s.state.Finish()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobDeadline)
	defer cancel()

	resp, err := s.process(ctx, req, log)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		outcome := "error"
		if errors.Is(err, ErrCancelled) {
			outcome = "cancelled"
		}
		log.Error().Err(err).Msg("concat job failed")
		finish(outcome, err)
		return nil, err
	}

	finish("success", nil)
	log.Info().
		Int("segments", len(req.Segments)).
		Float64("duration_seconds", resp.DurationSeconds).
		Int64("file_size", resp.FileSize).
		Dur("elapsed", time.Since(start)).
		Msg("concat job finished")
	return resp, nil
}

func (s *Service) process(ctx context.Context, req Request, log zerolog.Logger) (*Response, error) {
	workDir, err := os.MkdirTemp("", "concat-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	log.Info().Int("segments", len(req.Segments)).Msg("fetching segments")
	if err := s.fetchSegments(ctx, req.Segments, workDir); err != nil {
		return nil, err
	}

	listPath := filepath.Join(workDir, "list.txt")
	var manifest strings.Builder
	for i := range req.Segments {
		fmt.Fprintf(&manifest, "file '%s'\n", segmentPath(workDir, i))
	}
	if err := os.WriteFile(listPath, []byte(manifest.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	outPath := filepath.Join(workDir, "output.mp3")
	log.Info().Msg("running ffmpeg concatenation")
	if err := s.tools.Concat(ctx, listPath, outPath, req.Tags); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("concatenate: %w", err)
	}

	duration, err := s.tools.ProbeDuration(ctx, outPath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("stat output: %w", err)
	}

	log.Info().Msg("uploading episode")
	if err := s.upload(ctx, outPath, req.OutputURL); err != nil {
		return nil, fmt.Errorf("upload episode: %w", err)
	}

	return &Response{
		Success:         true,
		DurationSeconds: duration,
		FileSize:        info.Size(),
	}, nil
}

// fetchSegments downloads all inputs with a bounded worker pool. Scratch
// files are named by segment index, so the manifest preserves playback order
// no matter which fetch finishes first.
func (s *Service) fetchSegments(ctx context.Context, segments []string, workDir string) error {
	workers := s.cfg.FetchWorkers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	errs := make([]error, len(segments))
	var wg sync.WaitGroup
	for i, src := range segments {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, src string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.fetchOne(ctx, src, segmentPath(workDir, i)); err != nil {
				errs[i] = err
				return
			}
			s.state.SegmentFetched()
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("fetch segment %d: %w", i, err)
		}
	}
	return nil
}

// fetchOne retrieves a single segment. file:// URLs are read directly from
// disk, which the local-store dev mode hands out.
func (s *Service) fetchOne(ctx context.Context, src, destPath string) error {
	if path, ok := localPath(src); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(destPath, data, 0o644)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET returned %d: %s", resp.StatusCode, string(body))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write segment: %w", err)
	}
	return nil
}

// upload writes the finished episode to the job's output URL via HTTP PUT,
// or straight to disk for file:// destinations.
func (s *Service) upload(ctx context.Context, srcPath, dest string) error {
	if path, ok := localPath(dest); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest, f)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("PUT returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func segmentPath(workDir string, i int) string {
	return filepath.Join(workDir, fmt.Sprintf("segment_%04d.mp3", i))
}

func localPath(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "file://") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return u.Path, true
}

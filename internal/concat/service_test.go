package concat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/audio"
	"github.com/strollcast/director/internal/config"
)

// stubTools stands in for the ffmpeg/ffprobe toolset.
type stubTools struct {
	concatFn func(ctx context.Context, listPath, outPath string, tags audio.Tags) error
	probeFn  func(ctx context.Context, path string) (float64, error)
}

func (s *stubTools) Concat(ctx context.Context, listPath, outPath string, tags audio.Tags) error {
	if s.concatFn != nil {
		return s.concatFn(ctx, listPath, outPath, tags)
	}
	return os.WriteFile(outPath, []byte("episode mp3"), 0o644)
}

func (s *stubTools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if s.probeFn != nil {
		return s.probeFn(ctx, path)
	}
	return 42.5, nil
}

func testConfig() config.ConcatConfig {
	return config.ConcatConfig{
		JobDeadline:  time.Minute,
		FetchWorkers: 2,
	}
}

func newTestService(tools Tools) *Service {
	return NewService(testConfig(), tools, nil, zerolog.Nop())
}

// segmentServer serves fixed segment bodies on /seg/<n> and accepts PUT /out.
func segmentServer(t *testing.T) (*httptest.Server, *[]byte) {
	t.Helper()
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			uploaded = body
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte("audio " + strings.TrimPrefix(r.URL.Path, "/seg/")))
	}))
	t.Cleanup(srv.Close)
	return srv, &uploaded
}

func TestServiceRunSuccess(t *testing.T) {
	srv, uploaded := segmentServer(t)

	var manifest string
	tools := &stubTools{
		concatFn: func(ctx context.Context, listPath, outPath string, tags audio.Tags) error {
			b, err := os.ReadFile(listPath)
			if err != nil {
				return err
			}
			manifest = string(b)
			if tags.Title != "Test Episode" {
				t.Errorf("tags = %+v", tags)
			}
			return os.WriteFile(outPath, []byte("final mp3"), 0o644)
		},
	}

	svc := newTestService(tools)
	resp, err := svc.Run(context.Background(), Request{
		JobID:     "ep-1",
		Segments:  []string{srv.URL + "/seg/0", srv.URL + "/seg/1", srv.URL + "/seg/2"},
		OutputURL: srv.URL + "/out",
		Tags:      audio.Tags{Title: "Test Episode", Artist: "Strollcast"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !resp.Success || resp.DurationSeconds != 42.5 || resp.FileSize != int64(len("final mp3")) {
		t.Errorf("response = %+v", resp)
	}
	if string(*uploaded) != "final mp3" {
		t.Errorf("uploaded = %q", *uploaded)
	}

	// Manifest must list scratch files in playback order.
	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	if len(lines) != 3 {
		t.Fatalf("manifest has %d lines: %q", len(lines), manifest)
	}
	for i, line := range lines {
		if !strings.Contains(line, "segment_000"+string(rune('0'+i))+".mp3") {
			t.Errorf("manifest line %d out of order: %q", i, line)
		}
	}

	if got := svc.State().Snapshot().State; got != StateIdle {
		t.Errorf("state after success = %q, want idle", got)
	}
}

func TestServiceRunFailingSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/1") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	svc := newTestService(&stubTools{})
	_, err := svc.Run(context.Background(), Request{
		JobID:     "ep-1",
		Segments:  []string{srv.URL + "/seg/0", srv.URL + "/seg/1", srv.URL + "/seg/2"},
		OutputURL: srv.URL + "/out",
	})
	if err == nil {
		t.Fatal("expected fetch failure")
	}
	if !strings.Contains(err.Error(), "fetch segment 1") {
		t.Errorf("error should name the failing segment index: %v", err)
	}

	snap := svc.State().Snapshot()
	if snap.State != StateError || snap.LastError == "" {
		t.Errorf("state = %+v", snap)
	}
}

func TestServiceRunDeadlineReportsCancelled(t *testing.T) {
	srv, _ := segmentServer(t)

	tools := &stubTools{
		concatFn: func(ctx context.Context, listPath, outPath string, tags audio.Tags) error {
			// Simulates a hung external tool: only returns when cancelled.
			<-ctx.Done()
			return ctx.Err()
		},
	}

	cfg := testConfig()
	cfg.JobDeadline = 50 * time.Millisecond
	svc := NewService(cfg, tools, nil, zerolog.Nop())

	_, err := svc.Run(context.Background(), Request{
		JobID:     "ep-1",
		Segments:  []string{srv.URL + "/seg/0"},
		OutputURL: srv.URL + "/out",
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestServiceRunToolFailureIsNotCancelled(t *testing.T) {
	srv, _ := segmentServer(t)

	tools := &stubTools{
		concatFn: func(ctx context.Context, listPath, outPath string, tags audio.Tags) error {
			return errors.New("ffmpeg exited 1")
		},
	}

	svc := newTestService(tools)
	_, err := svc.Run(context.Background(), Request{
		JobID:     "ep-1",
		Segments:  []string{srv.URL + "/seg/0"},
		OutputURL: srv.URL + "/out",
	})
	if err == nil || errors.Is(err, ErrCancelled) {
		t.Fatalf("expected a plain tool failure, got %v", err)
	}
}

func TestServiceRunProbeFailureIsFailure(t *testing.T) {
	srv, _ := segmentServer(t)

	tools := &stubTools{
		probeFn: func(ctx context.Context, path string) (float64, error) {
			return 0, errors.New("no duration found")
		},
	}

	svc := newTestService(tools)
	_, err := svc.Run(context.Background(), Request{
		JobID:     "ep-1",
		Segments:  []string{srv.URL + "/seg/0"},
		OutputURL: srv.URL + "/out",
	})
	if err == nil || !strings.Contains(err.Error(), "probe duration") {
		t.Fatalf("expected probe failure, got %v", err)
	}
}

func TestServiceRunValidation(t *testing.T) {
	svc := newTestService(&stubTools{})

	_, err := svc.Run(context.Background(), Request{OutputURL: "http://x/out"})
	if !errors.Is(err, ErrNoSegments) {
		t.Errorf("expected ErrNoSegments, got %v", err)
	}

	_, err = svc.Run(context.Background(), Request{Segments: []string{"http://x/a"}})
	if !errors.Is(err, ErrNoOutputURL) {
		t.Errorf("expected ErrNoOutputURL, got %v", err)
	}

	if got := svc.State().Snapshot().State; got != StateIdle {
		t.Errorf("validation failures must not leave state %q", got)
	}
}

func TestServiceRunBusy(t *testing.T) {
	svc := newTestService(&stubTools{})
	svc.State().StartJob("other", 1)

	_, err := svc.Run(context.Background(), Request{
		Segments:  []string{"http://x/a"},
		OutputURL: "http://x/out",
	})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestServiceRunLocalFiles(t *testing.T) {
	dir := t.TempDir()
	for i, body := range []string{"one", "two"} {
		path := filepath.Join(dir, "seg"+string(rune('0'+i))+".mp3")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	outPath := filepath.Join(dir, "out", "episode.mp3")

	fileURL := func(p string) string {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
	}

	svc := newTestService(&stubTools{})
	resp, err := svc.Run(context.Background(), Request{
		JobID: "ep-local",
		Segments: []string{
			fileURL(filepath.Join(dir, "seg0.mp3")),
			fileURL(filepath.Join(dir, "seg1.mp3")),
		},
		OutputURL: fileURL(outPath),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Errorf("response = %+v", resp)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "episode mp3" {
		t.Errorf("output = %q", data)
	}
}

package audio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// recordingRunner captures the command line instead of executing it.
type recordingRunner struct {
	name string
	args []string
	out  []byte
	err  error
}

func (r *recordingRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	return r.out, r.err
}

func newTestToolset(r *recordingRunner) *Toolset {
	t := NewToolset("", "")
	t.run = r.run
	return t
}

func TestConcatArgs(t *testing.T) {
	r := &recordingRunner{}
	ts := newTestToolset(r)

	err := ts.Concat(context.Background(), "/tmp/w/list.txt", "/tmp/w/out.mp3", Tags{
		Title:  "Ep",
		Artist: "Strollcast",
		Album:  "Strollcast",
		Genre:  "Podcast",
	})
	if err != nil {
		t.Fatal(err)
	}

	if r.name != "ffmpeg" {
		t.Errorf("command = %q", r.name)
	}
	joined := strings.Join(r.args, " ")
	for _, want := range []string{
		"-f concat",
		"-safe 0",
		"-i /tmp/w/list.txt",
		"loudnorm=I=-16:TP=-1.5:LRA=11",
		"-c:a libmp3lame",
		"-b:a 128k",
		"-ar 44100",
		"-metadata title=Ep",
		"-metadata artist=Strollcast",
		"-metadata genre=Podcast",
		"-y /tmp/w/out.mp3",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestConcatToolFailure(t *testing.T) {
	r := &recordingRunner{err: errors.New("exit status 1: invalid data")}
	ts := newTestToolset(r)

	err := ts.Concat(context.Background(), "list.txt", "out.mp3", Tags{})
	if err == nil || !strings.Contains(err.Error(), "ffmpeg concat") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateSilenceArgs(t *testing.T) {
	r := &recordingRunner{}
	ts := newTestToolset(r)

	if err := ts.GenerateSilence(context.Background(), 800*time.Millisecond, "/tmp/s.mp3"); err != nil {
		t.Fatal(err)
	}

	joined := strings.Join(r.args, " ")
	for _, want := range []string{
		"-f lavfi",
		"anullsrc=r=44100:cl=mono",
		"-t 0.800",
		"-c:a libmp3lame",
		"-y /tmp/s.mp3",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestProbeDuration(t *testing.T) {
	t.Run("parses_output", func(t *testing.T) {
		r := &recordingRunner{out: []byte("123.456\n")}
		ts := newTestToolset(r)

		d, err := ts.ProbeDuration(context.Background(), "/tmp/out.mp3")
		if err != nil {
			t.Fatal(err)
		}
		if d != 123.456 {
			t.Errorf("duration = %v", d)
		}
		if r.name != "ffprobe" {
			t.Errorf("command = %q", r.name)
		}
		joined := strings.Join(r.args, " ")
		if !strings.Contains(joined, "format=duration") {
			t.Errorf("args = %s", joined)
		}
	})

	t.Run("rejects_na", func(t *testing.T) {
		ts := newTestToolset(&recordingRunner{out: []byte("N/A\n")})
		if _, err := ts.ProbeDuration(context.Background(), "x"); err == nil {
			t.Error("expected error for N/A duration")
		}
	})

	t.Run("rejects_empty", func(t *testing.T) {
		ts := newTestToolset(&recordingRunner{out: []byte("")})
		if _, err := ts.ProbeDuration(context.Background(), "x"); err == nil {
			t.Error("expected error for empty output")
		}
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		ts := newTestToolset(&recordingRunner{out: []byte("soon")})
		if _, err := ts.ProbeDuration(context.Background(), "x"); err == nil {
			t.Error("expected error for unparseable output")
		}
	})
}

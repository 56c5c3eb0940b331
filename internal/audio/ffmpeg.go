// Package audio wraps the ffmpeg and ffprobe command line tools.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Tags are the ID3 metadata written onto a produced episode file.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Genre  string
}

// runner executes an external command and returns its stdout. Swapped out in
// tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

// Toolset locates and invokes ffmpeg/ffprobe. Empty paths fall back to PATH
// lookup.
type Toolset struct {
	ffmpeg  string
	ffprobe string
	run     runner
}

// NewToolset creates a Toolset with the given binary paths.
func NewToolset(ffmpegPath, ffprobePath string) *Toolset {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Toolset{ffmpeg: ffmpegPath, ffprobe: ffprobePath, run: runCommand}
}

// Check verifies both tools are runnable. Call once at startup.
func (t *Toolset) Check() error {
	if _, err := exec.LookPath(t.ffmpeg); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	if _, err := exec.LookPath(t.ffprobe); err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	return nil
}

// Concat joins the files listed in the concat-demuxer manifest at listPath
// into a single loudness-normalized MP3 at outPath, tagging it with the
// episode metadata.
//
// Loudness normalization targets the streaming-podcast profile (-16 LUFS
// integrated, -1.5 dBTP peak).
func (t *Toolset) Concat(ctx context.Context, listPath, outPath string, tags Tags) error {
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-ar", "44100",
		"-metadata", "title=" + tags.Title,
		"-metadata", "artist=" + tags.Artist,
		"-metadata", "album=" + tags.Album,
		"-metadata", "genre=" + tags.Genre,
		"-y", outPath,
	}
	if _, err := t.run(ctx, t.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// GenerateSilence writes a silent MP3 of the given length to outPath, matching
// the sample rate and codec of synthesized segments so the concat demuxer can
// splice it without re-encoding surprises.
func (t *Toolset) GenerateSilence(ctx context.Context, d time.Duration, outPath string) error {
	args := []string{
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=mono",
		"-t", strconv.FormatFloat(d.Seconds(), 'f', 3, 64),
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-y", outPath,
	}
	if _, err := t.run(ctx, t.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg silence: %w", err)
	}
	return nil
}

// ProbeDuration returns the duration of an audio file in seconds.
func (t *Toolset) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.run(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", raw, err)
	}
	return d, nil
}

// Package episode drives one podcast episode through its generation stages.
package episode

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/strollcast/director/internal/concat"
)

// ErrNoScript is returned by a ScriptStore when no script exists for the
// episode yet.
var ErrNoScript = errors.New("no script for episode")

// Metadata identifies and describes one episode.
type Metadata struct {
	// Name is the episode folder name, author-year-shortname
	// (e.g. "zhao-2023-pytorch-fsdp").
	Name    string
	Title   string
	Authors []string
	ArxivID string
}

// Record is the persisted episode row handed to the record store once
// generation completes.
type Record struct {
	ID              string
	Title           string
	AudioURL        string
	TranscriptURL   string
	DurationSeconds float64
	SegmentCount    int
	UpdatedAt       time.Time
}

// ScriptStore holds reviewed episode scripts.
type ScriptStore interface {
	// Script returns the script markdown. ErrNoScript if absent.
	Script(ctx context.Context, name string) (string, error)
	// SaveScript stores a newly generated script for review and reruns.
	SaveScript(ctx context.Context, name, script string) error
}

// TranscriptGenerator writes a script for an episode that lacks one.
type TranscriptGenerator interface {
	Generate(ctx context.Context, meta Metadata) (string, error)
}

// Store persists episode records.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
}

// ConcatClient submits a concatenation job to a running worker and blocks
// until it finishes.
type ConcatClient interface {
	Concat(ctx context.Context, req concat.Request) (*concat.Response, error)
}

// PodcastID derives the public caption identifier from the episode name:
// author-year-shortname becomes shortname-year. Names not in that form pass
// through unchanged.
func PodcastID(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return name
	}
	return strings.Join(parts[2:], "-") + "-" + parts[1]
}

// AudioKey is the output-bucket key for the finished episode.
func AudioKey(name string) string { return "episodes/" + name + ".mp3" }

// CaptionKey is the output-bucket key for the episode's WebVTT track.
func CaptionKey(name string) string { return "api/" + PodcastID(name) + ".vtt" }

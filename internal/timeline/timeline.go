// Package timeline computes caption cue times from measured segment durations
// and renders them as WebVTT.
package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Entry is one timeline input, in playback order. Pause entries contribute
// the configured pause duration and produce no cue; speech entries carry the
// provider-measured duration in seconds.
type Entry struct {
	Speaker  string
	Caption  string
	Pause    bool
	Duration float64
}

// Cue is one caption with its computed time window, in seconds from episode
// start.
type Cue struct {
	Speaker string
	Text    string
	Start   float64
	End     float64
}

// Options configures cue timing. The zero value uses no section pause and no
// inter-segment gap.
type Options struct {
	// PauseDuration is the silence inserted for each pause entry.
	PauseDuration time.Duration
	// SegmentGap is added after every entry, speech and pause alike.
	SegmentGap time.Duration
}

// Build walks the entries in order and accumulates cue windows. Cues never
// overlap and appear in entry order; each cue's span equals its measured
// duration exactly. Durations must be finite and non-negative.
func Build(entries []Entry, opts Options) ([]Cue, error) {
	gap := opts.SegmentGap.Seconds()
	pause := opts.PauseDuration.Seconds()

	var cues []Cue
	cursor := 0.0
	for i, e := range entries {
		if e.Pause {
			cursor += pause + gap
			continue
		}
		if math.IsNaN(e.Duration) || math.IsInf(e.Duration, 0) || e.Duration < 0 {
			return nil, fmt.Errorf("entry %d (%s): invalid duration %v", i, e.Speaker, e.Duration)
		}
		cues = append(cues, Cue{
			Speaker: titleCase(e.Speaker),
			Text:    e.Caption,
			Start:   cursor,
			End:     cursor + e.Duration,
		})
		cursor += e.Duration + gap
	}
	return cues, nil
}

// titleCase renders an uppercase speaker label as a display name: ERIC
// becomes Eric.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

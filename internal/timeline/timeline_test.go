package timeline

import (
	"math"
	"testing"
	"time"
)

func TestBuildOrderingInvariant(t *testing.T) {
	entries := []Entry{
		{Speaker: "ERIC", Caption: "one", Duration: 3.2},
		{Pause: true},
		{Speaker: "MAYA", Caption: "two", Duration: 1.1},
		{Speaker: "ERIC", Caption: "three", Duration: 0.4},
	}
	cues, err := Build(entries, Options{PauseDuration: 800 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	for i, c := range cues {
		if c.Start > c.End {
			t.Errorf("cue %d: start %v > end %v", i, c.Start, c.End)
		}
		if i+1 < len(cues) && c.End > cues[i+1].Start {
			t.Errorf("cue %d end %v overlaps cue %d start %v", i, c.End, i+1, cues[i+1].Start)
		}
	}
}

func TestBuildPauseAdvancesClock(t *testing.T) {
	// Second cue starts at d1 + 0.8: the pause advances the clock by exactly
	// its fixed interval and emits no cue.
	d1 := 3.25
	entries := []Entry{
		{Speaker: "ERIC", Caption: "Hi.", Duration: d1},
		{Pause: true},
		{Speaker: "MAYA", Caption: "Hi back.", Duration: 2.0},
	}
	cues, err := Build(entries, Options{PauseDuration: 800 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if got, want := cues[1].Start, d1+0.8; math.Abs(got-want) > 1e-9 {
		t.Errorf("second cue start = %v, want %v", got, want)
	}
}

func TestBuildSegmentGap(t *testing.T) {
	entries := []Entry{
		{Speaker: "ERIC", Caption: "a", Duration: 1.0},
		{Speaker: "MAYA", Caption: "b", Duration: 1.0},
	}
	cues, err := Build(entries, Options{SegmentGap: 300 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cues[1].Start, 1.3; math.Abs(got-want) > 1e-9 {
		t.Errorf("second cue start = %v, want %v", got, want)
	}
}

func TestBuildCueSpanEqualsDuration(t *testing.T) {
	cues, err := Build([]Entry{{Speaker: "ERIC", Caption: "a", Duration: 2.5}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cues[0].Start != 0 || cues[0].End != 2.5 {
		t.Errorf("cue window = [%v, %v], want [0, 2.5]", cues[0].Start, cues[0].End)
	}
}

func TestBuildRejectsBadDurations(t *testing.T) {
	cases := map[string]float64{
		"negative": -1,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build([]Entry{{Speaker: "ERIC", Caption: "x", Duration: d}}, Options{})
			if err == nil {
				t.Errorf("expected error for duration %v", d)
			}
		})
	}
}

func TestBuildTitleCasesSpeakers(t *testing.T) {
	cues, err := Build([]Entry{{Speaker: "ERIC", Caption: "a", Duration: 1}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cues[0].Speaker != "Eric" {
		t.Errorf("speaker = %q, want Eric", cues[0].Speaker)
	}
}

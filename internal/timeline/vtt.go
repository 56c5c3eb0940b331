package timeline

import (
	"fmt"
	"io"
	"strings"
)

// FormatTimestamp renders seconds as a WebVTT timestamp, HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// WriteVTT renders the cues as a WebVTT document with numbered cues and
// voice-tagged text.
func WriteVTT(w io.Writer, cues []Cue) error {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(c.Start), FormatTimestamp(c.End))
		fmt.Fprintf(&b, "<v %s>%s\n\n", c.Speaker, c.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderVTT is WriteVTT into a string.
func RenderVTT(cues []Cue) string {
	var b strings.Builder
	_ = WriteVTT(&b, cues)
	return b.String()
}

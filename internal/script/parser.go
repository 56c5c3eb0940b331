// Package script parses speaker-tagged podcast scripts into ordered segments.
package script

import (
	"regexp"
	"strings"
)

// SpeakerPause marks a silent section break; it carries no text and is never
// synthesized.
const SpeakerPause = "PAUSE"

// Segment is one parsed speaker utterance or pause marker.
//
// Speech is the synthesis input: markdown links reduced to their anchor text,
// annotations and emphasis markers stripped. Caption is the transcript
// variant: links are kept, with internal shorthand links expanded to full
// URLs. Both are empty for pause segments.
type Segment struct {
	Speaker string
	Speech  string
	Caption string
}

// IsPause reports whether the segment is a silent section break.
func (s Segment) IsPause() bool { return s.Speaker == SpeakerPause }

// Options configures parsing. The zero value accepts the default hosts.
type Options struct {
	// Speakers is the set of accepted speaker labels. Lines tagged with any
	// other label are ignored, matching the original pipeline. Defaults to
	// ERIC and MAYA.
	Speakers []string
}

var (
	// **ERIC:** rest-of-line
	speakerRe = regexp.MustCompile(`^\*\*([A-Z]+):\*\*\s*(.*)$`)

	// {{src: ...}} / {{page: ..., section: ...}} source annotations
	annotationRe = regexp.MustCompile(`\{\{[^}]*\}\}`)

	// **[stage direction]** blocks
	boldBracketRe = regexp.MustCompile(`\*\*\[.*?\]\*\*`)

	// [anchor](target) markdown links
	linkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)

	// [bracketed] text that is not a markdown link
	bareBracketRe = regexp.MustCompile(`\[[^\]]*\](?:[^(]|$)`)
)

// arxivPrefix is the internal shorthand link scheme. [anchor](arxiv:2304.11277)
// expands to the canonical abstract URL in caption text.
const arxivPrefix = "arxiv:"

// Parse extracts the ordered segment sequence from a markdown script.
// Speaker lines use the bold **NAME:** form; `## [...]` section headers
// become pause segments. Segments whose text is empty after cleanup are
// dropped. An empty result is valid parser output.
func Parse(raw string, opts Options) []Segment {
	speakers := opts.Speakers
	if len(speakers) == 0 {
		speakers = []string{"ERIC", "MAYA"}
	}
	accepted := make(map[string]bool, len(speakers))
	for _, sp := range speakers {
		accepted[strings.ToUpper(sp)] = true
	}

	var segments []Segment
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := speakerRe.FindStringSubmatch(line); m != nil {
			speaker, rest := m[1], m[2]
			if !accepted[speaker] {
				continue
			}
			speech := speechText(rest)
			if speech == "" {
				continue
			}
			segments = append(segments, Segment{
				Speaker: speaker,
				Speech:  speech,
				Caption: captionText(rest),
			})
			continue
		}

		if strings.HasPrefix(line, "## [") {
			segments = append(segments, Segment{Speaker: SpeakerPause})
		}
	}
	return segments
}

// speechText produces the synthesis variant: annotations gone, links reduced
// to anchor text, leftover bracket blocks and emphasis markers removed.
func speechText(s string) string {
	s = annotationRe.ReplaceAllString(s, "")
	s = boldBracketRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	s = stripBareBrackets(s)
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "*", "")
	return collapseSpaces(s)
}

// captionText produces the transcript variant: annotations and stage
// directions are stripped like speech text, but markdown links survive, with
// shorthand arxiv links expanded to fully-qualified URLs.
func captionText(s string) string {
	s = annotationRe.ReplaceAllString(s, "")
	s = boldBracketRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllStringFunc(s, func(link string) string {
		m := linkRe.FindStringSubmatch(link)
		target := m[2]
		if id, ok := strings.CutPrefix(target, arxivPrefix); ok {
			target = "https://arxiv.org/abs/" + id
		}
		return "[" + m[1] + "](" + target + ")"
	})
	s = stripBareBrackets(s)
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "*", "")
	return collapseSpaces(s)
}

// stripBareBrackets removes [bracketed] runs that are not markdown links.
func stripBareBrackets(s string) string {
	return bareBracketRe.ReplaceAllStringFunc(s, func(m string) string {
		// The match may include one trailing non-paren character; keep it.
		if i := strings.LastIndexByte(m, ']'); i >= 0 && i+1 < len(m) {
			return m[i+1:]
		}
		return ""
	})
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

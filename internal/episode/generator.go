package episode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/audio"
	"github.com/strollcast/director/internal/cache"
	"github.com/strollcast/director/internal/concat"
	"github.com/strollcast/director/internal/metrics"
	"github.com/strollcast/director/internal/script"
	"github.com/strollcast/director/internal/storage"
	"github.com/strollcast/director/internal/timeline"
	"github.com/strollcast/director/internal/tts"
)

// ErrEmptyScript is returned when parsing yields no segments; an episode
// cannot be generated from nothing.
var ErrEmptyScript = errors.New("script produced no segments")

// GeneratorConfig holds the pacing, tagging and voice parameters of the
// audio stage.
type GeneratorConfig struct {
	PauseDuration time.Duration
	SegmentGap    time.Duration

	TagArtist string
	TagAlbum  string
	TagGenre  string

	// Seeds maps speaker labels to their fixed synthesis seeds.
	Seeds map[string]int
	// Speakers is the accepted label set; empty uses the parser default.
	Speakers []string
}

// silencer generates silent audio files. Satisfied by audio.Toolset.
type silencer interface {
	GenerateSilence(ctx context.Context, d time.Duration, outPath string) error
}

// Stats reports cache effectiveness for one generation run.
type Stats struct {
	CacheHits     int
	ProviderCalls int
}

// Result is the outcome of one audio-stage run.
type Result struct {
	DurationSeconds float64
	FileSize        int64
	SegmentCount    int
	Stats           Stats
}

// Generator runs the audio stage: synthesis through the cache, silence
// materialization, timeline build, concatenation, caption upload.
type Generator struct {
	cache    *cache.Cache
	output   storage.ObjectStore
	provider tts.Provider
	silence  silencer
	concat   ConcatClient
	cfg      GeneratorConfig
	log      zerolog.Logger
}

// NewGenerator wires the audio stage.
func NewGenerator(c *cache.Cache, output storage.ObjectStore, provider tts.Provider, silence silencer, cc ConcatClient, cfg GeneratorConfig, log zerolog.Logger) *Generator {
	return &Generator{
		cache:    c,
		output:   output,
		provider: provider,
		silence:  silence,
		concat:   cc,
		cfg:      cfg,
		log:      log.With().Str("component", "generator").Logger(),
	}
}

// Generate produces the episode audio and caption track from a script.
// Segments are synthesized sequentially in script order; the cache is
// consulted first for every one, so a rerun of an unchanged script costs no
// provider calls.
func (g *Generator) Generate(ctx context.Context, meta Metadata, scriptText string) (*Result, error) {
	segments := script.Parse(scriptText, script.Options{Speakers: g.cfg.Speakers})
	if len(segments) == 0 {
		return nil, ErrEmptyScript
	}

	log := g.log.With().Str("episode", meta.Name).Logger()
	stats := Stats{}

	var (
		orderedKeys []string
		entries     []timeline.Entry
		speechCount int
	)

	gapKey := ""
	if g.cfg.SegmentGap > 0 {
		key, err := g.silenceSegment(ctx, g.cfg.SegmentGap)
		if err != nil {
			return nil, fmt.Errorf("materialize gap silence: %w", err)
		}
		gapKey = key
	}

	for i, seg := range segments {
		if seg.IsPause() {
			key, err := g.silenceSegment(ctx, g.cfg.PauseDuration)
			if err != nil {
				return nil, fmt.Errorf("materialize pause silence: %w", err)
			}
			orderedKeys = append(orderedKeys, key)
			entries = append(entries, timeline.Entry{Pause: true})
		} else {
			key := cache.ComputeKey(cache.KeyInput{
				Text:     seg.Speech,
				Voice:    g.provider.VoiceFor(seg.Speaker),
				Model:    g.provider.Model(),
				Provider: g.provider.Name(),
			})

			duration, hit := g.cache.Duration(ctx, key)
			if hit {
				stats.CacheHits++
			} else {
				d, err := g.synthesize(ctx, segments, i, key)
				if err != nil {
					return nil, fmt.Errorf("synthesize segment %d (%s): %w", i, seg.Speaker, err)
				}
				duration = d
				stats.ProviderCalls++
			}

			orderedKeys = append(orderedKeys, key)
			entries = append(entries, timeline.Entry{
				Speaker:  seg.Speaker,
				Caption:  seg.Caption,
				Duration: duration,
			})
			speechCount++
		}

		if gapKey != "" {
			orderedKeys = append(orderedKeys, gapKey)
		}
	}

	cues, err := timeline.Build(entries, timeline.Options{
		PauseDuration: g.cfg.PauseDuration,
		SegmentGap:    g.cfg.SegmentGap,
	})
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}

	segmentURLs := make([]string, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		u, err := g.cache.URL(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("presign segment %s: %w", key, err)
		}
		segmentURLs = append(segmentURLs, u)
	}

	outputURL, err := g.output.PutURL(ctx, AudioKey(meta.Name), "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("presign output: %w", err)
	}

	title := meta.Title
	if title == "" {
		title = meta.Name
	}
	jobID := meta.Name + "-" + uuid.NewString()

	log.Info().
		Str("job_id", jobID).
		Int("segments", len(orderedKeys)).
		Int("cache_hits", stats.CacheHits).
		Int("provider_calls", stats.ProviderCalls).
		Msg("submitting concatenation job")

	resp, err := g.concat.Concat(ctx, concat.Request{
		JobID:     jobID,
		Segments:  segmentURLs,
		OutputURL: outputURL,
		Tags: audio.Tags{
			Title:  title,
			Artist: g.cfg.TagArtist,
			Album:  g.cfg.TagAlbum,
			Genre:  g.cfg.TagGenre,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("concatenate episode: %w", err)
	}

	vtt := timeline.RenderVTT(cues)
	if err := g.output.Save(ctx, CaptionKey(meta.Name), []byte(vtt), "text/vtt", nil); err != nil {
		return nil, fmt.Errorf("upload captions: %w", err)
	}

	return &Result{
		DurationSeconds: resp.DurationSeconds,
		FileSize:        resp.FileSize,
		SegmentCount:    speechCount,
		Stats:           stats,
	}, nil
}

// RepairCaptions rebuilds and uploads the caption track from cached segment
// durations alone, for the case where the episode audio exists but its VTT is
// missing. Reports false without error when a needed duration is no longer
// cached; the caller then falls back to a full generation run.
func (g *Generator) RepairCaptions(ctx context.Context, meta Metadata, scriptText string) (bool, error) {
	segments := script.Parse(scriptText, script.Options{Speakers: g.cfg.Speakers})
	if len(segments) == 0 {
		return false, ErrEmptyScript
	}

	var entries []timeline.Entry
	for _, seg := range segments {
		if seg.IsPause() {
			entries = append(entries, timeline.Entry{Pause: true})
			continue
		}
		key := cache.ComputeKey(cache.KeyInput{
			Text:     seg.Speech,
			Voice:    g.provider.VoiceFor(seg.Speaker),
			Model:    g.provider.Model(),
			Provider: g.provider.Name(),
		})
		duration, ok := g.cache.Duration(ctx, key)
		if !ok {
			return false, nil
		}
		entries = append(entries, timeline.Entry{
			Speaker:  seg.Speaker,
			Caption:  seg.Caption,
			Duration: duration,
		})
	}

	cues, err := timeline.Build(entries, timeline.Options{
		PauseDuration: g.cfg.PauseDuration,
		SegmentGap:    g.cfg.SegmentGap,
	})
	if err != nil {
		return false, fmt.Errorf("build timeline: %w", err)
	}

	vtt := timeline.RenderVTT(cues)
	if err := g.output.Save(ctx, CaptionKey(meta.Name), []byte(vtt), "text/vtt", nil); err != nil {
		return false, fmt.Errorf("upload captions: %w", err)
	}
	return true, nil
}

// synthesize generates one speech segment through the provider with
// continuity hints from the adjacent speech segments, then caches it.
func (g *Generator) synthesize(ctx context.Context, segments []script.Segment, i int, key string) (float64, error) {
	seg := segments[i]
	req := tts.Request{
		Text:  seg.Speech,
		Voice: g.provider.VoiceFor(seg.Speaker),
		Continuity: tts.Continuity{
			PreviousText: adjacentSpeech(segments, i, -1),
			NextText:     adjacentSpeech(segments, i, +1),
			Seed:         g.cfg.Seeds[seg.Speaker],
		},
	}

	metrics.SynthesisCallsTotal.WithLabelValues(g.provider.Name()).Inc()
	result, err := g.provider.Synthesize(ctx, req)
	if err != nil {
		metrics.SynthesisErrorsTotal.WithLabelValues(g.provider.Name()).Inc()
		return 0, err
	}

	g.cache.Put(ctx, key, result.Audio, result.Duration)
	return result.Duration, nil
}

// silenceSegment returns the fingerprint of a cached silent segment of the
// given length, materializing it through ffmpeg on first use. Silence is
// content-addressed like speech, so every episode shares one object per
// distinct length.
func (g *Generator) silenceSegment(ctx context.Context, d time.Duration) (string, error) {
	key := cache.ComputeKey(cache.KeyInput{
		Text:     fmt.Sprintf("silence %dms", d.Milliseconds()),
		Voice:    "none",
		Model:    "anullsrc",
		Provider: "ffmpeg",
	})
	if g.cache.Contains(ctx, key) {
		return key, nil
	}

	dir, err := os.MkdirTemp("", "silence-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "silence.mp3")
	if err := g.silence.GenerateSilence(ctx, d, path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	g.cache.Put(ctx, key, data, d.Seconds())
	return key, nil
}

// adjacentSpeech returns the speech text of the nearest non-pause segment in
// the given direction, or empty at the script edges.
func adjacentSpeech(segments []script.Segment, i, dir int) string {
	for j := i + dir; j >= 0 && j < len(segments); j += dir {
		if !segments[j].IsPause() {
			return segments[j].Speech
		}
	}
	return ""
}

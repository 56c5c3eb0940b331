package episode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/storage"
)

// Stage is one step of the generation pipeline.
type Stage string

const (
	StageTranscript Stage = "transcript"
	StageAudio      Stage = "audio"
	StageDone       Stage = "done"
)

// Outcome summarizes one orchestrator run.
type Outcome struct {
	// StagesRun lists the stages that actually did work; a fully
	// short-circuited rerun lists none.
	StagesRun       []Stage
	AudioURL        string
	TranscriptURL   string
	DurationSeconds float64
	SegmentCount    int
	Stats           Stats
}

// Orchestrator drives an episode through {transcript, audio, done}. Every
// stage probes its output artifact first and short-circuits if it already
// exists, so the pipeline is safely re-invocable after partial failure
// without redoing completed work.
type Orchestrator struct {
	scripts     ScriptStore
	transcripts TranscriptGenerator
	records     Store
	gen         *Generator
	output      storage.ObjectStore
	log         zerolog.Logger
}

// NewOrchestrator wires the pipeline stages.
func NewOrchestrator(scripts ScriptStore, transcripts TranscriptGenerator, records Store, gen *Generator, output storage.ObjectStore, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		scripts:     scripts,
		transcripts: transcripts,
		records:     records,
		gen:         gen,
		output:      output,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run takes the episode through every stage it still needs.
func (o *Orchestrator) Run(ctx context.Context, meta Metadata) (*Outcome, error) {
	log := o.log.With().Str("episode", meta.Name).Logger()
	outcome := &Outcome{}

	scriptText, err := o.transcriptStage(ctx, meta, outcome, log)
	if err != nil {
		return nil, fmt.Errorf("transcript stage: %w", err)
	}

	if err := o.audioStage(ctx, meta, scriptText, outcome, log); err != nil {
		return nil, fmt.Errorf("audio stage: %w", err)
	}

	if err := o.finalize(ctx, meta, outcome); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	log.Info().
		Interface("stages_run", outcome.StagesRun).
		Float64("duration_seconds", outcome.DurationSeconds).
		Int("cache_hits", outcome.Stats.CacheHits).
		Int("provider_calls", outcome.Stats.ProviderCalls).
		Msg("episode pipeline complete")
	return outcome, nil
}

// transcriptStage returns the episode script, generating and storing one if
// none exists yet.
func (o *Orchestrator) transcriptStage(ctx context.Context, meta Metadata, outcome *Outcome, log zerolog.Logger) (string, error) {
	scriptText, err := o.scripts.Script(ctx, meta.Name)
	if err == nil {
		log.Debug().Msg("script exists, skipping transcript stage")
		return scriptText, nil
	}
	if !errors.Is(err, ErrNoScript) {
		return "", err
	}
	if o.transcripts == nil {
		return "", fmt.Errorf("episode %s has no script and no transcript generator is configured", meta.Name)
	}

	log.Info().Msg("generating transcript")
	scriptText, err = o.transcripts.Generate(ctx, meta)
	if err != nil {
		return "", err
	}
	if err := o.scripts.SaveScript(ctx, meta.Name, scriptText); err != nil {
		return "", fmt.Errorf("save script: %w", err)
	}
	outcome.StagesRun = append(outcome.StagesRun, StageTranscript)
	return scriptText, nil
}

// audioStage produces the episode audio and caption track unless both
// artifacts already exist. The half-done states are repaired at the lowest
// cost that restores consistency: a missing caption track is rebuilt from
// cached durations without touching audio; anything else goes through a full
// generation run, which the segment cache keeps cheap.
func (o *Orchestrator) audioStage(ctx context.Context, meta Metadata, scriptText string, outcome *Outcome, log zerolog.Logger) error {
	audioExists := o.output.Exists(ctx, AudioKey(meta.Name))
	captionExists := o.output.Exists(ctx, CaptionKey(meta.Name))

	if audioExists && captionExists {
		log.Debug().Msg("audio and captions exist, skipping audio stage")
		return nil
	}

	if audioExists && !captionExists {
		repaired, err := o.gen.RepairCaptions(ctx, meta, scriptText)
		if err != nil {
			return err
		}
		if repaired {
			log.Info().Msg("caption track rebuilt from cached durations")
			outcome.StagesRun = append(outcome.StagesRun, StageAudio)
			return nil
		}
		log.Warn().Msg("cached durations incomplete, regenerating episode")
	}

	result, err := o.gen.Generate(ctx, meta, scriptText)
	if err != nil {
		return err
	}
	outcome.StagesRun = append(outcome.StagesRun, StageAudio)
	outcome.DurationSeconds = result.DurationSeconds
	outcome.SegmentCount = result.SegmentCount
	outcome.Stats = result.Stats
	return nil
}

// finalize records the episode and resolves its public artifact URLs.
func (o *Orchestrator) finalize(ctx context.Context, meta Metadata, outcome *Outcome) error {
	audioURL, err := o.output.GetURL(ctx, AudioKey(meta.Name))
	if err != nil {
		return fmt.Errorf("resolve audio URL: %w", err)
	}
	captionURL, err := o.output.GetURL(ctx, CaptionKey(meta.Name))
	if err != nil {
		return fmt.Errorf("resolve caption URL: %w", err)
	}
	outcome.AudioURL = audioURL
	outcome.TranscriptURL = captionURL

	if o.records == nil {
		return nil
	}
	title := meta.Title
	if title == "" {
		title = meta.Name
	}
	return o.records.Upsert(ctx, Record{
		ID:              PodcastID(meta.Name),
		Title:           title,
		AudioURL:        audioURL,
		TranscriptURL:   captionURL,
		DurationSeconds: outcome.DurationSeconds,
		SegmentCount:    outcome.SegmentCount,
		UpdatedAt:       time.Now().UTC(),
	})
}

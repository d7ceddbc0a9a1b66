// Package job runs the batch pipelines: text-to-speech generation over a
// list of segments and speech-to-text transcription over a list of files.
package job

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"
	"github.com/rogoai/voice-studio/internal/audio"
	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/daylog"
	"github.com/rogoai/voice-studio/internal/fileutil"
	"github.com/rogoai/voice-studio/internal/naming"
)

// State is the lifecycle position of a batch job.
type State string

// Job states. A job moves Idle -> Running -> one of the terminal states, and
// back to Idle only through a new run on a fresh runner state.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Log formats.
const (
	logFmtSegmentDone   = "Generated %s (%d/%d, %d ms)"
	logFmtSegmentFailed = "Segment %d/%d failed: %v"
	logFmtJobFinished   = "Generation finished: state=%s, %d/%d segments, output=%s"
)

// Static errors.
var (
	ErrJobInFlight    = errors.New("a generation job is already running")
	ErrNoSegments     = errors.New("input contains no non-empty segments")
	ErrUnknownBackend = errors.New("no engine registered for backend")
)

// CompletionFunc is called exactly once when a generation run reaches a
// terminal state.
type CompletionFunc func(succeeded, total int, outputDir string)

// ProgressFunc is called after every finished segment.
type ProgressFunc func(done, total int)

// GenerationRunner drives one batch text-to-speech job at a time: per
// segment it synthesizes, post-processes, names, writes, and records the
// clip. Segments run sequentially; a failure aborts the whole job and
// already-written clips stay on disk.
type GenerationRunner struct {
	engines map[core.BackendKind]core.SynthesisEngine
	dayLog  *daylog.Writer
	log     *logger.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	cancelled atomic.Bool
}

// NewGenerationRunner creates a runner over the given engines.
func NewGenerationRunner(
	engines map[core.BackendKind]core.SynthesisEngine,
	dayLog *daylog.Writer,
	log *logger.Logger,
) *GenerationRunner {
	return &GenerationRunner{
		engines: engines,
		dayLog:  dayLog,
		log:     log,
		now:     time.Now,
		state:   StateIdle,
	}
}

// State returns the runner's current lifecycle state.
func (r *GenerationRunner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Cancel requests a cooperative stop. The flag is polled once per segment
// boundary, so an in-flight synthesis call always finishes first.
func (r *GenerationRunner) Cancel() {
	r.cancelled.Store(true)
}

// Run executes one batch generation job. Only one job may be in flight per
// runner; a second call while running returns ErrJobInFlight. onProgress and
// onComplete may be nil.
//
// Sequence numbers are the 1-based positions within the original segment
// list, so a cancelled job leaves contiguous numbers with a gap at the end
// rather than renumbering.
func (r *GenerationRunner) Run(
	ctx context.Context,
	req core.GenerationRequest,
	onProgress ProgressFunc,
	onComplete CompletionFunc,
) ([]core.GenerationResult, error) {
	engine, setupErr := r.begin(req)
	if setupErr != nil {
		return nil, setupErr
	}

	dirErr := fileutil.EnsureDir(req.OutputDir)
	if dirErr != nil {
		r.finish(StateFailed)

		r.log.Info(logFmtJobFinished, StateFailed, 0, len(req.Segments), req.OutputDir)

		// Every terminal transition reports completion, even one reached
		// before the first segment.
		if onComplete != nil {
			onComplete(0, len(req.Segments), req.OutputDir)
		}

		return nil, dirErr
	}

	results, runErr := r.runSegments(ctx, req, engine, onProgress)

	succeeded := 0

	for _, result := range results {
		if result.Succeeded {
			succeeded++
		}
	}

	finalState := StateCompleted

	switch {
	case runErr != nil:
		finalState = StateFailed
	case r.cancelled.Load():
		finalState = StateCancelled
	}

	r.finish(finalState)

	r.log.Info(logFmtJobFinished, finalState, succeeded, len(req.Segments), req.OutputDir)

	if onComplete != nil {
		onComplete(succeeded, len(req.Segments), req.OutputDir)
	}

	return results, runErr
}

// begin validates the request and transitions the runner into the running
// state, returning the engine for the requested backend.
func (r *GenerationRunner) begin(req core.GenerationRequest) (core.SynthesisEngine, error) {
	if len(nonEmptySegments(req.Segments)) == 0 {
		return nil, ErrNoSegments
	}

	engine, ok := r.engines[req.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, req.Backend)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning {
		return nil, ErrJobInFlight
	}

	r.state = StateRunning
	r.cancelled.Store(false)

	return engine, nil
}

func (r *GenerationRunner) finish(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = state
}

// runSegments walks the original segment list in order. The first failure
// stops the job; segments already written stay as they are.
func (r *GenerationRunner) runSegments(
	ctx context.Context,
	req core.GenerationRequest,
	engine core.SynthesisEngine,
	onProgress ProgressFunc,
) ([]core.GenerationResult, error) {
	total := len(req.Segments)
	results := make([]core.GenerationResult, 0, total)

	for index, segment := range req.Segments {
		if r.cancelled.Load() {
			return results, nil
		}

		text := strings.TrimSpace(segment)
		if text == "" {
			continue
		}

		sequence := index + 1

		result, segErr := r.runOneSegment(ctx, req, engine, text, sequence)
		if segErr != nil {
			r.log.Error(logFmtSegmentFailed, sequence, total, segErr)
			results = append(results, core.GenerationResult{
				Succeeded: false,
				Text:      text,
				Backend:   req.Backend,
				SpeakerID: req.Params.SpeakerID,
				Err:       segErr,
			})

			return results, fmt.Errorf("segment %d/%d: %w", sequence, total, segErr)
		}

		results = append(results, result)

		r.log.Info(logFmtSegmentDone, result.FilePath, sequence, total, result.ClipMillis)

		if onProgress != nil {
			onProgress(sequence, total)
		}
	}

	return results, nil
}

// runOneSegment synthesizes, post-processes, names, writes, and records one
// segment.
func (r *GenerationRunner) runOneSegment(
	ctx context.Context,
	req core.GenerationRequest,
	engine core.SynthesisEngine,
	text string,
	sequence int,
) (core.GenerationResult, error) {
	rawAudio, synthErr := engine.Synthesize(ctx, text, req.Params)
	if synthErr != nil {
		return core.GenerationResult{}, fmt.Errorf("synthesis failed: %w", synthErr)
	}

	clip, processErr := audio.Process(
		rawAudio, req.Params.Volume, req.PreSilenceSec, req.PostSilenceSec,
	)
	if processErr != nil {
		return core.GenerationResult{}, processErr
	}

	fileName := naming.Render(
		req.FilenamePattern,
		req.Prefix,
		sequence,
		req.SequenceDigits,
		text,
		req.Backend,
		req.Params.SpeakerID,
		req.Format,
		r.now().Format(naming.ClipTimestampLayout),
	)

	outputPath, resolveErr := naming.ResolveCollision(req.OutputDir, fileName)
	if resolveErr != nil {
		return core.GenerationResult{}, resolveErr
	}

	exportErr := audio.Export(ctx, clip, outputPath, req.Format)
	if exportErr != nil {
		return core.GenerationResult{}, exportErr
	}

	r.dayLog.Append(req.OutputDir, filepath.Base(outputPath), text)

	return core.GenerationResult{
		Succeeded:  true,
		FilePath:   outputPath,
		ClipMillis: clip.DurationMillis(),
		Text:       text,
		Backend:    req.Backend,
		SpeakerID:  req.Params.SpeakerID,
		Err:        nil,
	}, nil
}

// nonEmptySegments filters out segments that trim to nothing.
func nonEmptySegments(segments []string) []string {
	kept := make([]string, 0, len(segments))

	for _, segment := range segments {
		if strings.TrimSpace(segment) != "" {
			kept = append(kept, segment)
		}
	}

	return kept
}

// Package clone provides the local voice-cloning synthesis engine, driven as
// a subprocess around a neural TTS binary.
//
// The underlying model takes a long time to load, so the engine starts in a
// not-ready state; SetReady is flipped once the model-loading process reports
// completion, and synthesis calls before that fail fast.
package clone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/book-expert/logger"
	"github.com/rogoai/voice-studio/internal/core"
)

const (
	tempOutputPattern = "voice-clone-*.wav"
	defaultLanguage   = "ja"

	errFmtBinaryFailure = "clone engine binary execution failed: %w - output: %s"
)

// Static errors.
var (
	ErrEngineNotReady    = errors.New("clone engine model is not loaded yet")
	ErrTextEmpty         = errors.New("text cannot be empty")
	ErrNoReferenceSample = errors.New("reference voice sample path is required")
)

// Engine implements core.SynthesisEngine by invoking the cloning binary once
// per segment.
type Engine struct {
	binaryPath string
	modelDir   string
	log        *logger.Logger
	ready      atomic.Bool
}

// New creates a clone engine around the given binary and model directory.
func New(binaryPath, modelDir string, log *logger.Logger) *Engine {
	return &Engine{
		binaryPath: binaryPath,
		modelDir:   modelDir,
		log:        log,
	}
}

// Kind identifies this engine to the filename synthesizer and job layer.
func (e *Engine) Kind() core.BackendKind {
	return core.BackendClone
}

// SetReady marks the engine's model as loaded. Called by whichever component
// drives the model load.
func (e *Engine) SetReady(ready bool) {
	e.ready.Store(ready)
}

// Ready reports whether the engine will accept synthesis calls.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Synthesize renders one text segment in the voice of the reference sample
// and returns the raw WAV bytes. Pitch and intonation parameters are not
// supported by this engine and are ignored.
func (e *Engine) Synthesize(
	ctx context.Context,
	text string,
	params core.SynthesisParams,
) ([]byte, error) {
	if !e.ready.Load() {
		return nil, ErrEngineNotReady
	}

	if text == "" {
		return nil, ErrTextEmpty
	}

	if params.ReferenceVoicePath == "" {
		return nil, ErrNoReferenceSample
	}

	language := params.LanguageCode
	if language == "" {
		language = defaultLanguage
	}

	tempFile, tempErr := os.CreateTemp("", tempOutputPattern)
	if tempErr != nil {
		return nil, fmt.Errorf("failed to create temp file for clone output: %w", tempErr)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			e.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	args := []string{
		"--model_dir", e.modelDir,
		"--text", text,
		"--speaker_wav", params.ReferenceVoicePath,
		"--language", language,
		"--speed", fmt.Sprintf("%.2f", params.Speed),
		"--out", tempFile.Name(),
	}

	// #nosec G204 -- binary path comes from the service configuration.
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return nil, fmt.Errorf(errFmtBinaryFailure, runErr, string(output))
	}

	audioData, readErr := os.ReadFile(tempFile.Name())
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data from temp file: %w", readErr)
	}

	return audioData, nil
}

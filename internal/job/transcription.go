package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/fileutil"
	"github.com/rogoai/voice-studio/internal/naming"
)

const (
	transcriptSeparator       = "\n\n"
	transcriptFilePermissions = 0o600

	logFmtFileDone       = "Transcribed %s (%d/%d)"
	logFmtFileFailed     = "Transcription of %s failed: %v"
	logFmtMergeWritten   = "Merged transcript written to %s (%d/%d files)"
	errFmtModelSwitch    = "failed to switch transcription model: %w"
	errFmtTranscriptSave = "failed to write merged transcript: %w"
)

// ErrNoFiles is returned when a transcription request carries no files.
var ErrNoFiles = errors.New("no audio files selected")

// ErrAllFilesFailed is returned when not a single file produced text.
var ErrAllFilesFailed = errors.New("transcription failed for every file")

// modelSwitcher is implemented by transcribers whose model size can change
// between runs.
type modelSwitcher interface {
	SetModelSize(size string) error
}

// TranscriptionRunner drives one batch speech-to-text job: each selected
// file is transcribed in isolation, failures are collected per file, and the
// surviving results merge into a single timestamped transcript file.
//
// Unlike generation, a transcription run has no cancellation: it always
// drains the file list.
type TranscriptionRunner struct {
	transcriber core.Transcriber
	log         *logger.Logger
	now         func() time.Time
}

// NewTranscriptionRunner creates a runner over the given transcriber.
func NewTranscriptionRunner(transcriber core.Transcriber, log *logger.Logger) *TranscriptionRunner {
	return &TranscriptionRunner{
		transcriber: transcriber,
		log:         log,
		now:         time.Now,
	}
}

// Run executes one batch transcription job. Files are processed in selection
// order; a failing file is recorded and skipped, never aborting the rest.
// The merged text joins per-file results with one blank line, again in
// selection order, and is written exactly once under a derived,
// collision-avoided name. progress may be nil.
func (r *TranscriptionRunner) Run(
	ctx context.Context,
	req core.TranscriptionRequest,
	progress func(string),
) (*core.TranscriptionSummary, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}

	switchErr := r.applyModelSize(req.ModelSize)
	if switchErr != nil {
		return nil, switchErr
	}

	summary := &core.TranscriptionSummary{
		MergedText:  "",
		Succeeded:   0,
		Total:       len(req.Files),
		FailedFiles: nil,
		OutputPath:  "",
	}

	texts := make([]string, 0, len(req.Files))

	for index, file := range req.Files {
		text, fileErr := r.transcriber.Transcribe(
			ctx, file, req.Language, req.Format, progress,
		)
		if fileErr != nil {
			r.log.Warn(logFmtFileFailed, file, fileErr)
			summary.FailedFiles = append(summary.FailedFiles, core.FileFailure{
				File:    file,
				Message: fileErr.Error(),
			})

			continue
		}

		texts = append(texts, text)
		summary.Succeeded++

		r.log.Info(logFmtFileDone, file, index+1, summary.Total)
	}

	if summary.Succeeded == 0 {
		return summary, ErrAllFilesFailed
	}

	summary.MergedText = mergeTranscripts(texts)

	outputPath, writeErr := r.writeTranscript(req, summary.MergedText)
	if writeErr != nil {
		return summary, writeErr
	}

	summary.OutputPath = outputPath

	r.log.Info(logFmtMergeWritten, outputPath, summary.Succeeded, summary.Total)

	return summary, nil
}

// applyModelSize switches the transcriber to the requested model size when
// it differs from the current one. The engine itself keeps its loaded model
// when the size is unchanged.
func (r *TranscriptionRunner) applyModelSize(size string) error {
	if size == "" || size == r.transcriber.ModelSize() {
		return nil
	}

	switcher, ok := r.transcriber.(modelSwitcher)
	if !ok {
		return nil
	}

	switchErr := switcher.SetModelSize(size)
	if switchErr != nil {
		return fmt.Errorf(errFmtModelSwitch, switchErr)
	}

	return nil
}

// writeTranscript derives the output filename from the merge time and
// content, probes for collisions, and writes the file once.
func (r *TranscriptionRunner) writeTranscript(
	req core.TranscriptionRequest,
	merged string,
) (string, error) {
	dirErr := fileutil.EnsureDir(req.OutputDir)
	if dirErr != nil {
		return "", dirErr
	}

	fileName := naming.TranscriptFileName(
		r.now().Format(naming.TranscriptTimestampLayout),
		merged,
		req.Format,
	)

	outputPath, resolveErr := naming.ResolveCollision(req.OutputDir, fileName)
	if resolveErr != nil {
		return "", resolveErr
	}

	writeErr := os.WriteFile(outputPath, []byte(merged), transcriptFilePermissions)
	if writeErr != nil {
		return "", fmt.Errorf(errFmtTranscriptSave, writeErr)
	}

	return outputPath, nil
}

// mergeTranscripts joins per-file results with one blank line, preserving
// selection order.
func mergeTranscripts(texts []string) string {
	return strings.Join(texts, transcriptSeparator)
}

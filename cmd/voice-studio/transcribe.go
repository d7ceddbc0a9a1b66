package main

import (
	"errors"
	"fmt"

	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/fileutil"
	"github.com/rogoai/voice-studio/internal/job"
	"github.com/rogoai/voice-studio/internal/whisper"
	"github.com/spf13/cobra"
)

// ErrNotAudioFile is returned when an argument does not look like an audio
// file.
var ErrNotAudioFile = errors.New("not a supported audio file")

// transcribeOptions collects the flag values of the transcribe command.
type transcribeOptions struct {
	language  string
	modelSize string
	format    string
	outputDir string
}

func newTranscribeCommand() *cobra.Command {
	opts := &transcribeOptions{}

	transcribeCmd := &cobra.Command{
		Use:   "transcribe <audio-file>...",
		Short: "Transcribe audio files into one merged transcript",
		Long: `transcribe runs speech recognition over the given audio files in
order. Each file is transcribed in isolation; a failing file is reported
and skipped. The surviving results merge with blank lines between files
into a single timestamped transcript, as plain text or as subtitles.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, opts, args)
		},
	}

	flags := transcribeCmd.Flags()
	flags.StringVarP(&opts.language, "language", "l", "ja", "spoken language code")
	flags.StringVarP(&opts.modelSize, "model", "m", "",
		"model size: base, medium, or large-v3 (defaults to the configured one)")
	flags.StringVar(&opts.format, "format", string(core.TranscriptText),
		"transcript format: text or srt")
	flags.StringVarP(&opts.outputDir, "out", "o", "",
		"transcript directory (defaults to the configured one)")

	return transcribeCmd
}

func runTranscribe(cmd *cobra.Command, opts *transcribeOptions, files []string) error {
	application, cleanup, bootErr := bootstrap()
	if bootErr != nil {
		return bootErr
	}
	defer cleanup()

	for _, file := range files {
		if !fileutil.IsAudioFile(file) {
			return fmt.Errorf("%w: %s", ErrNotAudioFile, file)
		}
	}

	modelSize := application.cfg.Whisper.DefaultModelSize
	if opts.modelSize != "" {
		modelSize = opts.modelSize
	}

	engine, engineErr := whisper.New(
		application.cfg.Whisper.BinaryPath,
		application.cfg.Whisper.ModelsDir,
		modelSize,
		application.log,
	)
	if engineErr != nil {
		return fmt.Errorf("failed to create transcription engine: %w", engineErr)
	}

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = application.cfg.Paths.TranscriptDir
	}

	runner := job.NewTranscriptionRunner(engine, application.log)
	request := core.TranscriptionRequest{
		Files:     files,
		Language:  opts.language,
		ModelSize: modelSize,
		Format:    core.TranscriptFormat(opts.format),
		OutputDir: outputDir,
	}

	progress := func(message string) {
		fmt.Fprintln(cmd.OutOrStdout(), message)
	}

	summary, runErr := runner.Run(cmd.Context(), request, progress)
	if runErr != nil {
		return fmt.Errorf("transcription failed: %w", runErr)
	}

	for _, failure := range summary.FailedFiles {
		fmt.Fprintf(cmd.OutOrStdout(), "failed: %s (%s)\n", failure.File, failure.Message)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d/%d files transcribed, transcript: %s\n",
		summary.Succeeded, summary.Total, summary.OutputPath)

	return nil
}

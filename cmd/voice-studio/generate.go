package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/daylog"
	"github.com/rogoai/voice-studio/internal/fileutil"
	"github.com/rogoai/voice-studio/internal/job"
	"github.com/rogoai/voice-studio/internal/settings"
	"github.com/rogoai/voice-studio/internal/synth/character"
	"github.com/rogoai/voice-studio/internal/text"
	"github.com/spf13/cobra"
)

const (
	defaultSequenceDigits = 3
	defaultFilePrefix     = "voice"
	defaultSilenceSeconds = 0.1
	batchFileSeparator    = "\n\n"
)

// Static errors.
var (
	ErrNoInput       = errors.New("provide input with --text, --file, or --dir")
	ErrMultipleInput = errors.New("--text, --file, and --dir are mutually exclusive")
	ErrNoBatchFiles  = errors.New("no text files found in batch directory")
)

// generateOptions collects the flag values of the generate command.
type generateOptions struct {
	inputText string
	inputFile string
	inputDir  string

	backend        string
	speakerID      int
	speakerName    string
	styleName      string
	referenceVoice string
	language       string

	speed      float64
	volume     float64
	pitch      float64
	intonation float64

	preSilence  float64
	postSilence float64

	format    string
	pattern   string
	digits    int
	prefix    string
	outputDir string
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate audio clips from text segments",
		Long: `generate splits the input text into blank-line segments and renders
one audio clip per segment. Input comes from --text, from a file with
--file, or from a directory of .txt files with --dir, where the files are
joined with blank lines before splitting. Subtitle files are recognized
and their cue numbers and timing lines are stripped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	flags := generateCmd.Flags()
	flags.StringVarP(&opts.inputText, "text", "t", "", "text to synthesize")
	flags.StringVarP(&opts.inputFile, "file", "f", "", "read input text from a file")
	flags.StringVarP(&opts.inputDir, "dir", "d", "",
		"read every .txt file in a directory as one batch")
	flags.StringVarP(&opts.backend, "backend", "b", string(core.BackendClone),
		"synthesis backend: clone or character")
	flags.IntVar(&opts.speakerID, "speaker", 0,
		"character speaker style id (0 uses the configured default)")
	flags.StringVar(&opts.speakerName, "speaker-name", "",
		"resolve the speaker id from a catalog speaker name (character backend)")
	flags.StringVar(&opts.styleName, "style", "",
		"style name to resolve together with --speaker-name")
	flags.StringVar(&opts.referenceVoice, "ref-voice", "",
		"reference voice sample for the clone backend")
	flags.StringVarP(&opts.language, "language", "l", "", "language code for the clone backend")
	flags.Float64Var(&opts.speed, "speed", 1.0, "speaking speed scale")
	flags.Float64Var(&opts.volume, "volume", 1.0, "volume scale")
	flags.Float64Var(&opts.pitch, "pitch", 0.0, "pitch scale")
	flags.Float64Var(&opts.intonation, "intonation", 1.0, "intonation scale")
	flags.Float64Var(&opts.preSilence, "pre-silence", defaultSilenceSeconds,
		"silence prepended to each clip, in seconds")
	flags.Float64Var(&opts.postSilence, "post-silence", defaultSilenceSeconds,
		"silence appended to each clip, in seconds")
	flags.StringVar(&opts.format, "format", string(core.FormatWAV), "output format: wav or mp3")
	flags.StringVar(&opts.pattern, "pattern", "",
		"filename pattern with {ID} {Prefix} {Seq} {Text} {Date} placeholders")
	flags.IntVar(&opts.digits, "digits", defaultSequenceDigits, "zero-padded sequence width")
	flags.StringVar(&opts.prefix, "prefix", defaultFilePrefix, "filename prefix")
	flags.StringVarP(&opts.outputDir, "out", "o", "",
		"output directory (defaults to the configured one)")

	return generateCmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	application, cleanup, bootErr := bootstrap()
	if bootErr != nil {
		return bootErr
	}
	defer cleanup()

	input, inputErr := readInput(opts)
	if inputErr != nil {
		return inputErr
	}

	rememberInput(application, input)

	resolveErr := resolveSpeakerName(cmd, application, opts)
	if resolveErr != nil {
		return resolveErr
	}

	request := buildGenerationRequest(application, opts, input)

	runner := job.NewGenerationRunner(
		application.engines(),
		daylog.New(application.log),
		application.log,
	)

	started := time.Now()

	onProgress := func(done, total int) {
		fmt.Fprintf(cmd.OutOrStdout(), "segment %d/%d done\n", done, total)
	}
	onComplete := func(succeeded, total int, outputDir string) {
		elapsed := fileutil.FormatDuration(time.Since(started).Seconds())
		fmt.Fprintf(cmd.OutOrStdout(), "%d/%d clips written to %s in %s\n",
			succeeded, total, outputDir, elapsed)
	}

	_, runErr := runner.Run(cmd.Context(), request, onProgress, onComplete)
	if runErr != nil {
		return fmt.Errorf("generation failed: %w", runErr)
	}

	return nil
}

// readInput resolves the one input source the flags selected and returns the
// raw text, with subtitle cues already stripped.
func readInput(opts *generateOptions) (string, error) {
	sources := 0

	for _, flagValue := range []string{opts.inputText, opts.inputFile, opts.inputDir} {
		if flagValue != "" {
			sources++
		}
	}

	if sources == 0 {
		return "", ErrNoInput
	}

	if sources > 1 {
		return "", ErrMultipleInput
	}

	var (
		input   string
		readErr error
	)

	switch {
	case opts.inputText != "":
		input = opts.inputText
	case opts.inputFile != "":
		input, readErr = readTextFile(opts.inputFile)
	default:
		input, readErr = readBatchDir(opts.inputDir)
	}

	if readErr != nil {
		return "", readErr
	}

	if text.IsSRT(input) {
		input = text.StripSRT(input)
	}

	return input, nil
}

func readTextFile(path string) (string, error) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return "", fmt.Errorf("failed to read input file: %w", readErr)
	}

	return string(raw), nil
}

// readBatchDir joins every batch text file in the directory with blank
// lines, so file boundaries become segment boundaries.
func readBatchDir(dir string) (string, error) {
	files, listErr := fileutil.ListBatchTextFiles(dir)
	if listErr != nil {
		return "", listErr
	}

	if len(files) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoBatchFiles, dir)
	}

	parts := make([]string, 0, len(files))

	for _, file := range files {
		content, readErr := readTextFile(file)
		if readErr != nil {
			return "", readErr
		}

		parts = append(parts, strings.TrimSpace(content))
	}

	return strings.Join(parts, batchFileSeparator), nil
}

// resolveSpeakerName turns --speaker-name/--style into a numeric speaker id
// through the character engine's catalog. An explicit name always wins over
// --speaker.
func resolveSpeakerName(cmd *cobra.Command, application *app, opts *generateOptions) error {
	if opts.speakerName == "" {
		return nil
	}

	client := application.characterClient()

	speakers, listErr := client.Speakers(cmd.Context())
	if listErr != nil {
		return fmt.Errorf("failed to fetch speaker catalog: %w", listErr)
	}

	speakerID, resolveErr := character.ResolveSpeakerID(
		speakers, opts.speakerName, opts.styleName,
	)
	if resolveErr != nil {
		return fmt.Errorf("failed to resolve speaker '%s' style '%s': %w",
			opts.speakerName, opts.styleName, resolveErr)
	}

	opts.speakerID = speakerID

	return nil
}

// rememberInput records the input in the text history and the crash backup.
// Both are best effort; generation proceeds regardless.
func rememberInput(application *app, input string) {
	if application.cfg.Paths.SettingsPath == "" {
		return
	}

	store, openErr := settings.Open(application.cfg.Paths.SettingsPath)
	if openErr != nil {
		application.log.Warn("Settings unavailable, skipping history: %v", openErr)

		return
	}

	historyErr := store.SaveToHistory(input)
	if historyErr != nil {
		application.log.Warn("Failed to save text history: %v", historyErr)
	}

	backupErr := store.BackupText(input)
	if backupErr != nil {
		application.log.Warn("Failed to back up input text: %v", backupErr)
	}
}

func buildGenerationRequest(
	application *app,
	opts *generateOptions,
	input string,
) core.GenerationRequest {
	speakerID := opts.speakerID
	if speakerID == 0 {
		speakerID = application.cfg.Character.DefaultSpeakerID
	}

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = application.cfg.Paths.OutputDir
	}

	return core.GenerationRequest{
		Segments: text.Split(input),
		Backend:  core.BackendKind(opts.backend),
		Params: core.SynthesisParams{
			Speed:              opts.speed,
			Volume:             opts.volume,
			Pitch:              opts.pitch,
			Intonation:         opts.intonation,
			ReferenceVoicePath: opts.referenceVoice,
			LanguageCode:       opts.language,
			SpeakerID:          speakerID,
		},
		PreSilenceSec:   opts.preSilence,
		PostSilenceSec:  opts.postSilence,
		OutputDir:       outputDir,
		Format:          core.AudioFormat(opts.format),
		FilenamePattern: opts.pattern,
		SequenceDigits:  opts.digits,
		Prefix:          opts.prefix,
	}
}

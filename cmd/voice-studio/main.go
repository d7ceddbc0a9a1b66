// main package for the voice-studio command line interface.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/rogoai/voice-studio/internal/config"
	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/synth/character"
	"github.com/rogoai/voice-studio/internal/synth/clone"
	"github.com/spf13/cobra"
)

const logFileName = "voice-studio.log"

// app carries the loaded configuration and logger into the subcommands.
type app struct {
	cfg *config.Config
	log *logger.Logger
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// bootstrap loads the configuration through a temporary logger, then swaps
// in the final logger rooted at the configured log directory.
func bootstrap() (*app, func(), error) {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, nil, err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, nil, fmt.Errorf("failed to create final logger: %w", err)
	}

	cleanup := func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}

	return &app{cfg: cfg, log: finalLog}, cleanup, nil
}

// characterClient builds the HTTP client for the character-voice engine from
// the loaded configuration.
func (a *app) characterClient() *character.Client {
	return character.NewClient(
		a.cfg.Character.BaseURL,
		time.Duration(a.cfg.Character.TimeoutSeconds)*time.Second,
		a.cfg.Character.RequestsPerSecond,
	)
}

// engines builds the synthesis engine set. The clone engine is marked ready
// immediately: its subprocess loads the model per invocation, so there is no
// separate load phase to wait for here.
func (a *app) engines() map[core.BackendKind]core.SynthesisEngine {
	cloneEngine := clone.New(a.cfg.Clone.BinaryPath, a.cfg.Clone.ModelDir, a.log)
	cloneEngine.SetReady(true)

	return map[core.BackendKind]core.SynthesisEngine{
		core.BackendClone:     cloneEngine,
		core.BackendCharacter: a.characterClient(),
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voice-studio",
		Short: "Batch voice generation and transcription",
		Long: `voice-studio drives two speech engines from the command line:
a local voice-cloning engine and a remote character-voice service, plus an
offline transcription engine. Text is split into blank-line segments, each
segment becomes one audio clip, and transcripts from multiple files merge
into a single document.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newGenerateCommand(),
		newTranscribeCommand(),
		newSpeakersCommand(),
		newHealthCommand(),
		newModelsCommand(),
		newServeCommand(),
	)

	return rootCmd
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/rogoai/voice-studio/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available transcription models",
		RunE:  runModels,
	}
}

func runModels(cmd *cobra.Command, _ []string) error {
	for _, size := range whisper.AvailableModels() {
		info, ok := whisper.InfoFor(size)
		if !ok {
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"%-9s disk %-6s vram %-6s ram %-6s accuracy %-4s speed %s\n",
			size, info.DiskSize, info.VRAM, info.RAM, info.Accuracy, info.Speed)
		fmt.Fprintf(cmd.OutOrStdout(), "          %s\n", info.Description)
	}

	return nil
}

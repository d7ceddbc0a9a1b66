package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSpeakersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "speakers",
		Short: "List the character engine's speakers and styles",
		RunE:  runSpeakers,
	}
}

func runSpeakers(cmd *cobra.Command, _ []string) error {
	application, cleanup, bootErr := bootstrap()
	if bootErr != nil {
		return bootErr
	}
	defer cleanup()

	client := application.characterClient()

	speakers, listErr := client.Speakers(cmd.Context())
	if listErr != nil {
		return fmt.Errorf("failed to list speakers: %w", listErr)
	}

	for _, speaker := range speakers {
		fmt.Fprintln(cmd.OutOrStdout(), speaker.Name)

		for _, style := range speaker.Styles {
			fmt.Fprintf(cmd.OutOrStdout(), "  %4d  %s\n", style.ID, style.Name)
		}
	}

	return nil
}

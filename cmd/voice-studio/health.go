package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the character engine is reachable",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	application, cleanup, bootErr := bootstrap()
	if bootErr != nil {
		return bootErr
	}
	defer cleanup()

	client := application.characterClient()

	healthErr := client.HealthCheck(cmd.Context())
	if healthErr != nil {
		return fmt.Errorf("character engine is unreachable: %w", healthErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "character engine at %s is up\n",
		application.cfg.Character.BaseURL)

	return nil
}

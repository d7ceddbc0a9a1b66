package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rogoai/voice-studio/internal/objectstore"
	"github.com/rogoai/voice-studio/internal/worker"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the headless NATS generation worker",
		Long: `serve connects to NATS and processes generation jobs from the
configured subject. Each job's clips are uploaded to the object store
bucket and a summary is published as the reply. The worker runs until
interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	application, cleanup, bootErr := bootstrap()
	if bootErr != nil {
		return bootErr
	}
	defer cleanup()

	natsConnection, connectErr := nats.Connect(application.cfg.NATS.URL)
	if connectErr != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w",
			application.cfg.NATS.URL, connectErr)
	}
	defer natsConnection.Close()

	jetstreamContext, jsErr := natsConnection.JetStream()
	if jsErr != nil {
		return fmt.Errorf("failed to get JetStream context: %w", jsErr)
	}

	store, storeErr := objectstore.New(
		jetstreamContext,
		application.cfg.NATS.AudioObjectStoreBucket,
	)
	if storeErr != nil {
		return fmt.Errorf("failed to open clip store: %w", storeErr)
	}

	natsWorker, workerErr := worker.NewNatsWorker(
		natsConnection,
		jetstreamContext,
		application.cfg.NATS.JobSubject,
		store,
		application.engines(),
		application.log,
	)
	if workerErr != nil {
		return fmt.Errorf("failed to create worker: %w", workerErr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.log.System("Worker listening on subject '%s'", application.cfg.NATS.JobSubject)

	runErr := natsWorker.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker stopped with error: %w", runErr)
	}

	application.log.System("Worker shut down cleanly")

	return nil
}

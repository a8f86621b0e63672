package idearoom

import (
	"context"
	"fmt"
)

// Main is the entry point for the idearoom application: it parses the
// arguments, builds the application, and executes the selected command. It
// can be called directly from tests without building the binary; the context
// drives graceful shutdown.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case *FlushCommand:
		pending, err := app.FlushOutbox(ctx)
		if err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}
		app.log.Info().Int("pending", pending).Msg("outbox flush complete")
	case *CleanupCommand:
		removed, err := app.Cleanup(ctx, c.IncludeCurrentData)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		app.log.Info().Int("removed", removed).Msg("cleanup complete")
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}

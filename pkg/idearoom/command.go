package idearoom

// Command represents a discrete application operation with its specific
// options. Commands are produced by Parse from the CLI arguments and routed
// by Main to the matching method on [App].
type Command interface {
	// Name returns the command identifier used for routing.
	Name() string
}

// RunCommand starts the HTTP server exposing the storage API. The server
// runs until the context is cancelled or a fatal error occurs; shutdown is
// graceful, letting in-flight requests complete.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// FlushCommand drains the remote outbox once and reports how many mutations
// remain queued. Useful after a known backend outage instead of waiting for
// the next opportunistic flush.
type FlushCommand struct{}

func (c *FlushCommand) Name() string { return "flush" }

// CleanupCommand removes every row from the legacy per-kind backend tables,
// left over from the old multi-table layout. With IncludeCurrentData set it
// also wipes the current tables and the cache mirror, resetting the remote
// workspace entirely. Idempotent: once the tables are empty it is a no-op.
type CleanupCommand struct {
	IncludeCurrentData bool
}

func (c *CleanupCommand) Name() string { return "cleanup" }

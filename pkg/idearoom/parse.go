package idearoom

import (
	"flag"
	"fmt"
	"time"
)

// Parse parses command line arguments and returns the command to execute and
// the application configuration shared across all commands.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("idearoom", flag.ContinueOnError)

	var (
		port           = flagSet.String("port", "8080", "Server port")
		storePath      = flagSet.String("store", "idearoom.db", "Path to the local store file")
		remoteURL      = flagSet.String("remote-url", "", "Remote backend websocket URL (empty: local storage)")
		readOnly       = flagSet.Bool("read-only", false, "Reject all write operations")
		autosaveDelay  = flagSet.Duration("autosave-delay", 800*time.Millisecond, "Quiet period for debounced artifact saves")
		includeCurrent = flagSet.Bool("include-current", false, "Cleanup: also wipe current tables and caches")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: idearoom [flags] <command>

Commands:
  run       Start the idea room server
  flush     Drain the remote outbox once
  cleanup   Delete rows from legacy backend tables

Examples:
  # Local storage only
  idearoom run

  # Hosted backend
  idearoom -remote-url ws://localhost:8000/rpc run

  # Maintenance
  idearoom -remote-url ws://localhost:8000/rpc flush
  idearoom -remote-url ws://localhost:8000/rpc cleanup
  idearoom -remote-url ws://localhost:8000/rpc -include-current cleanup

  # Custom port and store location
  idearoom -port=8090 -store=/var/lib/idearoom/data.db run`)
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "flush":
		cmd = &FlushCommand{}
	case "cleanup":
		cmd = &CleanupCommand{IncludeCurrentData: *includeCurrent}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, flush, cleanup", remainingArgs[0])
	}

	config := &Config{
		LocalStorePath: getEnv("IDEAROOM_STORE", *storePath),
		ServerPort:     *port,
		ReadOnly:       *readOnly,
		AutosaveDelay:  *autosaveDelay,
	}

	// The build-time/flag remote URL takes precedence; a user-saved
	// configuration in the local store is consulted at boot when this stays
	// empty.
	config.RemoteURL = getEnv("IDEAROOM_REMOTE_URL", *remoteURL)
	config.RemoteNS = getEnv("IDEAROOM_REMOTE_NS", "idearoom")
	config.RemoteDB = getEnv("IDEAROOM_REMOTE_DB", "idearoom")
	config.RemoteUser = getEnv("IDEAROOM_REMOTE_USER", "root")
	config.RemotePass = getEnv("IDEAROOM_REMOTE_PASS", "root")

	return cmd, config, nil
}

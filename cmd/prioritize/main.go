// Command prioritize ranks a batch of messages by deadline, sender and
// urgency, explains single scores and serves the ranking over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	initLogging(false)

	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

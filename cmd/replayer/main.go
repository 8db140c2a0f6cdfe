// Package main provides the CLI entry point for the trace replay engine.
//
// Start the server:
//
//	replayer serve --config replayer.yaml
//
// Run an attribution-only replay against a running instance's store:
//
//	replayer replay --trace t1 --node n1
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "replayer",
		Short: "Trace replay engine: graph reconstruction, cost attribution, and live replay",
		Long: `replayer ingests recorded agent-trace nodes/edges, reconstructs the run
graph, and replays a subgraph from any node: re-issuing the LLM call,
grounding the transcript against configured tools, and attributing
cost/tokens/latency against the original trace.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildReplayCmd(),
	)

	return rootCmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axontrace/replayer/internal/config"
	"github.com/axontrace/replayer/internal/hub"
	"github.com/axontrace/replayer/internal/llm"
	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/replay"
	"github.com/axontrace/replayer/internal/selector"
)

func buildReplayCmd() *cobra.Command {
	var configPath, traceID, nodeID string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run attribution-only replay against a trace and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), configPath, traceID, nodeID)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&traceID, "trace", "", "trace id to replay")
	cmd.Flags().StringVar(&nodeID, "node", "", "start node id (defaults to the earliest node in the trace)")
	cmd.MarkFlagRequired("trace")
	return cmd
}

func runReplay(ctx context.Context, configPath, traceID, nodeID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stores, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	mode := selector.Mode(cfg.Replay.Mode)
	coordinator := replay.New(stores, hub.New(), &llm.Registry{}, nil, cfg.LLM.DefaultModel, mode, nil)

	result := coordinator.Attribute(ctx, models.ReplayRequest{TraceID: traceID, NodeID: nodeID})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

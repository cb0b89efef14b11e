package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:     "replay-forward",
	Short:   "Re-send matched decisions whose forwarding failed",
	GroupID: "gate",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := gateClient.ReplayForward(context.Background())
		if err != nil {
			return fmt.Errorf("replaying forwards: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "pending %d, delivered %d, failed %d, already forwarded %d\n",
			res.Pending, res.Delivered, res.Failed, res.Skipped)
		if res.Failed > 0 {
			return fmt.Errorf("%d deliveries still failing", res.Failed)
		}
		return nil
	},
}

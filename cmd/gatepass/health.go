package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/client"
	"github.com/alfredjeanlab/gatepass/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the gatepass service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := gateClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		out := map[string]string{
			"status":        resp.Status,
			"policyId":      resp.PolicyID,
			"policyVersion": resp.PolicyVersion,
			"uptime":        resp.Uptime,
		}
		if grpcAddr != "" {
			st, err := client.GRPCHealth(ctx, grpcAddr, server.GateEntryService)
			if err != nil {
				return fmt.Errorf("checking gRPC health: %w", err)
			}
			out["grpc"] = st
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Health:  %s\n", resp.Status)
			fmt.Fprintf(w, "Policy:  %s %s\n", resp.PolicyID, resp.PolicyVersion)
			fmt.Fprintf(w, "Uptime:  %s\n", resp.Uptime)
			if st, ok := out["grpc"]; ok {
				fmt.Fprintf(w, "gRPC:    %s\n", st)
			}
		}

		if resp.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", resp.Status)
		}
		if st, ok := out["grpc"]; ok && st != "SERVING" {
			return fmt.Errorf("gRPC unhealthy: %s", st)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "also check the gRPC health endpoint at this address")
}

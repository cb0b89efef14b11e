package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Submit a gate entry and print the decision",
	GroupID: "gate",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		permit, _ := cmd.Flags().GetString("permit")
		gate, _ := cmd.Flags().GetString("gate")
		vehicle, _ := cmd.Flags().GetString("vehicle")
		container, _ := cmd.Flags().GetString("container")
		size, _ := cmd.Flags().GetString("size")
		ctype, _ := cmd.Flags().GetString("type")
		confirmed, _ := cmd.Flags().GetBool("confirmed")

		req := &model.GateEntryRequest{
			PermitNumber:    permit,
			GateType:        model.ParseDirection(gate),
			VehicleNumber:   vehicle,
			ContainerNumber: container,
			ContainerSize:   size,
			ContainerType:   ctype,
			ConfirmedByUser: confirmed,
		}

		res, err := gateClient.SubmitGateEntry(context.Background(), req)
		if err != nil {
			return fmt.Errorf("submitting gate entry: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, res); err != nil {
				return err
			}
		} else {
			printGateResult(out, res)
		}

		if !res.Success {
			return fmt.Errorf("gate entry not cleared: %s", resultLabel(res))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().String("permit", "", "permit number (required)")
	checkCmd.Flags().String("gate", "IN", "gate direction (IN or OUT)")
	checkCmd.Flags().String("vehicle", "", "vehicle number")
	checkCmd.Flags().String("container", "", "container number")
	checkCmd.Flags().String("size", "", "container size")
	checkCmd.Flags().String("type", "", "container type")
	checkCmd.Flags().Bool("confirmed", false, "operator confirmed the entry manually")
	_ = checkCmd.MarkFlagRequired("permit")
}

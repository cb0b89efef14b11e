package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:     "history <category>",
	Short:   "List one audit category in append order",
	Long:    "List one audit category in append order.\n\nCategories: " + categoryList(),
	GroupID: "gate",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := args[0]
		resp, err := gateClient.History(context.Background(), category)
		if err != nil {
			return fmt.Errorf("fetching %s history: %w", category, err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		printHistoryTable(out, category, resp)
		return nil
	},
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = c.String()
	}
	return strings.Join(names, ", ") + " (mismatched is accepted for mismatch)"
}

package main

import (
	"github.com/spf13/cobra"

	"assetplane/backend/pkg/models"
)

var decideFlags struct {
	decision string
	comment  string
}

var decideCmd = &cobra.Command{
	Use:   "decide <approval-id>",
	Short: "Approve or reject a pending approval",
	Long: `Record a decision on a pending approval. Approving resumes the gated
workflow run; rejecting leaves it suspended for manual follow-up.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecide,
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideFlags.decision, "decision", "", "approved or rejected")
	decideCmd.Flags().StringVar(&decideFlags.comment, "comment", "", "decision comment")
	decideCmd.MarkFlagRequired("decision")
}

func runDecide(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"decision": decideFlags.decision,
		"comment":  decideFlags.comment,
	}
	var approval models.ApprovalRecord
	if err := call("POST", "/api/v1/approvals/"+args[0]+"/decision", payload, &approval); err != nil {
		return err
	}
	return printJSON(approval)
}

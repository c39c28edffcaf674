package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetplane/backend/pkg/models"
)

var startRunFlags struct {
	definitionID string
	inputs       []string
}

var startRunCmd = &cobra.Command{
	Use:   "start-run",
	Short: "Start a workflow run from an active definition",
	RunE:  runStartRun,
}

var advanceCmd = &cobra.Command{
	Use:   "advance <run-id>",
	Short: "Resume execution of a workflow run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdvance,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect workflow runs",
}

var runGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show one workflow run",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetRun,
}

var runTimelineCmd = &cobra.Command{
	Use:   "timeline <run-id>",
	Short: "Show a run's audit timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetTimeline,
}

func init() {
	rootCmd.AddCommand(startRunCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runGetCmd)
	runCmd.AddCommand(runTimelineCmd)

	startRunCmd.Flags().StringVar(&startRunFlags.definitionID, "definition", "", "workflow definition id")
	startRunCmd.Flags().StringArrayVar(&startRunFlags.inputs, "input", nil, "run input as key=value (repeatable)")
	startRunCmd.MarkFlagRequired("definition")
}

func runStartRun(cmd *cobra.Command, args []string) error {
	inputs, err := parseFields(startRunFlags.inputs)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"definition_id": startRunFlags.definitionID,
		"tenant_id":     tenantID,
		"inputs":        inputs,
	}
	var run models.WorkflowRun
	if err := call("POST", "/api/v1/runs", payload, &run); err != nil {
		return err
	}
	return printJSON(run)
}

func runAdvance(cmd *cobra.Command, args []string) error {
	var run models.WorkflowRun
	if err := call("POST", fmt.Sprintf("/api/v1/runs/%s/advance", args[0]), nil, &run); err != nil {
		return err
	}
	return printJSON(run)
}

func runGetRun(cmd *cobra.Command, args []string) error {
	var run models.WorkflowRun
	if err := call("GET", "/api/v1/runs/"+args[0], nil, &run); err != nil {
		return err
	}
	return printJSON(run)
}

func runGetTimeline(cmd *cobra.Command, args []string) error {
	var events []models.TimelineEvent
	if err := call("GET", "/api/v1/runs/"+args[0]+"/timeline", nil, &events); err != nil {
		return err
	}
	return printJSON(events)
}

package main

import (
	"github.com/spf13/cobra"

	"assetplane/backend/internal/services"
	"assetplane/backend/pkg/models"
)

var signalFlags struct {
	sourceID   string
	objectType string
	externalID string
	confidence float64
	fields     []string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a source signal",
	Long: `Ingest one attribute snapshot from a system of record. The service
merges it into the best-matching entity or creates a new one.

Example:
  apctl ingest --source mdm --type device \
    --field serial_number=C02XK1AAJG5H --field hostname=mbp-ada`,
	RunE: runIngest,
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Preview reconciliation candidates for a snapshot",
	RunE:  runCandidates,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(candidatesCmd)

	for _, cmd := range []*cobra.Command{ingestCmd, candidatesCmd} {
		cmd.Flags().StringVar(&signalFlags.sourceID, "source", "", "id of the external system of record")
		cmd.Flags().StringVar(&signalFlags.objectType, "type", "", "object type (person, device, account, application, group)")
		cmd.Flags().StringVar(&signalFlags.externalID, "external-id", "", "record id in the source system")
		cmd.Flags().Float64Var(&signalFlags.confidence, "confidence", 0.9, "source confidence, 0..1")
		cmd.Flags().StringArrayVar(&signalFlags.fields, "field", nil, "snapshot field as key=value (repeatable)")
		cmd.MarkFlagRequired("type")
		cmd.MarkFlagRequired("field")
	}
	ingestCmd.MarkFlagRequired("source")
}

func signalFromFlags() (map[string]any, error) {
	snapshot, err := parseFields(signalFlags.fields)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tenant_id": tenantID,
		"signal": models.SourceSignal{
			SourceID:   signalFlags.sourceID,
			ObjectType: models.ObjectType(signalFlags.objectType),
			ExternalID: signalFlags.externalID,
			Snapshot:   snapshot,
			Confidence: signalFlags.confidence,
		},
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	payload, err := signalFromFlags()
	if err != nil {
		return err
	}
	var result services.IngestResult
	if err := call("POST", "/api/v1/signals", payload, &result); err != nil {
		return err
	}
	return printJSON(result)
}

func runCandidates(cmd *cobra.Command, args []string) error {
	payload, err := signalFromFlags()
	if err != nil {
		return err
	}
	var candidates []models.Candidate
	if err := call("POST", "/api/v1/signals/candidates", payload, &candidates); err != nil {
		return err
	}
	return printJSON(candidates)
}

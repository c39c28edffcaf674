package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"assetplane/backend/internal/auth"
)

var (
	// Global flags
	serverURL string
	actorID   string
	actorRole string
	tenantID  string
)

var rootCmd = &cobra.Command{
	Use:   "apctl",
	Short: "Asset Plane operator CLI",
	Long: `Apctl drives the Asset Plane control plane over its REST API:
signal ingestion, reconciliation previews, workflow runs and approvals.

The actor identity flags map onto the X-Actor-Id / X-Actor-Role headers
the service's policy evaluator consumes.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "base URL of the service")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "apctl", "acting operator id")
	rootCmd.PersistentFlags().StringVar(&actorRole, "role", "it-operator", "acting operator role")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant id to scope requests to")
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// call performs one API request and decodes the JSON response. Non-2xx
// responses surface the problem body as the error.
func call(method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderActorID, actorID)
	req.Header.Set(auth.HeaderActorRole, actorRole)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// printJSON renders the response indented for the terminal.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// parseFields turns repeated --field key=value flags into a snapshot map.
func parseFields(pairs []string) (map[string]any, error) {
	snapshot := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q, expected key=value", pair)
		}
		snapshot[key] = value
	}
	return snapshot, nil
}

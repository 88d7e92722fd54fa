package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/towncrier/internal/channels"
)

var rigsListCmd = &cobra.Command{
	Use:   "rigs:list",
	Short: "List rig to channel mappings",
	Long: `List the rig name to Discord channel mappings as JSON.

Reads the persisted mappings file directly, so no Discord session is needed.

Examples:
  # List all mappings
  towncrier rigs:list

  # Parse specific fields with jq
  towncrier rigs:list | jq '.gastown'`,
	RunE: func(_ *cobra.Command, _ []string) error {
		mappings := channels.NewFileStore(cfg.MappingsFile).Load()
		out, err := formatMappings(mappings)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rigsListCmd)
}

func formatMappings(mappings map[string]channels.ChannelID) (string, error) {
	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding mappings: %w", err)
	}
	return string(data), nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/towncrier/internal/notify"
)

var previewFormat string

var previewCmd = &cobra.Command{
	Use:   "preview [event-type]",
	Short: "Render a sample notification without sending it",
	Long: `Render the embed a given event type produces, using sample data.
Useful for checking colors, field layout and footers before wiring a rig.

Run without arguments to list the known event types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVarP(&previewFormat, "format", "f", "json",
		"output format: json or yaml")
}

// sampleArgs returns representative arguments for each event kind.
func sampleArgs() map[string]notify.EventArgs {
	two, five := 2, 5
	return map[string]notify.EventArgs{
		"nudge": {From: "mayor", To: "crew-1", Message: "Standup in five minutes.", Rig: "gastown"},
		"broadcast": {From: "mayor", Message: "Fuel lines are back online.", TargetScope: "workers", Rig: "gastown"},
		"mail": {From: "crew-2", To: "crew-1", Subject: "Parts manifest", Message: "Manifest attached below.", MailID: "m-1042", Priority: "high", Rig: "gastown"},
		"convoy_update": {ConvoyID: "cv-7", ConvoyName: "Night Haul", Status: "in_progress", Message: "Two rigs through the pass.", Completed: &two, Total: &five, Rig: "gastown"},
		"escalation": {From: "crew-3", Issue: "Refinery pressure climbing", Severity: "high", Details: "Valve 4 is stuck open.", BeadID: "bd-88", Rig: "gastown"},
		"handoff": {From: "crew-1", Subject: "Pipeline patrol", Message: "Handing off the east line.", HookedWork: "bd-91", Rig: "gastown"},
		"completion": {Agent: "crew-4", BeadID: "bd-77", BeadTitle: "Replace coupling", Summary: "Coupling replaced and tested.", Rig: "gastown"},
		"generic": {Title: "Storm Warning", Message: "Dust storm expected at dusk.", Rig: "gastown"},
	}
}

func runPreview(_ *cobra.Command, args []string) error {
	samples := sampleArgs()

	if len(args) == 0 {
		kinds := make([]string, 0, len(samples))
		for kind := range samples {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		fmt.Println(strings.Join(kinds, "\n"))
		return nil
	}

	kind := strings.ToLower(args[0])
	sample, ok := samples[kind]
	if !ok {
		// Unknown kinds still render, through the generic fallback.
		sample = notify.EventArgs{Message: "Sample event body.", Rig: "gastown"}
	}

	embed := notify.FormatEvent(kind, sample)

	rendered, err := renderEmbed(embed, previewFormat)
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

func renderEmbed(embed notify.Embed, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(embed, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding embed: %w", err)
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(embed)
		if err != nil {
			return "", fmt.Errorf("encoding embed: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json or yaml)", format)
	}
}

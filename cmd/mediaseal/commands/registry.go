package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/registry"
)

var registryLimit int

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Browse the record of past embeds",
	Long: `Browse the local registry of embeds.

Every embed stores the payload, algorithm, strength and SHA-256 digest of
its output. The registry lives in ~/.mediaseal/mediaseal/data/registry
unless the context sets registry_dir.`,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		reg, store, err := openRegistry(c)
		if err != nil {
			return err
		}
		defer store.Close()
		recs, err := reg.List(cmd.Context(), registryLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			cli.PrintInfo("No records")
		}
		return outputResult(cmd, recs, "")
	},
}

var registryShowCmd = &cobra.Command{
	Use:   "show <id|file>",
	Short: "Show one record",
	Long: `Show a record by ID, or the record of a watermarked file by digest.

Examples:
  mediaseal registry show 0b7c5a4e-6f1e-4cf7-9d44-0d4c0f3b1a2e
  mediaseal registry show sealed.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		reg, store, err := openRegistry(c)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := reg.Get(cmd.Context(), args[0])
		if err != nil && fileExists(args[0]) {
			rec, err = reg.FindByFile(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		if !isJSONOutput() {
			cli.PrintSummary("Record "+rec.ID, recordFields(rec))
		}
		return outputResult(cmd, rec, "")
	},
}

var registryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		reg, store, err := openRegistry(c)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := reg.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Record '%s' deleted", args[0])
		if isJSONOutput() {
			return outputResult(cmd, map[string]string{"id": args[0]}, "")
		}
		return nil
	},
}

func recordFields(rec *registry.Record) []cli.Field {
	fields := []cli.Field{
		{Label: "Time", Value: rec.Time().Format(time.RFC3339)},
		{Label: "Media", Value: rec.Media},
		{Label: "Algorithm", Value: fmt.Sprintf("%s (strength %g)", rec.Algorithm, rec.Strength)},
		{Label: "Payload", Value: fmt.Sprintf("%q (%d bits)", rec.Payload, rec.BitLength)},
		{Label: "Source", Value: rec.Source},
		{Label: "Output", Value: rec.Output},
	}
	if rec.Mode != "" {
		fields = append(fields, cli.Field{Label: "Mode", Value: rec.Mode})
	}
	return fields
}

func init() {
	registryListCmd.Flags().IntVarP(&registryLimit, "limit", "n", 20, "maximum records to list (0 for all)")

	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryDeleteCmd)
}

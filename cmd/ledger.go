package main

import (
	"fmt"
	"os"

	"vipbot/internal/config"
	"vipbot/internal/jobs"
	"vipbot/internal/logging"
	"vipbot/internal/repositories"
	"vipbot/internal/services"

	"github.com/spf13/cobra"
)

var (
	ledgerPath   string
	exportFormat string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or edit the VIP ledger file offline",
	Long: `Work on the ledger file directly. Stop the bot first: a running bot keeps
the ledger in memory and overwrites the file on its next change.`,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every subscriber with the days left",
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := offlineSubscriptions()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), jobs.FormatReport(subs.ListAll(cmd.Context())))
		return nil
	},
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the ledger as the canonical JSON document or id:days lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := offlineSubscriptions()
		if err != nil {
			return err
		}
		switch exportFormat {
		case "json":
			data, err := subs.Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		case "lines":
			fmt.Fprint(cmd.OutOrStdout(), jobs.FormatLines(subs.ListAll(cmd.Context())))
		default:
			return fmt.Errorf("unknown format %q, want json or lines", exportFormat)
		}
		return nil
	},
}

var ledgerImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a JSON or id:days file into the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		subs, err := offlineSubscriptions()
		if err != nil {
			return err
		}

		entries, parseErrors := jobs.ParseImportPayload(payload)
		result, err := subs.BulkImport(cmd.Context(), entries)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d of %d entries\n", result.RecordsImported, result.RecordsProcessed+len(parseErrors))
		for _, e := range append(parseErrors, result.Errors...) {
			fmt.Fprintf(out, "  skipped: %s\n", e)
		}
		return nil
	},
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "ledger file (defaults to the configured path)")
	ledgerExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json or lines")
	ledgerCmd.AddCommand(ledgerListCmd, ledgerExportCmd, ledgerImportCmd)
}

// offlineSubscriptions opens the ledger without a gateway, so nobody is notified.
func offlineSubscriptions() (services.SubscriptionService, error) {
	logging.Init(logging.Config{Format: "console", Level: "warn", Component: "vipbot"})

	path := ledgerPath
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Ledger.Path
	}
	return services.NewSubscriptionService(repositories.NewFileLedgerRepo(path)), nil
}


package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awc-invest/prospect-cli/internal/forvalt"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import companies and facts from external files",
}

var importForvaltCmd = &cobra.Command{
	Use:   "forvalt <file.xlsx> [more files...]",
	Short: "Import Proff Forvalt spreadsheet exports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		im := &forvalt.Importer{Store: st}
		for _, path := range args {
			stats, err := im.Import(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: companies=%d facts=%d skipped_rows=%d\n",
				path, stats.Companies, stats.Facts, stats.SkippedRows)
		}
		return nil
	},
}

func init() {
	importCmd.AddCommand(importForvaltCmd)
	rootCmd.AddCommand(importCmd)
}

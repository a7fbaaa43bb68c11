package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/awc-invest/prospect-cli/internal/shortlist"
)

var (
	shortlistYear int
	shortlistDate string
)

var shortlistCmd = &cobra.Command{
	Use:   "shortlist",
	Short: "Generate the ranked outreach shortlist for one pick date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pickDate := time.Now().UTC().Truncate(24 * time.Hour)
		if shortlistDate != "" {
			d, err := time.Parse("2006-01-02", shortlistDate)
			if err != nil {
				return eris.Wrapf(err, "parse --date %q", shortlistDate)
			}
			pickDate = d
		}

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		g := &shortlist.Generator{
			Store:          st,
			Size:           cfg.Shortlist.Size,
			CooldownMonths: cfg.Shortlist.CooldownMonths,
		}

		entries, err := g.Generate(ctx, shortlistYear, pickDate)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "RANK\tORGNR\tSCORE\tREASON")
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%.1f\t%s\n",
				e.Rank, e.Orgnr, e.ScoreSnapshot, e.ReasonSummary)
		}
		return w.Flush()
	},
}

func init() {
	shortlistCmd.Flags().IntVar(&shortlistYear, "year", time.Now().Year()-1, "fiscal year of the scores")
	shortlistCmd.Flags().StringVar(&shortlistDate, "date", "", "pick date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(shortlistCmd)
}

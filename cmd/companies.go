package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/awc-invest/prospect-cli/internal/model"
)

var (
	excludeReason string
	excludeClear  bool
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Inspect and curate tracked companies",
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked companies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		companies, err := st.ListCompanies(ctx)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			fmt.Fprintln(os.Stderr, "No companies found.")
			return nil
		}

		formatCompanies(os.Stdout, companies)
		return nil
	},
}

var companiesShowCmd = &cobra.Command{
	Use:   "show <orgnr>",
	Short: "Show one company with its latest score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}
		if company == nil {
			return eris.Errorf("unknown company %s", args[0])
		}

		score, err := st.LatestScore(ctx, args[0])
		if err != nil {
			return err
		}

		out := struct {
			Company *model.Company `json:"company"`
			Score   *model.Score   `json:"latest_score,omitempty"`
		}{company, score}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var companiesExcludeCmd = &cobra.Command{
	Use:   "exclude <orgnr>",
	Short: "Set or clear the manual shortlist exclusion for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !excludeClear && excludeReason == "" {
			return eris.New("either --reason or --clear is required")
		}

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		reason := excludeReason
		if excludeClear {
			reason = ""
		}
		return st.SetExclusion(ctx, args[0], reason)
	},
}

func init() {
	companiesExcludeCmd.Flags().StringVar(&excludeReason, "reason", "", "why the company is excluded from shortlists")
	companiesExcludeCmd.Flags().BoolVar(&excludeClear, "clear", false, "clear an existing exclusion")

	companiesCmd.AddCommand(companiesListCmd)
	companiesCmd.AddCommand(companiesShowCmd)
	companiesCmd.AddCommand(companiesExcludeCmd)
	rootCmd.AddCommand(companiesCmd)
}

func formatCompanies(out io.Writer, companies []model.Company) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ORGNR\tNAME\tMUNICIPALITY\tNACE\tEXCLUDED")

	for _, c := range companies {
		excluded := ""
		if c.IsPublicSector {
			excluded = "public sector"
		}
		if c.ExcludedReason != "" {
			excluded = c.ExcludedReason
		}

		name := c.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Orgnr, name, c.Municipality, c.NACE, excluded)
	}
	_ = w.Flush()
}

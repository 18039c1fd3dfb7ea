package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budget/internal/core"
	"budget/internal/ports"
	"budget/internal/services"
	gsheet "budget/internal/sheets/google"
	"budget/internal/worker"
)

func newEntriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect the ledger",
	}

	var typeFlag, sortFlag string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := core.ParseTypeFilter(typeFlag)
			if err != nil {
				return err
			}
			order, err := core.ParseSortOrder(sortFlag)
			if err != nil {
				return err
			}

			store, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer store.Cleanup()

			entries, err := a.entryService(store.Backend).List(cmd.Context(), core.Query{Type: filter, Sort: order})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries")
				return nil
			}
			return printEntries(cmd.OutOrStdout(), entries)
		},
	}
	list.Flags().StringVarP(&typeFlag, "type", "t", "ALL", "ALL, INCOME or EXPENSE")
	list.Flags().StringVarP(&sortFlag, "sort", "s", string(core.SortDateDesc), "date_desc, date_asc, amount_desc or amount_asc")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print totals and the monthly trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer store.Cleanup()

			summary, err := a.entryService(store.Backend).Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger to the configured Google Sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := gsheet.NewFromConfig(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer store.Cleanup()

			if err := worker.NewExportWorker(store.Backend, client, a.logger).ExportNow(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger exported to %s\n", a.cfg.GoogleSheetName)
			return nil
		},
	}

	cmd.AddCommand(list, summary, export)
	return cmd
}

// entryService reads the ledger without a cache; the CLI runs once and exits.
func (a *app) entryService(repo ports.EntryRepository) *services.EntryService {
	return services.NewEntryService(repo, nil, nil, a.logger)
}

func printEntries(w io.Writer, entries []core.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tCATEGORY\tDESCRIPTION\tAMOUNT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Type, e.CategoryName(), e.Description, e.Amount.StringFixed(2))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s core.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Income\t%s\n", s.Income.StringFixed(2))
	fmt.Fprintf(tw, "Expense\t%s\n", s.Expense.StringFixed(2))
	fmt.Fprintf(tw, "Balance\t%s\n", s.Balance.StringFixed(2))
	if len(s.Monthly) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "MONTH\tINCOME\tEXPENSE")
		for _, m := range s.Monthly {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Month, m.Income.StringFixed(2), m.Expense.StringFixed(2))
		}
	}
	return tw.Flush()
}

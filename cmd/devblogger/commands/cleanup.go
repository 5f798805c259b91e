// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	var (
		entryDays  int
		ledgerDays int
		vacuum     bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old entries and prune the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			manager, err := a.blogManager()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if entryDays > 0 {
				deleted, err := manager.Store().CleanupOlderThan(entryDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d entries older than %d days\n", deleted, entryDays)
			}

			if ledgerDays > 0 {
				pruned, err := a.ledger.CleanupOlderThan(ledgerDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d ledger records older than %d days\n", pruned, ledgerDays)
			}

			if vacuum {
				if err := a.ledger.Vacuum(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Compacted the ledger database")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&entryDays, "entry-days", 90, "delete entries older than this many days (0 skips)")
	cmd.Flags().IntVar(&ledgerDays, "ledger-days", 0, "prune ledger records older than this many days (0 skips)")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "compact the sqlite database afterwards")
	return cmd
}

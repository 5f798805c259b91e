// SPDX-License-Identifier: AGPL-3.0-or-later
package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger and entry storage statistics",
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

			ledgerStats, err := a.ledger.Stats()
			if err != nil {
				return err
			}
			storageStats := manager.Store().Stats()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"ledger":  ledgerStats,
					"storage": storageStats,
				})
			}

			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Ledger:")
			keys := make([]string, 0, len(ledgerStats))
			for k := range ledgerStats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %-24s %d\n", k, ledgerStats[k])
			}

			fmt.Fprintln(out, "Entries:")
			fmt.Fprintf(out, "  %-24s %d\n", "total", storageStats.TotalEntries)
			fmt.Fprintf(out, "  %-24s %.2f MB\n", "size", float64(storageStats.TotalBytes)/(1024*1024))
			fmt.Fprintf(out, "  %-24s %s\n", "path", storageStats.Path)

			if popular := manager.PopularRepositories(5); len(popular) > 0 {
				fmt.Fprintln(out, "Top repositories:")
				for _, rc := range popular {
					fmt.Fprintf(out, "  %-30s %d\n", rc.Repository, rc.Count)
				}
			}

			if usage := manager.ProviderUsage(); len(usage) > 0 {
				fmt.Fprintln(out, "Provider usage:")
				names := make([]string, 0, len(usage))
				for name := range usage {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %-8s %d\n", name, usage[name])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

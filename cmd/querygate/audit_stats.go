package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/guillermoBallester/querygate/internal/audit"
	"github.com/guillermoBallester/querygate/internal/core/domain"
	"github.com/spf13/cobra"
)

func newAuditStatsCmd() *cobra.Command {
	var (
		dbPath string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit-stats",
		Short: "Summarize rejected queries in a SQLite audit database by reason",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("audit db: %w", err)
			}

			auditor, err := audit.NewSQLiteAuditor(dbPath)
			if err != nil {
				return err
			}
			defer auditor.Close()

			counts, err := auditor.CountByReason(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(counts)
			}

			reasons := make([]string, 0, len(counts))
			for r := range counts {
				reasons = append(reasons, r)
			}
			sort.Strings(reasons)
			for _, r := range reasons {
				if _, err := fmt.Fprintf(out, "%-24s %6d  %s\n", r, counts[r], describeReason(r)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "audit-db", "", "path to the SQLite audit database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print counts as a JSON object")
	_ = cmd.MarkFlagRequired("audit-db")
	return cmd
}

// describeReason returns the gate message for an admission reason code, or a
// note for codes recorded outside the gate (length bound, parse check).
func describeReason(code string) string {
	if r, ok := domain.ParseReason(code); ok {
		return r.Message()
	}
	return "refused outside the admission gate"
}

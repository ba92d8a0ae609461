package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/guillermoBallester/querygate/internal/adapter/mcp"
	"github.com/guillermoBallester/querygate/internal/core/domain"
	"github.com/spf13/cobra"
)

// exitRejected is the status of a check whose statement was refused.
const exitRejected = 2

func newCheckCmd() *cobra.Command {
	var (
		policyFile string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "check <sql | ->",
		Short: "Run the admission gate on one statement without a database",
		Long: "Prints the gate's decision for a statement. Pass - to read it from stdin.\n\n" +
			"Exit status is 0 when the statement is accepted and 2 when it is rejected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := args[0]
			if sql == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				sql = string(b)
			}

			gate, err := loadGate(policyFile)
			if err != nil {
				return err
			}

			decision := gate.Admit(sql)
			if err := printDecision(cmd.OutOrStdout(), decision, asJSON); err != nil {
				return err
			}
			if !decision.Accepted() {
				return &exitError{code: exitRejected}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFile, "policy-file", os.Getenv("POLICY_FILE"), "YAML file extending the admission rules")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func printDecision(w io.Writer, d domain.Decision, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(mcp.NewCheckResult(d))
	}

	var err error
	switch {
	case d.Accepted():
		_, err = fmt.Fprintf(w, "accepted: %s\n", d.Query)
	case d.Rule != "":
		_, err = fmt.Fprintf(w, "rejected: %s [%s]: %s\n", d.Reason, d.Rule, d.Reason.Message())
	default:
		_, err = fmt.Fprintf(w, "rejected: %s: %s\n", d.Reason, d.Reason.Message())
	}
	return err
}

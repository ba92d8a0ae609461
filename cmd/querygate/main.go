package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/guillermoBallester/querygate/internal/adapter/policy"
	"github.com/guillermoBallester/querygate/internal/config"
	"github.com/guillermoBallester/querygate/internal/core/domain"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// exitError carries a process exit status out of a command without printing.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	var ee *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "querygate",
		Short: "MCP server that only lets single read-only SELECT statements reach PostgreSQL",
		Long: "querygate exposes a PostgreSQL database to MCP clients. Every statement passes an\n" +
			"admission gate first: one statement, no comments or tautologies, no UNION SELECT,\n" +
			"no data-modifying keyword, and it must start with SELECT.\n\n" +
			"Configuration comes from environment variables; flags override them.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := overridesFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.Load(overrides)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return serve(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	bindServeFlags(cmd.Flags())
	cmd.AddCommand(newCheckCmd(), newAuditStatsCmd())
	return cmd
}

// loadGate builds the admission gate, extended by the policy file when one is given.
func loadGate(policyFile string) (*domain.Gate, error) {
	var pol *policy.Policy
	if policyFile != "" {
		var err error
		pol, err = policy.LoadFromFile(policyFile)
		if err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
	}
	return pol.NewGate()
}

// redactDSN masks the password so the URL can be logged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

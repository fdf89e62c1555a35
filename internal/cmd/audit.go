package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/output"
)

var auditType string

var auditCmd = &cobra.Command{
	Use:   "audit <url>",
	Short: "Run one audit against a website and print the results",
	Long: `Run a single audit to completion and print the check results as a
table. The audit and its results are persisted to the configured store,
so a later report can combine them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		logger := observability.Logger()
		defer observability.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup on exit

		eng, err := buildEngine(cfg, st, logger)
		if err != nil {
			return err
		}

		audit, err := eng.Execute(ctx, core.AuditType(auditType), args[0], nil)
		if err != nil {
			return err
		}

		results, err := st.ListCheckResults(ctx, audit.ID)
		if err != nil {
			return err
		}

		formatter := &output.TableFormatter{}
		fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatAudit(audit, results))
		fmt.Fprintf(cmd.OutOrStdout(), "audit id: %s\n", audit.ID)

		if audit.Status == core.StatusFailed {
			return fmt.Errorf("audit failed: %s", audit.ErrorMessage)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVarP(&auditType, "type", "t", string(core.AuditTypeSite),
		"audit type: site, performance, or aio")
	rootCmd.AddCommand(auditCmd)
}

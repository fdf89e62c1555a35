package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core/report"
	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/output"
)

var reportCmd = &cobra.Command{
	Use:   "report <site-audit-id> <performance-audit-id> <aio-audit-id>",
	Short: "Combine three completed audits into one weighted report",
	Long: `Combine one completed site, performance, and aio audit of the same
domain into a single weighted report. Eligibility violations are listed
in full rather than stopping at the first.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		defer observability.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup on exit

		site, err := st.GetAudit(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load site audit: %w", err)
		}
		performance, err := st.GetAudit(ctx, args[1])
		if err != nil {
			return fmt.Errorf("load performance audit: %w", err)
		}
		aio, err := st.GetAudit(ctx, args[2])
		if err != nil {
			return fmt.Errorf("load aio audit: %w", err)
		}

		combiner := &report.Combiner{}
		combined, err := combiner.Combine(site, performance, aio)
		if err != nil {
			var invalid *report.ValidationError
			if errors.As(err, &invalid) {
				fmt.Fprintln(cmd.ErrOrStderr(), "audits are not eligible for a combined report:")
				for _, reason := range invalid.Reasons {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", reason)
				}
			}
			return err
		}

		if err := st.InsertReport(ctx, combined); err != nil {
			return fmt.Errorf("persist report: %w", err)
		}

		formatter := &output.TableFormatter{}
		fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatReport(combined))
		fmt.Fprintf(cmd.OutOrStdout(), "report id: %s\n", combined.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

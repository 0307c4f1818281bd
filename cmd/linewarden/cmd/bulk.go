package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solatis/linewarden/internal/bulk"
)

var (
	bulkFormat   string
	bulkOutput   string
	bulkStrategy string
	bulkReason   string
	msisdnList   string
	msisdnFile   string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Validate many subscribers in parallel",
}

var bulkYesterdayCmd = &cobra.Command{
	Use:   "yesterday",
	Short: "Validate every subscriber with a qualifying order placed yesterday",
	Args:  cobra.NoArgs,
	RunE:  runBulkYesterday,
}

var bulkMSISDNsCmd = &cobra.Command{
	Use:   "msisdns [msisdn...]",
	Short: "Validate an explicit list of subscribers",
	Long: `Identifiers come from arguments, --msisdns (comma separated) and --file (one
per line, '#' starts a comment). Subscribers without a qualifying order are
listed in the report but not validated.`,
	RunE: runBulkMSISDNs,
}

func init() {
	rootCmd.AddCommand(bulkCmd)
	bulkCmd.AddCommand(bulkYesterdayCmd, bulkMSISDNsCmd)

	bulkCmd.PersistentFlags().StringVar(&bulkFormat, "format", "", "report format (json, csv, xlsx)")
	bulkCmd.PersistentFlags().StringVarP(&bulkOutput, "output", "o", "", "report path, '-' for stdout (default: <output_dir>/<kind>_<timestamp>.<format>)")
	bulkCmd.PersistentFlags().StringVar(&bulkStrategy, "strategy", "", "order retrieval strategy (latest, filtered)")
	bulkCmd.PersistentFlags().StringVar(&bulkReason, "reason", "", "order reason for the filtered strategy")

	bulkMSISDNsCmd.Flags().StringVar(&msisdnList, "msisdns", "", "comma separated msisdns")
	bulkMSISDNsCmd.Flags().StringVar(&msisdnFile, "file", "", "file with one msisdn per line")
}

// bulkRun is the wiring shared by both bulk subcommands.
type bulkRun struct {
	app    *app
	runner *bulk.Runner
	format bulk.Format
	close  func()
}

func newBulkRun() (*bulkRun, error) {
	a, err := setup()
	if err != nil {
		return nil, err
	}
	if bulkFormat != "" {
		a.cfg.Bulk.OutputFormat = bulkFormat
	}
	if bulkStrategy != "" {
		a.cfg.Orders.Strategy = bulkStrategy
	}
	if bulkReason != "" {
		a.cfg.Orders.Reason = bulkReason
	}
	format, err := bulk.ParseFormat(a.cfg.Bulk.OutputFormat)
	if err != nil {
		return nil, err
	}

	src, err := a.source()
	if err != nil {
		return nil, err
	}
	retriever, err := a.retriever(src)
	if err != nil {
		return nil, err
	}
	v, closeValidator, err := a.validator(src)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := a.store()
	if err != nil {
		closeValidator()
		return nil, err
	}
	var recorder bulk.Recorder
	if store != nil {
		recorder = store
	}

	runner := bulk.NewRunner(retriever, a.classifier(), a.executor(v), recorder, bulk.RunnerConfig{
		Filter: bulk.FilterInfo{
			IgnoredReasons: a.cfg.Orders.IgnoreReasons,
			IgnoredTypes:   a.cfg.Orders.IgnoreTypes,
			Disconnects:    "excluded",
		},
		Region: a.cfg.Bulk.Region,
		Format: format,
	}, a.logger)

	return &bulkRun{
		app:    a,
		runner: runner,
		format: format,
		close: func() {
			closeStore()
			closeValidator()
		},
	}, nil
}

func runBulkYesterday(cmd *cobra.Command, args []string) error {
	b, err := newBulkRun()
	if err != nil {
		return err
	}
	defer b.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := b.runner.Yesterday(ctx)
	if err != nil {
		return err
	}
	b.app.logger.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"total":        report.Summary.TotalMSISDNs,
		"successful":   report.Summary.SuccessfulValidations,
		"failed":       report.Summary.FailedValidations,
		"success_rate": report.Summary.SuccessRate,
	}).Info("yesterday run complete")
	return b.write(cmd.OutOrStdout(), bulk.KindYesterday, report)
}

func runBulkMSISDNs(cmd *cobra.Command, args []string) error {
	raw := append([]string{}, args...)
	raw = append(raw, bulk.SplitMSISDNs(msisdnList)...)
	if msisdnFile != "" {
		lines, err := readLines(msisdnFile)
		if err != nil {
			return err
		}
		raw = append(raw, lines...)
	}
	if len(raw) == 0 {
		return fmt.Errorf("no msisdns given (use arguments, --msisdns or --file)")
	}

	b, err := newBulkRun()
	if err != nil {
		return err
	}
	defer b.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := b.runner.MSISDNList(ctx, raw)
	if err != nil {
		return err
	}
	b.app.logger.WithFields(logrus.Fields{
		"run_id":         report.RunID,
		"requested":      report.Summary.TotalMSISDNsRequested,
		"with_orders":    report.Summary.MSISDNsWithOrders,
		"without_orders": report.Summary.MSISDNsWithoutOrders,
		"failed":         report.Summary.FailedValidations,
	}).Info("msisdn list run complete")
	return b.write(cmd.OutOrStdout(), bulk.KindMSISDNList, report)
}

// write renders r to --output, stdout for "-", or a timestamped file in the
// configured output directory.
func (b *bulkRun) write(stdout io.Writer, kind string, r bulk.Report) error {
	if bulkOutput == "-" {
		return bulk.Render(stdout, b.format, r)
	}

	path := bulkOutput
	if path == "" {
		name := fmt.Sprintf("%s_%s.%s", kind, time.Now().Format("20060102_150405"), b.format)
		path = filepath.Join(b.app.cfg.Bulk.OutputDir, name)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := bulk.Render(f, b.format, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	b.app.logger.WithField("path", path).Info("report written")
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open msisdn file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read msisdn file: %w", err)
	}
	return lines, nil
}

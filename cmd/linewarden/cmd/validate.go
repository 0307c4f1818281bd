package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/linewarden/internal/logging"
	"github.com/solatis/linewarden/internal/verdict"
)

var validateCmd = &cobra.Command{
	Use:   "validate <msisdn> [msisdn...]",
	Short: "Validate the assets of one or more subscribers",
	Long: `Validate assembles each subscriber's line, device and child assets and runs
the configured checks. One identifier prints its result envelope; several
print a combined response with a summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := a.source()
	if err != nil {
		return err
	}
	v, closeFn, err := a.validator(src)
	if err != nil {
		return err
	}
	defer closeFn()

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")

	if len(args) == 1 {
		res, err := v.Validate(ctx, args[0], nil)
		if err != nil {
			return fmt.Errorf("validate %s: %w", args[0], err)
		}
		return out.Encode(res)
	}

	var entries []verdict.Entry
	for _, msisdn := range args {
		res, err := v.Validate(ctx, msisdn, nil)
		if err != nil {
			return fmt.Errorf("validate %s: %w", msisdn, err)
		}
		if res.IsError() {
			logging.LogError(a.logger, "validate", "validate_msisdn", msisdn, errors.New(res.Message))
			continue
		}
		entries = append(entries, *res.Entry)
	}
	if len(entries) == 0 {
		a.logger.Warn("no subscriber could be validated")
	}
	return out.Encode(verdict.BuildResponse(entries, time.Now()))
}

package cmd

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	ordersStrategy string
	ordersReason   string
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List the latest qualifying order per subscriber for the previous day",
	Long: `Orders runs the configured retrieval strategy over the previous-day window and
prints the latest order per subscriber, keyed by msisdn. Ignore lists and
disconnect filtering are not applied; use it to inspect what a yesterday run
starts from.`,
	Args: cobra.NoArgs,
	RunE: runOrders,
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.Flags().StringVar(&ordersStrategy, "strategy", "", "order retrieval strategy (latest, filtered)")
	ordersCmd.Flags().StringVar(&ordersReason, "reason", "", "order reason for the filtered strategy")
}

func runOrders(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	if ordersStrategy != "" {
		a.cfg.Orders.Strategy = ordersStrategy
	}
	if ordersReason != "" {
		a.cfg.Orders.Reason = ordersReason
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := a.source()
	if err != nil {
		return err
	}
	retriever, err := a.retriever(src)
	if err != nil {
		return err
	}
	byMSISDN, err := retriever.GetOrders(ctx)
	if err != nil {
		return err
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	return out.Encode(byMSISDN)
}

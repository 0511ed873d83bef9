package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/goldvault-backend/internal/customers"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
)

const flagFailOnErrors = "fail-on-errors"

type revaluer interface {
	Revalue(ctx context.Context) (storagebilling.RevaluationResult, error)
}

type runtime struct {
	billing   storagebilling.Runner
	revaluer  revaluer
	customers customers.Service
	holdings  holdingLister
	ledger    billingLedger
	attempts  attemptFinder
	prices    priceBook
	close     func() error
}

type bootstrapFunc func(ctx context.Context) (*runtime, error)

func newRootCommand(boot bootstrapFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operator commands for gold vault storage billing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBillingCommand(boot),
		newCustomersCommand(boot),
		newHoldingsCommand(boot),
		newPricesCommand(boot),
	)
	return root
}

func newBillingCommand(boot bootstrapFunc) *cobra.Command {
	billing := &cobra.Command{
		Use:   "billing",
		Short: "Storage billing runs",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Bill every customer with active holdings for the current month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			failOnErrors, err := cmd.Flags().GetBool(flagFailOnErrors)
			if err != nil {
				return err
			}
			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				summary, err := rt.billing.Run(ctx)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				if failOnErrors && summary.Failed > 0 {
					return fmt.Errorf("%d customer(s) failed", summary.Failed)
				}
				return nil
			})
		},
	}
	run.Flags().Bool(flagFailOnErrors, false, "exit non-zero when any customer failed")

	revalue := &cobra.Command{
		Use:   "revalue",
		Short: "Recompute holding values from the latest gold price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				result, err := rt.revaluer.Revalue(ctx)
				if writeErr := writeJSON(cmd.OutOrStdout(), result); writeErr != nil {
					return writeErr
				}
				return err
			})
		},
	}

	billing.AddCommand(run, revalue, newHistoryCommand(boot), newInvoiceCommand(boot))
	return billing
}

func newCustomersCommand(boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Customer account standing",
	}
	clearBalance := &cobra.Command{
		Use:   "clear-balance <customer-id>",
		Short: "Return a customer to active standing with nothing overdue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid customer id %q: %w", args[0], err)
			}
			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				customer, err := rt.customers.ClearBalance(ctx, customerID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"id":             customer.ID,
					"account_status": customer.AccountStatus,
					"overdue_amount": customer.OverdueAmount,
				})
			})
		},
	}
	cmd.AddCommand(clearBalance)
	return cmd
}

func withRuntime(cmd *cobra.Command, boot bootstrapFunc, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := boot(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rt.close != nil {
			_ = rt.close()
		}
	}()
	return fn(ctx, rt)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

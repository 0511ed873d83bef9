package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/goldvault-backend/internal/holdings"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	"github.com/angelmondragon/goldvault-backend/pkg/db/models"
	"github.com/angelmondragon/goldvault-backend/pkg/enums"
)

const periodLayout = "2006-01"

type holdingLister interface {
	List(ctx context.Context, query holdings.ListQuery) ([]models.VaultHolding, error)
}

type billingLedger interface {
	ListByCustomerPeriod(ctx context.Context, customerID uuid.UUID, periodStart time.Time) ([]models.StorageBilling, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.StorageBilling, error)
}

type attemptFinder interface {
	Find(ctx context.Context, customerID uuid.UUID, periodStart time.Time) (*models.StorageBillingAttempt, error)
}

type priceBook interface {
	Latest(ctx context.Context) (*models.GoldPricePoint, error)
	Record(ctx context.Context, point *models.GoldPricePoint) error
}

type holdingView struct {
	ID           uuid.UUID           `json:"id"`
	CustomerID   uuid.UUID           `json:"customer_id"`
	VaultRef     string              `json:"vault_ref"`
	Status       enums.HoldingStatus `json:"status"`
	StorageFee   decimal.Decimal     `json:"storage_fee"`
	CurrentValue decimal.Decimal     `json:"current_value"`
	AcquiredAt   time.Time           `json:"acquired_at"`
}

type ledgerView struct {
	HoldingID       uuid.UUID           `json:"holding_id"`
	Amount          decimal.Decimal     `json:"amount"`
	Status          enums.BillingStatus `json:"status"`
	StripeInvoiceID string              `json:"stripe_invoice_id"`
	PeriodStart     time.Time           `json:"billing_period_start"`
	PeriodEnd       time.Time           `json:"billing_period_end"`
	PaidAt          *time.Time          `json:"paid_at"`
}

type attemptView struct {
	Stage           enums.BillingAttemptStage `json:"stage"`
	StripeInvoiceID *string                   `json:"stripe_invoice_id"`
	LastError       *string                   `json:"last_error"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

type historyView struct {
	CustomerID  uuid.UUID    `json:"customer_id"`
	PeriodStart time.Time    `json:"billing_period_start"`
	Attempt     *attemptView `json:"attempt"`
	Rows        []ledgerView `json:"rows"`
}

type priceView struct {
	PricePerG  decimal.Decimal `json:"price_per_g"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func newHoldingsCommand(boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holdings",
		Short: "Vault holdings",
	}

	var (
		customer string
		statuses []string
		prefix   string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List holdings, optionally filtered by customer, status or vault reference prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := holdings.ListQuery{VaultRefPrefix: prefix, Limit: limit}
			if customer != "" {
				id, err := uuid.Parse(customer)
				if err != nil {
					return fmt.Errorf("invalid customer id %q: %w", customer, err)
				}
				query.CustomerID = &id
			}
			for _, raw := range statuses {
				status, err := enums.ParseHoldingStatus(strings.ToLower(strings.TrimSpace(raw)))
				if err != nil {
					return err
				}
				query.Statuses = append(query.Statuses, status)
			}

			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				rows, err := rt.holdings.List(ctx, query)
				if err != nil {
					return err
				}
				views := make([]holdingView, 0, len(rows))
				for _, h := range rows {
					views = append(views, holdingView{
						ID:           h.ID,
						CustomerID:   h.CustomerID,
						VaultRef:     h.VaultRef,
						Status:       h.Status,
						StorageFee:   h.StorageFee,
						CurrentValue: h.CurrentValue,
						AcquiredAt:   h.AcquiredAt,
					})
				}
				return writeJSON(cmd.OutOrStdout(), views)
			})
		},
	}
	list.Flags().StringVar(&customer, "customer", "", "only holdings owned by this customer id")
	list.Flags().StringSliceVar(&statuses, "status", nil, "holding statuses to include (repeatable)")
	list.Flags().StringVar(&prefix, "vault-ref-prefix", "", "only holdings whose vault reference starts with this")
	list.Flags().IntVar(&limit, "limit", 100, "maximum rows returned")

	cmd.AddCommand(list)
	return cmd
}

func newHistoryCommand(boot bootstrapFunc) *cobra.Command {
	var period string
	history := &cobra.Command{
		Use:   "history <customer-id>",
		Short: "Show the ledger rows and billing attempt for one customer and month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid customer id %q: %w", args[0], err)
			}
			periodStart, err := parsePeriod(period, time.Now())
			if err != nil {
				return err
			}

			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				attempt, err := rt.attempts.Find(ctx, customerID, periodStart)
				if err != nil {
					return fmt.Errorf("find billing attempt: %w", err)
				}
				rows, err := rt.ledger.ListByCustomerPeriod(ctx, customerID, periodStart)
				if err != nil {
					return fmt.Errorf("list ledger rows: %w", err)
				}
				out := historyView{CustomerID: customerID, PeriodStart: periodStart, Rows: toLedgerViews(rows)}
				if attempt != nil {
					out.Attempt = &attemptView{
						Stage:           attempt.Stage,
						StripeInvoiceID: attempt.StripeInvoiceID,
						LastError:       attempt.LastError,
						UpdatedAt:       attempt.UpdatedAt,
					}
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	history.Flags().StringVar(&period, "period", "", "billing month as YYYY-MM (default: current month, UTC)")
	return history
}

func newInvoiceCommand(boot bootstrapFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "invoice <stripe-invoice-id>",
		Short: "Show the ledger rows recorded against one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceID := strings.TrimSpace(args[0])
			if invoiceID == "" {
				return errors.New("invoice id required")
			}
			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				rows, err := rt.ledger.ListByInvoice(ctx, invoiceID)
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					return fmt.Errorf("no ledger rows for invoice %s", invoiceID)
				}
				return writeJSON(cmd.OutOrStdout(), toLedgerViews(rows))
			})
		},
	}
}

func newPricesCommand(boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Gold price series",
	}

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent gold price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				point, err := rt.prices.Latest(ctx)
				if err != nil {
					return err
				}
				if point == nil {
					return errors.New("no gold price recorded")
				}
				return writeJSON(cmd.OutOrStdout(), priceView{PricePerG: point.PricePerG, RecordedAt: point.RecordedAt})
			})
		},
	}

	record := &cobra.Command{
		Use:   "record <price-per-gram>",
		Short: "Append a gold price point used by the next revaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[0], err)
			}
			if !price.IsPositive() {
				return fmt.Errorf("price per gram must be positive, got %s", price)
			}
			return withRuntime(cmd, boot, func(ctx context.Context, rt *runtime) error {
				point := &models.GoldPricePoint{ID: uuid.New(), PricePerG: price, RecordedAt: time.Now().UTC()}
				if err := rt.prices.Record(ctx, point); err != nil {
					return fmt.Errorf("record gold price: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), priceView{PricePerG: point.PricePerG, RecordedAt: point.RecordedAt})
			})
		},
	}

	cmd.AddCommand(latest, record)
	return cmd
}

// parsePeriod resolves a YYYY-MM flag to the start of that billing month.
func parsePeriod(raw string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return storagebilling.PeriodFor(now).Start, nil
	}
	month, err := time.Parse(periodLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q, want YYYY-MM", raw)
	}
	return storagebilling.PeriodFor(month).Start, nil
}

func toLedgerViews(rows []models.StorageBilling) []ledgerView {
	views := make([]ledgerView, 0, len(rows))
	for _, row := range rows {
		views = append(views, ledgerView{
			HoldingID:       row.HoldingID,
			Amount:          row.Amount,
			Status:          row.Status,
			StripeInvoiceID: row.StripeInvoiceID,
			PeriodStart:     row.BillingPeriodStart,
			PeriodEnd:       row.BillingPeriodEnd,
			PaidAt:          row.PaidAt,
		})
	}
	return views
}

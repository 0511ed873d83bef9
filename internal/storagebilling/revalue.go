package storagebilling

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// HoldingValue prices a holding: price per gram x weight x purity, to 2 dp.
func HoldingValue(pricePerG, weightG, purity decimal.Decimal) decimal.Decimal {
	return pricePerG.Mul(weightG).Mul(purity).Round(2)
}

// Revalue sets current_value on every active holding from the latest gold
// price. Holdings are updated independently; failures are combined into one
// error. With no recorded price the pass is skipped.
func (s *service) Revalue(ctx context.Context) (RevaluationResult, error) {
	var result RevaluationResult

	point, err := s.prices.Latest(ctx)
	if err != nil {
		return result, fmt.Errorf("load latest gold price: %w", err)
	}
	if point == nil {
		result.Skipped = true
		return result, nil
	}

	inputs, err := s.holdings.ListActiveForValuation(ctx)
	if err != nil {
		return result, fmt.Errorf("load holdings for valuation: %w", err)
	}

	errs := make([]error, len(inputs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, in := range inputs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("holding %s: panic: %v", in.HoldingID, r)
				}
			}()
			value := HoldingValue(point.PricePerG, in.WeightG, in.Purity)
			if updErr := s.holdings.UpdateCurrentValue(ctx, in.HoldingID, value); updErr != nil {
				errs[i] = fmt.Errorf("holding %s: %w", in.HoldingID, updErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	combined := multierr.Combine(errs...)
	result.Failed = len(multierr.Errors(combined))
	result.Updated = len(inputs) - result.Failed
	s.metrics.AddRevaluations(result.Updated, result.Failed)

	if combined != nil {
		return result, fmt.Errorf("revalue holdings: %d of %d failed: %w", result.Failed, len(inputs), combined)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"updated":     result.Updated,
		"price_per_g": point.PricePerG.String(),
	}), "holdings revalued")
	return result, nil
}

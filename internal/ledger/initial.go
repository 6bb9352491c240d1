package ledger

import (
	"context"
	"fmt"
)

// AccountAggregate is one per-account sum returned by the data source.
type AccountAggregate struct {
	AccountID int64
	Bucket    BalanceBucket
}

// GroupAggregate is one per-account, per-group sum. Key is a partner id or a
// tax-line id; zero means the line carried none.
type GroupAggregate struct {
	AccountID int64
	Key       int64
	Name      string
	Bucket    BalanceBucket
}

// computeInitialBalances seeds the working set with pre-period balances: one
// entry per account holding the balance-sheet and current-fiscal-year
// profit/loss sums, grouped partials when a grouping mode is active, and the
// unaffected-earnings rollover of prior fiscal years.
func (s *Service) computeInitialBalances(ctx context.Context, p ReportParams) (ledgerData, error) {
	data := make(ledgerData)

	bsAccounts, err := s.ds.SearchAccounts(ctx, initialBalanceAccountsFilter(p, true))
	if err != nil {
		return nil, fmt.Errorf("ledger: search balance-sheet accounts: %w", err)
	}
	plAccounts, err := s.ds.SearchAccounts(ctx, initialBalanceAccountsFilter(p, false))
	if err != nil {
		return nil, fmt.Errorf("ledger: search profit/loss accounts: %w", err)
	}

	bsFilter := initialBalanceSheetFilter(p, bsAccounts, false)
	plFilter := initialProfitLossFilter(p, plAccounts)
	for _, f := range []Filter{bsFilter, plFilter} {
		aggs, err := s.ds.AggregateByAccount(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("ledger: aggregate initial balances: %w", err)
		}
		for _, agg := range aggs {
			e := data.ensure(agg.AccountID)
			e.initial.Merge(agg.Bucket)
			e.final.Merge(agg.Bucket)
		}
	}

	if err := s.computeGroupedInitialBalances(ctx, p, bsAccounts, data); err != nil {
		return nil, err
	}
	if err := s.rollUnaffectedEarnings(ctx, p, plAccounts, data); err != nil {
		return nil, err
	}
	return data, nil
}

// computeGroupedInitialBalances adds per-partner or per-tax initial partials
// under each account, using the period-restricted balance-sheet filter with
// the account-type restriction applied.
func (s *Service) computeGroupedInitialBalances(ctx context.Context, p ReportParams, bsAccounts []int64, data ledgerData) error {
	groupedFilter := initialBalanceSheetFilter(p, bsAccounts, true)
	var aggs []GroupAggregate
	var err error
	switch p.GroupedBy {
	case GroupingPartners:
		aggs, err = s.ds.AggregateByAccountPartner(ctx, groupedFilter)
	case GroupingTaxes:
		aggs, err = s.ds.AggregateByAccountTaxLine(ctx, groupedFilter)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: aggregate grouped initial balances: %w", err)
	}
	for _, agg := range aggs {
		e := data.ensure(agg.AccountID)
		name := agg.Name
		if agg.Key == MissingGroupKey && name == "" {
			name = missingGroupName(p.GroupedBy)
		}
		g := e.ensureGroup(agg.Key, name)
		g.init.Merge(agg.Bucket)
		g.final.Merge(agg.Bucket)
		e.grouped = true
	}
	return nil
}

// rollUnaffectedEarnings folds the net profit/loss of all closed fiscal years
// before the report's fiscal-year start into the unaffected-earnings account.
// An explicit account filter disables the rollover: the caller asked for a
// fixed account set.
func (s *Service) rollUnaffectedEarnings(ctx context.Context, p ReportParams, plAccounts []int64, data ledgerData) error {
	if p.UnaffectedEarningsAccountID == 0 || len(p.AccountIDs) > 0 {
		return nil
	}
	data.ensure(p.UnaffectedEarningsAccountID)
	aggs, err := s.ds.AggregateByAccount(ctx, priorFYProfitLossFilter(p, plAccounts))
	if err != nil {
		return fmt.Errorf("ledger: aggregate prior fiscal years: %w", err)
	}
	var rollover BalanceBucket
	for _, agg := range aggs {
		rollover.Merge(agg.Bucket)
	}
	if !p.ForeignCurrency {
		rollover.CurrencyBalance = 0
	}
	e := data[p.UnaffectedEarningsAccountID]
	e.initial.Merge(rollover)
	e.final.Merge(rollover)
	return nil
}

// missingGroupName returns the display name of the sentinel group.
func missingGroupName(mode GroupingMode) string {
	switch mode {
	case GroupingPartners:
		return "Missing Partner"
	case GroupingTaxes:
		return "Missing Tax"
	default:
		return ""
	}
}

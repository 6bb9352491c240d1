package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultPageSize bounds how many movement lines one fetch returns. Full
// ledgers can be arbitrarily large; pages keep memory flat.
const DefaultPageSize = 50000

// aggregationContext collects the reference ids seen while pages stream in.
// It is owned by one run and written only by the accumulator goroutine.
type aggregationContext struct {
	journalIDs      map[int64]struct{}
	taxIDs          map[int64]struct{}
	analyticIDs     map[int64]struct{}
	reconciliations map[int64]string
}

func newAggregationContext() *aggregationContext {
	return &aggregationContext{
		journalIDs:      make(map[int64]struct{}),
		taxIDs:          make(map[int64]struct{}),
		analyticIDs:     make(map[int64]struct{}),
		reconciliations: make(map[int64]string),
	}
}

// periodResult holds the reference tables and reconciliation facts resolved
// after all pages are accumulated.
type periodResult struct {
	accounts           map[int64]AccountInfo
	journals           map[int64]JournalInfo
	taxes              map[int64]TaxInfo
	analytic           map[int64]AnalyticInfo
	reconciliations    map[int64]string
	futureReconcileIDs map[int64]struct{}
}

// processPeriod streams the in-period movement lines page by page into the
// working set. Fetching the next page overlaps with accumulating the previous
// one, but all writes to the shared maps happen on the accumulator goroutine
// only. Cancellation is safe at page boundaries: a page is handed over whole.
func (s *Service) processPeriod(ctx context.Context, p ReportParams, data ledgerData) (*periodResult, error) {
	realAccounts, err := s.ds.SearchAccounts(ctx, realAccountsFilter(p.CompanyID, p.GroupedBy))
	if err != nil {
		return nil, fmt.Errorf("ledger: search real accounts: %w", err)
	}
	realSet := make(map[int64]struct{}, len(realAccounts))
	for _, id := range realAccounts {
		realSet[id] = struct{}{}
	}

	filter := periodFilter(p)
	acc := newAggregationContext()
	pageSize := s.pageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pages := make(chan []MovementLine, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pages)
		for offset := 0; ; offset += pageSize {
			if err := gctx.Err(); err != nil {
				return err
			}
			lines, err := s.ds.MovementLines(gctx, filter, pageSize, offset)
			if err != nil {
				// A failed fetch aborts the run; a partial ledger is a
				// correctness violation, not a degraded result.
				return fmt.Errorf("ledger: fetch movement lines at offset %d: %w", offset, err)
			}
			if len(lines) == 0 {
				return nil
			}
			select {
			case pages <- lines:
			case <-gctx.Done():
				return gctx.Err()
			}
			if len(lines) < pageSize {
				return nil
			}
		}
	})
	g.Go(func() error {
		for lines := range pages {
			for i := range lines {
				s.accumulateLine(&lines[i], p, data, acc, realSet)
			}
			if s.metrics != nil {
				s.metrics.ObservePage(len(lines))
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.resolveReferences(ctx, p, data, acc)
}

// accumulateLine records one movement line into the working set and the
// aggregation context. Single-writer: only the accumulator goroutine calls it.
func (s *Service) accumulateLine(line *MovementLine, p ReportParams, data ledgerData, acc *aggregationContext, realSet map[int64]struct{}) {
	acc.journalIDs[line.JournalID] = struct{}{}
	for _, taxID := range line.TaxIDs {
		acc.taxIDs[taxID] = struct{}{}
	}
	for analyticID := range line.Analytic {
		acc.analyticIDs[analyticID] = struct{}{}
	}
	if line.ReconcileID != 0 {
		if _, seen := acc.reconciliations[line.ReconcileID]; !seen {
			acc.reconciliations[line.ReconcileID] = line.ReconcileName
		}
	}

	e := data.ensure(line.AccountID)
	_, isReal := realSet[line.AccountID]
	if isReal && p.GroupedBy != GroupingNone {
		for _, key := range groupKeysFor(line, p.GroupedBy) {
			g := e.ensureGroup(key.id, key.name)
			g.lines = append(g.lines, *line)
			g.final.Add(line.Debit, line.Credit, line.Balance, line.CurrencyBalance)
		}
		e.grouped = true
	} else {
		e.lines = append(e.lines, *line)
	}
	e.final.Add(line.Debit, line.Credit, line.Balance, line.CurrencyBalance)
}

type groupKey struct {
	id   int64
	name string
}

// groupKeysFor derives the grouping key(s) of a line. Tax grouping fans a
// line out into every tax it carries when no tax line is set; a line with
// neither lands in the sentinel bucket.
func groupKeysFor(line *MovementLine, mode GroupingMode) []groupKey {
	switch mode {
	case GroupingPartners:
		if line.PartnerID != 0 {
			return []groupKey{{id: line.PartnerID, name: line.PartnerName}}
		}
		return []groupKey{{id: MissingGroupKey, name: missingGroupName(mode)}}
	case GroupingTaxes:
		if line.TaxLineID != 0 {
			return []groupKey{{id: line.TaxLineID}}
		}
		if len(line.TaxIDs) > 0 {
			keys := make([]groupKey, 0, len(line.TaxIDs))
			for _, taxID := range line.TaxIDs {
				keys = append(keys, groupKey{id: taxID})
			}
			return keys
		}
		return []groupKey{{id: MissingGroupKey, name: missingGroupName(mode)}}
	default:
		return nil
	}
}

// resolveReferences loads display metadata restricted to the ids actually
// seen, and finds the reconciliations that settle after the period end.
func (s *Service) resolveReferences(ctx context.Context, p ReportParams, data ledgerData, acc *aggregationContext) (*periodResult, error) {
	accountIDs := make([]int64, 0, len(data))
	for id := range data {
		accountIDs = append(accountIDs, id)
	}
	accounts, err := s.ds.AccountsByID(ctx, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("ledger: resolve accounts: %w", err)
	}
	journals, err := s.ds.JournalsByID(ctx, setToSlice(acc.journalIDs))
	if err != nil {
		return nil, fmt.Errorf("ledger: resolve journals: %w", err)
	}
	taxIDs := setToSlice(acc.taxIDs)
	if p.GroupedBy == GroupingTaxes {
		// Grouped tax keys come from tax lines; their metadata is needed too.
		seen := make(map[int64]struct{}, len(taxIDs))
		for _, id := range taxIDs {
			seen[id] = struct{}{}
		}
		for _, e := range data {
			for key := range e.groups {
				if key == MissingGroupKey {
					continue
				}
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					taxIDs = append(taxIDs, key)
				}
			}
		}
	}
	taxes, err := s.ds.TaxesByID(ctx, taxIDs)
	if err != nil {
		return nil, fmt.Errorf("ledger: resolve taxes: %w", err)
	}
	analytic, err := s.ds.AnalyticAccountsByID(ctx, setToSlice(acc.analyticIDs))
	if err != nil {
		return nil, fmt.Errorf("ledger: resolve analytic accounts: %w", err)
	}

	recIDs := make([]int64, 0, len(acc.reconciliations))
	for id := range acc.reconciliations {
		recIDs = append(recIDs, id)
	}
	future := make(map[int64]struct{})
	if len(recIDs) > 0 {
		futureIDs, err := s.ds.ReconciliationsAfter(ctx, recIDs, p.DateTo)
		if err != nil {
			return nil, fmt.Errorf("ledger: resolve future reconciliations: %w", err)
		}
		for _, id := range futureIDs {
			future[id] = struct{}{}
		}
	}

	return &periodResult{
		accounts:           accounts,
		journals:           journals,
		taxes:              taxes,
		analytic:           analytic,
		reconciliations:    acc.reconciliations,
		futureReconcileIDs: future,
	}, nil
}

func setToSlice(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

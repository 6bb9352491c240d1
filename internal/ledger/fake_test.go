package ledger

import (
	"context"
	"time"
)

// fakeDataSource serves canned data for pipeline tests. Filters are
// discriminated by their distinguishing conditions, mirroring how the real
// store would interpret them.
type fakeDataSource struct {
	bsAccounts   []int64
	plAccounts   []int64
	realAccounts []int64

	bsAggs    []AccountAggregate
	plAggs    []AccountAggregate
	priorAggs []AccountAggregate
	groupAggs []GroupAggregate

	lines []MovementLine

	accounts map[int64]AccountInfo
	journals map[int64]JournalInfo
	taxes    map[int64]TaxInfo
	analytic map[int64]AnalyticInfo
	recDates map[int64]time.Time

	fyStart time.Time

	searchCalls int
	pageCalls   int
	err         error
}

func (f *fakeDataSource) SearchAccounts(_ context.Context, flt Filter) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.searchCalls++
	for _, c := range flt {
		switch c.Field {
		case "include_initial_balance":
			if c.Value == true {
				return f.bsAccounts, nil
			}
			return f.plAccounts, nil
		case "account_type":
			return f.realAccounts, nil
		}
	}
	return nil, nil
}

func (f *fakeDataSource) AggregateByAccount(_ context.Context, flt Filter) ([]AccountAggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	hasLowerBound := false
	var upper time.Time
	for _, c := range flt {
		if c.Field != "date" {
			continue
		}
		switch c.Op {
		case OpGte:
			hasLowerBound = true
		case OpLt:
			upper, _ = c.Value.(time.Time)
		}
	}
	if hasLowerBound {
		return f.plAggs, nil
	}
	if !f.fyStart.IsZero() && upper.Equal(f.fyStart) {
		return f.priorAggs, nil
	}
	return f.bsAggs, nil
}

func (f *fakeDataSource) AggregateByAccountPartner(_ context.Context, _ Filter) ([]GroupAggregate, error) {
	return f.groupAggs, f.err
}

func (f *fakeDataSource) AggregateByAccountTaxLine(_ context.Context, _ Filter) ([]GroupAggregate, error) {
	return f.groupAggs, f.err
}

func (f *fakeDataSource) MovementLines(_ context.Context, _ Filter, limit, offset int) ([]MovementLine, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pageCalls++
	if offset >= len(f.lines) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.lines) {
		end = len(f.lines)
	}
	return append([]MovementLine(nil), f.lines[offset:end]...), nil
}

func (f *fakeDataSource) ReconciliationsAfter(_ context.Context, ids []int64, after time.Time) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []int64
	for _, id := range ids {
		if maxDate, ok := f.recDates[id]; ok && maxDate.After(after) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeDataSource) AccountsByID(_ context.Context, ids []int64) (map[int64]AccountInfo, error) {
	return restrict(f.accounts, ids), f.err
}

func (f *fakeDataSource) JournalsByID(_ context.Context, ids []int64) (map[int64]JournalInfo, error) {
	return restrict(f.journals, ids), f.err
}

func (f *fakeDataSource) TaxesByID(_ context.Context, ids []int64) (map[int64]TaxInfo, error) {
	return restrict(f.taxes, ids), f.err
}

func (f *fakeDataSource) AnalyticAccountsByID(_ context.Context, ids []int64) (map[int64]AnalyticInfo, error) {
	return restrict(f.analytic, ids), f.err
}

func restrict[V any](src map[int64]V, ids []int64) map[int64]V {
	out := make(map[int64]V, len(ids))
	for _, id := range ids {
		if v, ok := src[id]; ok {
			out[id] = v
		}
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseParams() ReportParams {
	return ReportParams{
		CompanyID:   1,
		DateFrom:    date(2024, time.January, 1),
		DateTo:      date(2024, time.January, 31),
		FYStartDate: date(2023, time.July, 1),
	}
}

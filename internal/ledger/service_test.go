package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endToEndFake() *fakeDataSource {
	ds := periodFake()
	ds.bsAccounts = []int64{100}
	ds.fyStart = date(2023, time.July, 1)
	ds.bsAggs = []AccountAggregate{
		{AccountID: 100, Bucket: BalanceBucket{Debit: 100, Balance: 100}},
	}
	return ds
}

func TestBuildReportEndToEnd(t *testing.T) {
	svc := newTestService(endToEndFake())
	report, err := svc.BuildReport(context.Background(), baseParams())
	require.NoError(t, err)

	require.Len(t, report.Accounts, 2)
	// Accounts ordered by code.
	assert.Equal(t, "1200", report.Accounts[0].Code)
	assert.Equal(t, "6000", report.Accounts[1].Code)

	receivables := report.Accounts[0]
	// final = init + period deltas.
	assert.InDelta(t, receivables.Initial.Balance+50-20, receivables.Final.Balance, 1e-9)
	require.Len(t, receivables.Lines, 2)
	assert.InDelta(t, 150, receivables.Lines[0].Cumulative, 1e-9)
	assert.InDelta(t, 130, receivables.Lines[1].Cumulative, 1e-9)
	assert.InDelta(t, receivables.Final.Balance, receivables.Lines[1].Cumulative, 1e-9)

	// Future reconciliation surfaced both in the set and on the line.
	assert.Equal(t, []int64{300}, report.FutureReconcileIDs)
	assert.Equal(t, "(future) A300", receivables.Lines[0].ReconcileName)

	// Echoed flags.
	assert.False(t, report.FilterPartnerIDs)
	assert.Equal(t, GroupingNone, report.GroupedBy)
	assert.Equal(t, int64(1), report.CompanyID)
}

func TestBuildReportIdempotent(t *testing.T) {
	first, err := newTestService(endToEndFake()).BuildReport(context.Background(), baseParams())
	require.NoError(t, err)
	second, err := newTestService(endToEndFake()).BuildReport(context.Background(), baseParams())
	require.NoError(t, err)
	assert.Equal(t, first.Accounts, second.Accounts)
	assert.Equal(t, first.FutureReconcileIDs, second.FutureReconcileIDs)
}

func TestBuildReportValidatesBeforeAggregation(t *testing.T) {
	ds := endToEndFake()
	svc := newTestService(ds)
	p := baseParams()
	p.DateFrom, p.DateTo = p.DateTo, p.DateFrom
	_, err := svc.BuildReport(context.Background(), p)
	require.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Zero(t, ds.searchCalls)
	assert.Zero(t, ds.pageCalls)
}

func TestBuildReportPartnerGrouping(t *testing.T) {
	ds := endToEndFake()
	p := baseParams()
	p.GroupedBy = GroupingPartners
	p.PartnerIDs = []int64{7, 8}
	report, err := newTestService(ds).BuildReport(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, report.FilterPartnerIDs)
	receivables := report.Accounts[0]
	require.Equal(t, int64(100), receivables.ID)
	require.Len(t, receivables.Groups, 2)
	// Every line lands in exactly one group keyed by its partner.
	for _, g := range receivables.Groups {
		for _, line := range g.Lines {
			assert.Equal(t, g.Key, line.PartnerID)
		}
	}
}

func TestBuildReportCentralize(t *testing.T) {
	ds := endToEndFake()
	ds.accounts[100] = AccountInfo{ID: 100, Code: "1200", Name: "Receivables", Centralized: true}
	p := baseParams()
	p.Centralize = true
	report, err := newTestService(ds).BuildReport(context.Background(), p)
	require.NoError(t, err)

	receivables := report.Accounts[0]
	// January lines in two journals collapse into two synthetic lines.
	require.Len(t, receivables.Lines, 2)
	for _, line := range receivables.Lines {
		assert.Equal(t, "Centralized entries", line.RefLabel)
		assert.Equal(t, date(2024, time.January, 31), line.Date)
	}
	// Expenses account is not flagged centralized: untouched.
	assert.Equal(t, "BILL/001", report.Accounts[1].Lines[0].Entry)
}

type runRecorder struct {
	pages int
	lines int
	runs  int
	errs  int
}

func (r *runRecorder) ObservePage(lines int) {
	r.pages++
	r.lines += lines
}

func (r *runRecorder) ObserveRun(_ time.Duration, _ int, err error) {
	r.runs++
	if err != nil {
		r.errs++
	}
}

func TestBuildReportReportsMetrics(t *testing.T) {
	rec := &runRecorder{}
	svc := newTestService(endToEndFake(), WithMetrics(rec), WithPageSize(2))
	_, err := svc.BuildReport(context.Background(), baseParams())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.runs)
	assert.Equal(t, 0, rec.errs)
	assert.Equal(t, 2, rec.pages)
	assert.Equal(t, 3, rec.lines)
}

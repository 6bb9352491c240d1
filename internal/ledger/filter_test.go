package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCondition(t *testing.T, f Filter, field string) []Condition {
	t.Helper()
	var out []Condition
	for _, c := range f {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

func TestAccountTypeConditionAsymmetry(t *testing.T) {
	// Partner grouping restricts to receivable/payable; tax grouping inverts
	// the operator and looks at every other account.
	assert.Equal(t, OpIn, accountTypeCondition(GroupingNone).Op)
	assert.Equal(t, OpIn, accountTypeCondition(GroupingPartners).Op)
	assert.Equal(t, OpNotIn, accountTypeCondition(GroupingTaxes).Op)
	assert.Equal(t, realAccountTypes, accountTypeCondition(GroupingTaxes).Value)
}

func TestBaseFilterScopes(t *testing.T) {
	p := baseParams()
	p.PartnerIDs = []int64{7}
	p.CostCenterIDs = []int64{3}
	p.OnlyPostedMoves = true
	p.ExtraFilter = Filter{{Field: "journal_id", Op: OpIn, Value: []int64{9}}}

	f := baseFilter(p)
	require.Len(t, findCondition(t, f, "company_id"), 1)
	require.Len(t, findCondition(t, f, "partner_id"), 1)
	states := findCondition(t, f, "move_state")
	require.Len(t, states, 1)
	assert.Equal(t, OpEq, states[0].Op)
	assert.Equal(t, "posted", states[0].Value)
	require.Len(t, findCondition(t, f, "analytic_account_ids"), 1)
	require.Len(t, findCondition(t, f, "journal_id"), 1)
}

func TestBaseFilterDraftScope(t *testing.T) {
	f := baseFilter(baseParams())
	states := findCondition(t, f, "move_state")
	require.Len(t, states, 1)
	assert.Equal(t, OpIn, states[0].Op)
	assert.Equal(t, []string{"posted", "draft"}, states[0].Value)
}

func TestInitialBalanceFilters(t *testing.T) {
	p := baseParams()
	accountIDs := []int64{10, 11}

	bs := initialBalanceSheetFilter(p, accountIDs, false)
	dates := findCondition(t, bs, "date")
	require.Len(t, dates, 1)
	assert.Equal(t, OpLt, dates[0].Op)
	assert.Equal(t, p.DateFrom, dates[0].Value)
	assert.Empty(t, findCondition(t, bs, "account_type"))

	restricted := initialBalanceSheetFilter(p, accountIDs, true)
	require.Len(t, findCondition(t, restricted, "account_type"), 1)

	pl := initialProfitLossFilter(p, accountIDs)
	dates = findCondition(t, pl, "date")
	require.Len(t, dates, 2)
	assert.Equal(t, OpLt, dates[0].Op)
	assert.Equal(t, OpGte, dates[1].Op)
	assert.Equal(t, p.FYStartDate, dates[1].Value)

	prior := priorFYProfitLossFilter(p, accountIDs)
	dates = findCondition(t, prior, "date")
	require.Len(t, dates, 1)
	assert.Equal(t, OpLt, dates[0].Op)
	assert.Equal(t, p.FYStartDate, dates[0].Value)
}

func TestPeriodFilterBoundsAndExclusions(t *testing.T) {
	p := baseParams()
	p.AccountIDs = []int64{5}

	f := periodFilter(p)
	display := findCondition(t, f, "display_type")
	require.Len(t, display, 1)
	assert.Equal(t, OpNotIn, display[0].Op)
	assert.Equal(t, []string{"line_note", "line_section"}, display[0].Value)

	dates := findCondition(t, f, "date")
	require.Len(t, dates, 2)
	assert.Equal(t, OpGte, dates[0].Op)
	assert.Equal(t, date(2024, time.January, 1), dates[0].Value)
	assert.Equal(t, OpLte, dates[1].Op)
	assert.Equal(t, date(2024, time.January, 31), dates[1].Value)

	require.Len(t, findCondition(t, f, "account_id"), 1)
}

func TestRenderFilterSQL(t *testing.T) {
	f := Filter{
		{Field: "company_id", Op: OpEq, Value: int64(1)},
		{Field: "move_state", Op: OpIn, Value: []string{"posted"}},
		{Field: "account_type", Op: OpNotIn, Value: realAccountTypes},
		{Field: "analytic_account_ids", Op: OpIn, Value: []int64{3}},
	}
	var args []any
	where, err := renderFilter(f, movementLineColumns, &args)
	require.NoError(t, err)
	assert.Equal(t, "ml.company_id = $1 AND m.state = ANY($2) AND NOT (a.account_type = ANY($3)) AND ml.analytic_account_ids && $4", where)
	require.Len(t, args, 4)
}

func TestRenderFilterUnknownField(t *testing.T) {
	var args []any
	_, err := renderFilter(Filter{{Field: "nope", Op: OpEq, Value: 1}}, accountColumns, &args)
	require.Error(t, err)
}

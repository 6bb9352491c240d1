package ledger

// Filters are pure data: conjunctions of field/operator/value triples. The
// repository renders them; the builders below never touch the data store.

// Op is a filter comparison operator.
type Op string

const (
	OpEq    Op = "="
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpGte   Op = ">="
	OpIn    Op = "in"
	OpNotIn Op = "not in"
)

// Condition is a single field comparison.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// And returns a new filter with the extra conditions appended.
func (f Filter) And(conds ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	out = append(out, conds...)
	return out
}

// receivable/payable account types, the "real" accounts eligible for grouping.
var realAccountTypes = []string{"asset_receivable", "liability_payable"}

// accountTypeCondition restricts to receivable/payable accounts, except for
// taxes grouping which inverts the operator and looks at every other account.
// The inversion is intentional: tax grouping applies to non-partner accounts.
func accountTypeCondition(groupedBy GroupingMode) Condition {
	op := OpIn
	if groupedBy == GroupingTaxes {
		op = OpNotIn
	}
	return Condition{Field: "account_type", Op: op, Value: realAccountTypes}
}

// realAccountsFilter selects the account ids eligible for grouping.
func realAccountsFilter(companyID int64, groupedBy GroupingMode) Filter {
	f := Filter{}
	if companyID != 0 {
		f = f.And(Condition{Field: "company_id", Op: OpEq, Value: companyID})
	}
	return f.And(accountTypeCondition(groupedBy))
}

// baseFilter applies the scopes shared by every movement-line selection:
// company, partner, posted/draft state, cost centers and any extra filter.
func baseFilter(p ReportParams) Filter {
	f := Filter{}
	if p.CompanyID != 0 {
		f = f.And(Condition{Field: "company_id", Op: OpEq, Value: p.CompanyID})
	}
	if len(p.PartnerIDs) > 0 {
		f = f.And(Condition{Field: "partner_id", Op: OpIn, Value: p.PartnerIDs})
	}
	if p.OnlyPostedMoves {
		f = f.And(Condition{Field: "move_state", Op: OpEq, Value: "posted"})
	} else {
		f = f.And(Condition{Field: "move_state", Op: OpIn, Value: []string{"posted", "draft"}})
	}
	if len(p.CostCenterIDs) > 0 {
		f = f.And(Condition{Field: "analytic_account_ids", Op: OpIn, Value: p.CostCenterIDs})
	}
	return f.And(p.ExtraFilter...)
}

// initialBalanceAccountsFilter selects the accounts feeding one of the two
// initial-balance selections, by their include-in-initial-balance flag.
func initialBalanceAccountsFilter(p ReportParams, includeInitialBalance bool) Filter {
	f := Filter{}
	if p.CompanyID != 0 {
		f = f.And(Condition{Field: "company_id", Op: OpEq, Value: p.CompanyID})
	}
	f = f.And(Condition{Field: "include_initial_balance", Op: OpEq, Value: includeInitialBalance})
	if len(p.AccountIDs) > 0 {
		f = f.And(Condition{Field: "id", Op: OpIn, Value: p.AccountIDs})
	}
	return f
}

// initialBalanceSheetFilter selects pre-period lines of balance-sheet
// accounts. With restrictTypes the account-type condition is appended, used
// for the grouped initial aggregation.
func initialBalanceSheetFilter(p ReportParams, accountIDs []int64, restrictTypes bool) Filter {
	f := baseFilter(p).And(
		Condition{Field: "date", Op: OpLt, Value: p.DateFrom},
		Condition{Field: "account_id", Op: OpIn, Value: accountIDs},
	)
	if restrictTypes {
		f = f.And(accountTypeCondition(p.GroupedBy))
	}
	return f
}

// initialProfitLossFilter selects current-fiscal-year lines of profit/loss
// accounts dated in [fy_start_date, date_from).
func initialProfitLossFilter(p ReportParams, accountIDs []int64) Filter {
	return baseFilter(p).And(
		Condition{Field: "date", Op: OpLt, Value: p.DateFrom},
		Condition{Field: "date", Op: OpGte, Value: p.FYStartDate},
		Condition{Field: "account_id", Op: OpIn, Value: accountIDs},
	)
}

// priorFYProfitLossFilter selects profit/loss lines of already-closed fiscal
// years, feeding the unaffected-earnings rollover.
func priorFYProfitLossFilter(p ReportParams, accountIDs []int64) Filter {
	return baseFilter(p).And(
		Condition{Field: "date", Op: OpLt, Value: p.FYStartDate},
		Condition{Field: "account_id", Op: OpIn, Value: accountIDs},
	)
}

// periodFilter selects the in-period movement lines. Note and section lines
// never carry amounts and are excluded at the source.
func periodFilter(p ReportParams) Filter {
	f := Filter{
		{Field: "display_type", Op: OpNotIn, Value: []string{"line_note", "line_section"}},
		{Field: "date", Op: OpGte, Value: p.DateFrom},
		{Field: "date", Op: OpLte, Value: p.DateTo},
	}
	if len(p.AccountIDs) > 0 {
		f = f.And(Condition{Field: "account_id", Op: OpIn, Value: p.AccountIDs})
	}
	return f.And(baseFilter(p)...)
}

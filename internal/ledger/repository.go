package ledger

import (
	"fmt"
	"strings"
)

// column maps a filter field to its SQL expression. Array columns use overlap
// semantics for the in operator.
type column struct {
	expr  string
	array bool
}

// movement-line queries join moves, accounts, partners, taxes and
// reconciliations, so filter fields resolve against the aliased columns.
var movementLineColumns = map[string]column{
	"company_id":           {expr: "ml.company_id"},
	"partner_id":           {expr: "ml.partner_id"},
	"account_id":           {expr: "ml.account_id"},
	"date":                 {expr: "ml.date"},
	"display_type":         {expr: "ml.display_type"},
	"move_state":           {expr: "m.state"},
	"account_type":         {expr: "a.account_type"},
	"analytic_account_ids": {expr: "ml.analytic_account_ids", array: true},
}

var accountColumns = map[string]column{
	"id":                      {expr: "a.id"},
	"company_id":              {expr: "a.company_id"},
	"account_type":            {expr: "a.account_type"},
	"include_initial_balance": {expr: "a.include_initial_balance"},
}

// renderFilter turns a pure-data filter into a WHERE fragment with positional
// args appended to dst. An unmapped field is a programming error.
func renderFilter(f Filter, cols map[string]column, dst *[]any) (string, error) {
	if len(f) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(f))
	for _, c := range f {
		col, ok := cols[c.Field]
		if !ok {
			return "", fmt.Errorf("ledger: filter field %q has no column mapping", c.Field)
		}
		*dst = append(*dst, c.Value)
		n := len(*dst)
		switch c.Op {
		case OpEq, OpLt, OpLte, OpGte:
			parts = append(parts, fmt.Sprintf("%s %s $%d", col.expr, c.Op, n))
		case OpIn:
			if col.array {
				parts = append(parts, fmt.Sprintf("%s && $%d", col.expr, n))
			} else {
				parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col.expr, n))
			}
		case OpNotIn:
			if col.array {
				parts = append(parts, fmt.Sprintf("NOT (%s && $%d)", col.expr, n))
			} else {
				parts = append(parts, fmt.Sprintf("NOT (%s = ANY($%d))", col.expr, n))
			}
		default:
			return "", fmt.Errorf("ledger: unsupported filter operator %q", c.Op)
		}
	}
	return strings.Join(parts, " AND "), nil
}

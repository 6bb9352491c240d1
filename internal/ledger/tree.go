package ledger

import (
	"fmt"
	"sort"
)

// futureReconcilePrefix marks lines whose reconciliation settles after the
// period end.
const futureReconcilePrefix = "(future) "

// assembleTree turns the raw working set into the ordered account list. Lines
// are sorted by date then entry reference, cumulative balances folded from
// each node's initial balance, future reconciliations marked, and zero
// accounts/groups suppressed when requested. Accounts come out sorted by code.
func assembleTree(data ledgerData, res *periodResult, p ReportParams) ([]AccountNode, error) {
	rounding := p.rounding()
	nodes := make([]AccountNode, 0, len(data))
	for accountID, e := range data {
		info, ok := res.accounts[accountID]
		if !ok {
			return nil, fmt.Errorf("%w: account %d", ErrUnknownAccount, accountID)
		}
		node := AccountNode{
			ID:          accountID,
			Code:        info.Code,
			Name:        info.Name,
			CurrencyID:  info.CurrencyID,
			Centralized: info.Centralized,
			Initial:     e.initial,
			Final:       e.final,
		}

		if len(e.groups) == 0 {
			node.Lines = finalizeLines(e.lines, e.initial.Balance, res.futureReconcileIDs)
			if p.HideAccountAt0 && isZero(e.initial.Balance, rounding) && len(node.Lines) == 0 {
				continue
			}
			nodes = append(nodes, node)
			continue
		}

		node.GroupedBy = p.GroupedBy
		groups, err := buildGroups(e, res, p, rounding)
		if err != nil {
			return nil, err
		}
		if p.HideAccountAt0 && isZero(e.initial.Balance, rounding) && len(groups) == 0 && len(e.lines) == 0 {
			continue
		}
		node.Groups = groups
		// Lines collected outside the grouped accounts set stay on the node.
		node.Lines = finalizeLines(e.lines, e.initial.Balance, res.futureReconcileIDs)
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	return nodes, nil
}

// buildGroups finalizes the per-key groups of one account in deterministic
// name order, resolving tax display labels and dropping zero groups when
// suppression is on.
func buildGroups(e *ledgerEntry, res *periodResult, p ReportParams, rounding float64) ([]GroupNode, error) {
	keys := make([]int64, 0, len(e.groups))
	for key := range e.groups {
		keys = append(keys, key)
	}
	groups := make([]GroupNode, 0, len(keys))
	for _, key := range keys {
		g := e.groups[key]
		name := g.name
		if p.GroupedBy == GroupingTaxes && key != MissingGroupKey {
			tax, ok := res.taxes[key]
			if !ok {
				return nil, fmt.Errorf("%w: tax %d", ErrUnknownTax, key)
			}
			name = tax.Label
		}
		if name == "" {
			name = missingGroupName(p.GroupedBy)
		}
		lines := finalizeLines(g.lines, g.init.Balance, res.futureReconcileIDs)
		if p.HideAccountAt0 && isZero(g.init.Balance, rounding) && len(lines) == 0 {
			continue
		}
		groups = append(groups, GroupNode{
			Key:     key,
			Name:    name,
			Initial: g.init,
			Final:   g.final,
			Lines:   lines,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].Key < groups[j].Key
	})
	return groups, nil
}

// finalizeLines orders lines by date then entry reference and folds the
// cumulative balance: cumulative(i) = initial + sum of deltas up to i.
func finalizeLines(lines []MovementLine, initialBalance float64, future map[int64]struct{}) []MovementLine {
	if len(lines) == 0 {
		return nil
	}
	sortLines(lines)
	recalculateCumulative(lines, initialBalance, future)
	return lines
}

func sortLines(lines []MovementLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].Entry < lines[j].Entry
	})
}

// recalculateCumulative runs the cumulative fold over already-sorted lines
// and prefixes the reconciliation label of future-settling lines.
func recalculateCumulative(lines []MovementLine, last float64, future map[int64]struct{}) {
	for i := range lines {
		last += lines[i].Balance
		lines[i].Cumulative = last
		if _, ok := future[lines[i].ReconcileID]; ok && lines[i].ReconcileID != 0 {
			lines[i].ReconcileName = futureReconcilePrefix + lines[i].ReconcileName
		}
	}
}

package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPeriodResult() *periodResult {
	return &periodResult{
		accounts: map[int64]AccountInfo{
			100: {ID: 100, Code: "1200", Name: "Receivables"},
			600: {ID: 600, Code: "6000", Name: "Expenses"},
		},
		taxes:              map[int64]TaxInfo{21: {ID: 21, Label: "VAT (21%)"}},
		futureReconcileIDs: map[int64]struct{}{300: {}},
	}
}

func TestAssembleTreeCumulativeFold(t *testing.T) {
	// Init balance 100; debit 50 on Jan 10, credit 20 on Jan 20: cumulative
	// runs 150 then 130 and the final balance matches the last cumulative.
	data := ledgerData{
		100: {
			accountID: 100,
			initial:   BalanceBucket{Debit: 100, Balance: 100},
			final:     BalanceBucket{Debit: 150, Credit: 20, Balance: 130},
			lines: []MovementLine{
				{ID: 2, Date: date(2024, time.January, 20), Entry: "INV/002", Credit: 20, Balance: -20},
				{ID: 1, Date: date(2024, time.January, 10), Entry: "INV/001", Debit: 50, Balance: 50},
			},
		},
	}
	nodes, err := assembleTree(data, testPeriodResult(), baseParams())
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	node := nodes[0]
	require.Len(t, node.Lines, 2)
	assert.Equal(t, int64(1), node.Lines[0].ID)
	assert.InDelta(t, 150, node.Lines[0].Cumulative, 1e-9)
	assert.InDelta(t, 130, node.Lines[1].Cumulative, 1e-9)
	assert.InDelta(t, node.Final.Balance, node.Lines[1].Cumulative, 1e-9)
}

func TestAssembleTreeOrdersLinesByDateThenEntry(t *testing.T) {
	sameDay := date(2024, time.January, 10)
	data := ledgerData{
		100: {
			accountID: 100,
			lines: []MovementLine{
				{ID: 2, Date: sameDay, Entry: "INV/002", Balance: 1},
				{ID: 1, Date: sameDay, Entry: "INV/001", Balance: 1},
			},
		},
	}
	nodes, err := assembleTree(data, testPeriodResult(), baseParams())
	require.NoError(t, err)
	assert.Equal(t, "INV/001", nodes[0].Lines[0].Entry)
	assert.Equal(t, "INV/002", nodes[0].Lines[1].Entry)
}

func TestAssembleTreeFutureReconcileMarker(t *testing.T) {
	data := ledgerData{
		100: {
			accountID: 100,
			lines: []MovementLine{
				{ID: 1, Date: date(2024, time.January, 10), ReconcileID: 300, ReconcileName: "A300"},
				{ID: 2, Date: date(2024, time.January, 12), ReconcileID: 301, ReconcileName: "A301"},
			},
		},
	}
	nodes, err := assembleTree(data, testPeriodResult(), baseParams())
	require.NoError(t, err)
	assert.Equal(t, "(future) A300", nodes[0].Lines[0].ReconcileName)
	assert.Equal(t, "A301", nodes[0].Lines[1].ReconcileName)
}

func TestAssembleTreeZeroHiding(t *testing.T) {
	makeData := func() ledgerData {
		return ledgerData{
			100: {accountID: 100}, // zero balance, no lines
			600: {
				accountID: 600,
				initial:   BalanceBucket{Balance: 10},
				final:     BalanceBucket{Balance: 10},
			},
		}
	}

	p := baseParams()
	p.HideAccountAt0 = true
	nodes, err := assembleTree(makeData(), testPeriodResult(), p)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, int64(600), nodes[0].ID)

	p.HideAccountAt0 = false
	nodes, err = assembleTree(makeData(), testPeriodResult(), p)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestAssembleTreeSortsByAccountCode(t *testing.T) {
	data := ledgerData{
		600: {accountID: 600, initial: BalanceBucket{Balance: 1}},
		100: {accountID: 100, initial: BalanceBucket{Balance: 1}},
	}
	nodes, err := assembleTree(data, testPeriodResult(), baseParams())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "1200", nodes[0].Code)
	assert.Equal(t, "6000", nodes[1].Code)
}

func TestAssembleTreeGroupedAccount(t *testing.T) {
	data := ledgerData{
		100: {
			accountID: 100,
			initial:   BalanceBucket{Balance: 30},
			grouped:   true,
			groups: map[int64]*groupEntry{
				7: {
					key: 7, name: "Acme",
					init:  BalanceBucket{Balance: 30},
					final: BalanceBucket{Balance: 80},
					lines: []MovementLine{
						{ID: 1, Date: date(2024, time.January, 10), Balance: 50},
					},
				},
				0: {key: 0}, // sentinel with nothing in it
			},
		},
	}
	p := baseParams()
	p.GroupedBy = GroupingPartners
	p.HideAccountAt0 = true
	nodes, err := assembleTree(data, testPeriodResult(), p)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	node := nodes[0]
	assert.Equal(t, GroupingPartners, node.GroupedBy)
	// The empty sentinel group is suppressed, the real one folded.
	require.Len(t, node.Groups, 1)
	group := node.Groups[0]
	assert.Equal(t, "Acme", group.Name)
	require.Len(t, group.Lines, 1)
	assert.InDelta(t, 80, group.Lines[0].Cumulative, 1e-9)
}

func TestAssembleTreeTaxGroupLabels(t *testing.T) {
	data := ledgerData{
		100: {
			accountID: 100,
			grouped:   true,
			groups: map[int64]*groupEntry{
				21: {key: 21, init: BalanceBucket{Balance: 5}},
				0:  {key: 0, init: BalanceBucket{Balance: 3}},
			},
		},
	}
	p := baseParams()
	p.GroupedBy = GroupingTaxes
	nodes, err := assembleTree(data, testPeriodResult(), p)
	require.NoError(t, err)
	require.Len(t, nodes[0].Groups, 2)
	byKey := map[int64]GroupNode{}
	for _, g := range nodes[0].Groups {
		byKey[g.Key] = g
	}
	assert.Equal(t, "VAT (21%)", byKey[21].Name)
	assert.Equal(t, "Missing Tax", byKey[0].Name)
}

func TestAssembleTreeUnknownAccountFailsLoudly(t *testing.T) {
	data := ledgerData{42: {accountID: 42}}
	_, err := assembleTree(data, testPeriodResult(), baseParams())
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestAssembleTreeUnknownTaxFailsLoudly(t *testing.T) {
	data := ledgerData{
		100: {
			accountID: 100,
			grouped:   true,
			groups:    map[int64]*groupEntry{99: {key: 99, init: BalanceBucket{Balance: 1}}},
		},
	}
	p := baseParams()
	p.GroupedBy = GroupingTaxes
	_, err := assembleTree(data, testPeriodResult(), p)
	require.ErrorIs(t, err, ErrUnknownTax)
}

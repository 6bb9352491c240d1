package ledger

// ledgerData is the mutable working set of one report run: per-account
// accumulation entries keyed by account id. It is owned by a single run and
// written by a single goroutine (see processPeriod).
type ledgerData map[int64]*ledgerEntry

// ledgerEntry accumulates one account's buckets, lines and optional groups
// while batches stream in. It is finalized exactly once by the tree builder.
type ledgerEntry struct {
	accountID int64
	initial   BalanceBucket
	final     BalanceBucket
	grouped   bool
	lines     []MovementLine
	groups    map[int64]*groupEntry
}

// groupEntry accumulates one partner/tax bucket under an account.
type groupEntry struct {
	key   int64
	name  string
	init  BalanceBucket
	final BalanceBucket
	lines []MovementLine
}

// ensure returns the entry for an account, creating it with zero buckets.
func (d ledgerData) ensure(accountID int64) *ledgerEntry {
	e, ok := d[accountID]
	if !ok {
		e = &ledgerEntry{accountID: accountID}
		d[accountID] = e
	}
	return e
}

// ensureGroup returns the group for a key, creating it with zero buckets.
// The name is kept from the first non-empty value seen.
func (e *ledgerEntry) ensureGroup(key int64, name string) *groupEntry {
	if e.groups == nil {
		e.groups = make(map[int64]*groupEntry)
	}
	g, ok := e.groups[key]
	if !ok {
		g = &groupEntry{key: key, name: name}
		e.groups[key] = g
	} else if g.name == "" && name != "" {
		g.name = name
	}
	return g
}

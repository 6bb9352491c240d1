package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDataSource implements DataSource against PostgreSQL.
type PGDataSource struct {
	pool *pgxpool.Pool
}

// NewPGDataSource constructs the PostgreSQL data source.
func NewPGDataSource(pool *pgxpool.Pool) *PGDataSource {
	return &PGDataSource{pool: pool}
}

const movementLineJoins = `
FROM gl_move_lines ml
JOIN gl_moves m ON m.id = ml.move_id
JOIN gl_accounts a ON a.id = ml.account_id
LEFT JOIN partners p ON p.id = ml.partner_id
LEFT JOIN gl_full_reconciles fr ON fr.id = ml.full_reconcile_id`

// SearchAccounts resolves account ids matching an account-level filter.
func (r *PGDataSource) SearchAccounts(ctx context.Context, f Filter) ([]int64, error) {
	var args []any
	where, err := renderFilter(f, accountColumns, &args)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT a.id FROM gl_accounts a WHERE `+where+` ORDER BY a.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: search accounts: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AggregateByAccount sums debit/credit/balance/currency per account.
func (r *PGDataSource) AggregateByAccount(ctx context.Context, f Filter) ([]AccountAggregate, error) {
	var args []any
	where, err := renderFilter(f, movementLineColumns, &args)
	if err != nil {
		return nil, err
	}
	query := `SELECT ml.account_id,
	COALESCE(SUM(ml.debit), 0), COALESCE(SUM(ml.credit), 0),
	COALESCE(SUM(ml.balance), 0), COALESCE(SUM(ml.amount_currency), 0)` +
		movementLineJoins + `
WHERE ` + where + `
GROUP BY ml.account_id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: aggregate by account: %w", err)
	}
	defer rows.Close()
	var out []AccountAggregate
	for rows.Next() {
		var agg AccountAggregate
		if err := rows.Scan(&agg.AccountID, &agg.Bucket.Debit, &agg.Bucket.Credit, &agg.Bucket.Balance, &agg.Bucket.CurrencyBalance); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// AggregateByAccountPartner sums per account and partner; missing partners
// land on key 0.
func (r *PGDataSource) AggregateByAccountPartner(ctx context.Context, f Filter) ([]GroupAggregate, error) {
	var args []any
	where, err := renderFilter(f, movementLineColumns, &args)
	if err != nil {
		return nil, err
	}
	query := `SELECT ml.account_id, COALESCE(ml.partner_id, 0), COALESCE(p.name, ''),
	COALESCE(SUM(ml.debit), 0), COALESCE(SUM(ml.credit), 0),
	COALESCE(SUM(ml.balance), 0), COALESCE(SUM(ml.amount_currency), 0)` +
		movementLineJoins + `
WHERE ` + where + `
GROUP BY ml.account_id, COALESCE(ml.partner_id, 0), COALESCE(p.name, '')`
	return r.scanGroupAggregates(ctx, query, args)
}

// AggregateByAccountTaxLine sums per account and originating tax line;
// untaxed lines land on key 0.
func (r *PGDataSource) AggregateByAccountTaxLine(ctx context.Context, f Filter) ([]GroupAggregate, error) {
	var args []any
	where, err := renderFilter(f, movementLineColumns, &args)
	if err != nil {
		return nil, err
	}
	query := `SELECT ml.account_id, COALESCE(ml.tax_line_id, 0), COALESCE(t.name, ''),
	COALESCE(SUM(ml.debit), 0), COALESCE(SUM(ml.credit), 0),
	COALESCE(SUM(ml.balance), 0), COALESCE(SUM(ml.amount_currency), 0)` +
		movementLineJoins + `
LEFT JOIN gl_taxes t ON t.id = ml.tax_line_id
WHERE ` + where + `
GROUP BY ml.account_id, COALESCE(ml.tax_line_id, 0), COALESCE(t.name, '')`
	return r.scanGroupAggregates(ctx, query, args)
}

func (r *PGDataSource) scanGroupAggregates(ctx context.Context, query string, args []any) ([]GroupAggregate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: aggregate by group: %w", err)
	}
	defer rows.Close()
	var out []GroupAggregate
	for rows.Next() {
		var agg GroupAggregate
		if err := rows.Scan(&agg.AccountID, &agg.Key, &agg.Name, &agg.Bucket.Debit, &agg.Bucket.Credit, &agg.Bucket.Balance, &agg.Bucket.CurrencyBalance); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// MovementLines fetches one page of in-scope lines. The ordering contract is
// date then entry reference, stable across pages.
func (r *PGDataSource) MovementLines(ctx context.Context, f Filter, limit, offset int) ([]MovementLine, error) {
	var args []any
	where, err := renderFilter(f, movementLineColumns, &args)
	if err != nil {
		return nil, err
	}
	args = append(args, limit, offset)
	query := `SELECT ml.id, ml.date, m.name, ml.move_id, ml.journal_id, ml.account_id,
	COALESCE(ml.partner_id, 0), COALESCE(p.name, ''), COALESCE(ml.ref, ''), COALESCE(ml.name, ''),
	COALESCE(ml.tax_ids, '{}'), COALESCE(ml.tax_line_id, 0),
	ml.debit, ml.credit, ml.balance, ml.amount_currency,
	COALESCE(ml.full_reconcile_id, 0), COALESCE(fr.name, ''),
	COALESCE(ml.currency_id, 0), COALESCE(ml.analytic_distribution, '{}')` +
		movementLineJoins + `
WHERE ` + where + `
ORDER BY ml.date, m.name, ml.id
LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: fetch movement lines: %w", err)
	}
	defer rows.Close()
	var out []MovementLine
	for rows.Next() {
		var ml MovementLine
		var analyticRaw []byte
		if err := rows.Scan(&ml.ID, &ml.Date, &ml.Entry, &ml.EntryID, &ml.JournalID, &ml.AccountID,
			&ml.PartnerID, &ml.PartnerName, &ml.Ref, &ml.Name,
			&ml.TaxIDs, &ml.TaxLineID,
			&ml.Debit, &ml.Credit, &ml.Balance, &ml.CurrencyBalance,
			&ml.ReconcileID, &ml.ReconcileName,
			&ml.CurrencyID, &analyticRaw); err != nil {
			return nil, err
		}
		ml.RefLabel = ComposeRefLabel(ml.Ref, ml.Name)
		if ml.Analytic, err = decodeAnalytic(analyticRaw); err != nil {
			return nil, fmt.Errorf("ledger: line %d analytic distribution: %w", ml.ID, err)
		}
		out = append(out, ml)
	}
	return out, rows.Err()
}

// decodeAnalytic converts the stored JSON distribution (string keys) into the
// typed id-to-percentage map. Percentages need not sum to 100.
func decodeAnalytic(raw []byte) (map[int64]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var byName map[string]float64
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, err
	}
	if len(byName) == 0 {
		return nil, nil
	}
	out := make(map[int64]float64, len(byName))
	for key, pct := range byName {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("analytic key %q: %w", key, err)
		}
		out[id] = pct
	}
	return out, nil
}

// ReconciliationsAfter returns the reconciliation ids whose maximum
// settlement date falls strictly after the given date.
func (r *PGDataSource) ReconciliationsAfter(ctx context.Context, ids []int64, after time.Time) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT pr.full_reconcile_id
FROM gl_partial_reconciles pr
WHERE pr.full_reconcile_id = ANY($1) AND pr.max_date > $2`, ids, after)
	if err != nil {
		return nil, fmt.Errorf("ledger: reconciliations after: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AccountsByID resolves account display metadata.
func (r *PGDataSource) AccountsByID(ctx context.Context, ids []int64) (map[int64]AccountInfo, error) {
	out := make(map[int64]AccountInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, COALESCE(a.currency_id, 0), a.centralized
FROM gl_accounts a WHERE a.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: accounts by id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var info AccountInfo
		if err := rows.Scan(&info.ID, &info.Code, &info.Name, &info.CurrencyID, &info.Centralized); err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}

// JournalsByID resolves journal display metadata.
func (r *PGDataSource) JournalsByID(ctx context.Context, ids []int64) (map[int64]JournalInfo, error) {
	out := make(map[int64]JournalInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT j.id, j.code, j.name FROM gl_journals j WHERE j.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: journals by id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var info JournalInfo
		if err := rows.Scan(&info.ID, &info.Code, &info.Name); err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}

// TaxesByID resolves tax display metadata including the composite label.
func (r *PGDataSource) TaxesByID(ctx context.Context, ids []int64) (map[int64]TaxInfo, error) {
	out := make(map[int64]TaxInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.amount, t.amount_type, t.name FROM gl_taxes t WHERE t.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: taxes by id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var info TaxInfo
		if err := rows.Scan(&info.ID, &info.Amount, &info.AmountType, &info.Name); err != nil {
			return nil, err
		}
		info.Label = TaxLabel(info)
		out[info.ID] = info
	}
	return out, rows.Err()
}

// TaxLabel renders the "name (amount%)" composite shown on grouped rows. The
// percent suffix only applies to percent and division amount types.
func TaxLabel(t TaxInfo) string {
	suffix := ""
	if t.AmountType == "percent" || t.AmountType == "division" {
		suffix = "%"
	}
	return t.Name + " (" + strconv.FormatFloat(t.Amount, 'f', -1, 64) + suffix + ")"
}

// AnalyticAccountsByID resolves analytic account names.
func (r *PGDataSource) AnalyticAccountsByID(ctx context.Context, ids []int64) (map[int64]AnalyticInfo, error) {
	out := make(map[int64]AnalyticInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT aa.id, aa.name FROM gl_analytic_accounts aa WHERE aa.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: analytic accounts by id: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var info AnalyticInfo
		if err := rows.Scan(&info.ID, &info.Name); err != nil {
			return nil, err
		}
		out[info.ID] = info
	}
	return out, rows.Err()
}

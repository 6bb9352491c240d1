package ledger

import (
	"errors"
	"math"
	"time"
)

// GroupingMode selects how movement lines are grouped under an account.
type GroupingMode string

const (
	GroupingNone     GroupingMode = ""
	GroupingPartners GroupingMode = "partners"
	GroupingTaxes    GroupingMode = "taxes"
)

// MissingGroupKey is the sentinel group key for lines without a partner or tax.
const MissingGroupKey int64 = 0

// DefaultRounding is the currency rounding used when none is configured.
const DefaultRounding = 0.01

var (
	// ErrInvalidDateRange indicates date_from is after date_to.
	ErrInvalidDateRange = errors.New("ledger: date_from after date_to")
	// ErrInvalidGrouping indicates an unknown grouping mode.
	ErrInvalidGrouping = errors.New("ledger: invalid grouping mode")
	// ErrInvalidFiscalYearStart indicates fy_start_date is after date_from.
	ErrInvalidFiscalYearStart = errors.New("ledger: fiscal year start after date_from")
	// ErrUnknownAccount indicates a movement line referenced an account missing
	// from the resolved reference tables.
	ErrUnknownAccount = errors.New("ledger: movement line references unknown account")
	// ErrUnknownTax indicates a grouped tax key missing from the tax table.
	ErrUnknownTax = errors.New("ledger: group references unknown tax")
)

// ReportParams carries the parameters of one report run. It is treated as
// immutable for the duration of the run.
type ReportParams struct {
	CompanyID                   int64
	DateFrom                    time.Time
	DateTo                      time.Time
	FYStartDate                 time.Time
	AccountIDs                  []int64
	PartnerIDs                  []int64
	CostCenterIDs               []int64
	GroupedBy                   GroupingMode
	ForeignCurrency             bool
	OnlyPostedMoves             bool
	HideAccountAt0              bool
	Centralize                  bool
	UnaffectedEarningsAccountID int64
	ExtraFilter                 Filter
	Rounding                    float64
}

// Validate checks the parameters before any aggregation begins.
func (p ReportParams) Validate() error {
	if p.DateFrom.IsZero() || p.DateTo.IsZero() {
		return ErrInvalidDateRange
	}
	if p.DateFrom.After(p.DateTo) {
		return ErrInvalidDateRange
	}
	if !p.FYStartDate.IsZero() && p.FYStartDate.After(p.DateFrom) {
		return ErrInvalidFiscalYearStart
	}
	switch p.GroupedBy {
	case GroupingNone, GroupingPartners, GroupingTaxes:
	default:
		return ErrInvalidGrouping
	}
	return nil
}

// rounding returns the configured currency rounding or the default.
func (p ReportParams) rounding() float64 {
	if p.Rounding > 0 {
		return p.Rounding
	}
	return DefaultRounding
}

// isZero reports whether an amount is zero within the currency rounding.
// Exact floating comparison is never used for suppression decisions.
func isZero(v, rounding float64) bool {
	if rounding <= 0 {
		rounding = DefaultRounding
	}
	return math.Abs(v) < rounding/2
}

// BalanceBucket accumulates debit, credit, balance and foreign-currency
// amounts. Balance is summed independently and reconciles with debit-credit
// within rounding tolerance.
type BalanceBucket struct {
	Debit           float64 `json:"debit"`
	Credit          float64 `json:"credit"`
	Balance         float64 `json:"balance"`
	CurrencyBalance float64 `json:"currency_balance"`
}

// Add accumulates one movement into the bucket.
func (b *BalanceBucket) Add(debit, credit, balance, currency float64) {
	b.Debit += debit
	b.Credit += credit
	b.Balance += balance
	b.CurrencyBalance += currency
}

// Merge adds another bucket into the receiver.
func (b *BalanceBucket) Merge(o BalanceBucket) {
	b.Debit += o.Debit
	b.Credit += o.Credit
	b.Balance += o.Balance
	b.CurrencyBalance += o.CurrencyBalance
}

// MovementLine is a read-only snapshot of one ledger entry line. The pipeline
// only ever writes Cumulative and the "(future) " prefix on ReconcileName.
type MovementLine struct {
	ID              int64             `json:"id"`
	Date            time.Time         `json:"date"`
	Entry           string            `json:"entry"`
	EntryID         int64             `json:"entry_id"`
	JournalID       int64             `json:"journal_id"`
	AccountID       int64             `json:"account_id"`
	PartnerID       int64             `json:"partner_id"`
	PartnerName     string            `json:"partner_name"`
	Ref             string            `json:"ref"`
	Name            string            `json:"name"`
	RefLabel        string            `json:"ref_label"`
	TaxIDs          []int64           `json:"tax_ids"`
	TaxLineID       int64             `json:"tax_line_id"`
	Debit           float64           `json:"debit"`
	Credit          float64           `json:"credit"`
	Balance         float64           `json:"balance"`
	CurrencyBalance float64           `json:"currency_balance"`
	Cumulative      float64           `json:"cumulative"`
	ReconcileID     int64             `json:"reconcile_id"`
	ReconcileName   string            `json:"reconcile_name"`
	CurrencyID      int64             `json:"currency_id"`
	Analytic        map[int64]float64 `json:"analytic_distribution,omitempty"`
}

// ComposeRefLabel builds the display label from a line's ref and name the way
// the report shows it: the name alone when ref is empty or redundant.
func ComposeRefLabel(ref, name string) string {
	if ref == "" || ref == name {
		return name
	}
	return ref + " - " + name
}

// GroupNode is one partner/tax bucket under an account.
type GroupNode struct {
	Key     int64          `json:"key"`
	Name    string         `json:"name"`
	Initial BalanceBucket  `json:"initial"`
	Final   BalanceBucket  `json:"final"`
	Lines   []MovementLine `json:"lines"`
}

// AccountNode is one account of the assembled ledger tree. Either Lines or
// Groups is populated, never both.
type AccountNode struct {
	ID          int64          `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	CurrencyID  int64          `json:"currency_id"`
	Centralized bool           `json:"centralized"`
	GroupedBy   GroupingMode   `json:"grouped_by,omitempty"`
	Initial     BalanceBucket  `json:"initial"`
	Final       BalanceBucket  `json:"final"`
	Lines       []MovementLine `json:"lines,omitempty"`
	Groups      []GroupNode    `json:"groups,omitempty"`
}

// AccountInfo is display metadata for an account.
type AccountInfo struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	CurrencyID  int64  `json:"currency_id"`
	Centralized bool   `json:"centralized"`
}

// JournalInfo is display metadata for a journal.
type JournalInfo struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// TaxInfo is display metadata for a tax. Label is the composite
// "name (amount%)" form rendered on grouped rows.
type TaxInfo struct {
	ID         int64   `json:"id"`
	Amount     float64 `json:"amount"`
	AmountType string  `json:"amount_type"`
	Name       string  `json:"name"`
	Label      string  `json:"label"`
}

// AnalyticInfo is display metadata for an analytic account.
type AnalyticInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Report is the assembled result handed to export adapters.
type Report struct {
	RunID              string                 `json:"run_id"`
	CompanyID          int64                  `json:"company_id"`
	DateFrom           time.Time              `json:"date_from"`
	DateTo             time.Time              `json:"date_to"`
	Accounts           []AccountNode          `json:"accounts"`
	AccountsData       map[int64]AccountInfo  `json:"accounts_data"`
	Journals           map[int64]JournalInfo  `json:"journals"`
	Taxes              map[int64]TaxInfo      `json:"taxes"`
	Analytic           map[int64]AnalyticInfo `json:"analytic"`
	Reconciliations    map[int64]string       `json:"reconciliations"`
	FutureReconcileIDs []int64                `json:"future_reconcile_ids"`
	ForeignCurrency    bool                   `json:"foreign_currency"`
	OnlyPostedMoves    bool                   `json:"only_posted_moves"`
	HideAccountAt0     bool                   `json:"hide_account_at_0"`
	Centralize         bool                   `json:"centralize"`
	GroupedBy          GroupingMode           `json:"grouped_by,omitempty"`
	FilterPartnerIDs   bool                   `json:"filter_partner_ids"`
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DataSource defines the read operations the report needs from the ledger
// store. MovementLines must honour a stable date-then-entry ordering so pages
// concatenate into one ordered stream.
type DataSource interface {
	SearchAccounts(ctx context.Context, f Filter) ([]int64, error)
	AggregateByAccount(ctx context.Context, f Filter) ([]AccountAggregate, error)
	AggregateByAccountPartner(ctx context.Context, f Filter) ([]GroupAggregate, error)
	AggregateByAccountTaxLine(ctx context.Context, f Filter) ([]GroupAggregate, error)
	MovementLines(ctx context.Context, f Filter, limit, offset int) ([]MovementLine, error)
	ReconciliationsAfter(ctx context.Context, ids []int64, after time.Time) ([]int64, error)
	AccountsByID(ctx context.Context, ids []int64) (map[int64]AccountInfo, error)
	JournalsByID(ctx context.Context, ids []int64) (map[int64]JournalInfo, error)
	TaxesByID(ctx context.Context, ids []int64) (map[int64]TaxInfo, error)
	AnalyticAccountsByID(ctx context.Context, ids []int64) (map[int64]AnalyticInfo, error)
}

// RunMetrics receives page/run observations from the service. Implemented by
// observability.ReportMetrics; nil disables instrumentation.
type RunMetrics interface {
	ObservePage(lines int)
	ObserveRun(duration time.Duration, accounts int, err error)
}

// Service computes general ledger reports.
type Service struct {
	ds       DataSource
	logger   *slog.Logger
	metrics  RunMetrics
	pageSize int
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPageSize overrides the movement-line page size.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithMetrics attaches run instrumentation.
func WithMetrics(m RunMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewService constructs a report service.
func NewService(ds DataSource, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ds:       ds,
		logger:   logger,
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildReport runs the full pipeline: initial balances, period accumulation,
// tree assembly and optional centralization. Parameters are validated before
// any aggregation begins.
func (s *Service) BuildReport(ctx context.Context, p ReportParams) (*Report, error) {
	if s == nil || s.ds == nil {
		return nil, fmt.Errorf("ledger: service not initialised")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	start := s.now()
	s.logger.Info("ledger report started",
		slog.String("run_id", runID),
		slog.Int64("company_id", p.CompanyID),
		slog.Time("date_from", p.DateFrom),
		slog.Time("date_to", p.DateTo),
		slog.String("grouped_by", string(p.GroupedBy)),
	)

	report, err := s.buildReport(ctx, p, runID)
	duration := s.now().Sub(start)
	if s.metrics != nil {
		accounts := 0
		if report != nil {
			accounts = len(report.Accounts)
		}
		s.metrics.ObserveRun(duration, accounts, err)
	}
	if err != nil {
		s.logger.Error("ledger report failed",
			slog.String("run_id", runID),
			slog.Duration("duration", duration),
			slog.Any("error", err),
		)
		return nil, err
	}
	s.logger.Info("ledger report finished",
		slog.String("run_id", runID),
		slog.Duration("duration", duration),
		slog.Int("accounts", len(report.Accounts)),
	)
	return report, nil
}

func (s *Service) buildReport(ctx context.Context, p ReportParams, runID string) (*Report, error) {
	data, err := s.computeInitialBalances(ctx, p)
	if err != nil {
		return nil, err
	}
	res, err := s.processPeriod(ctx, p, data)
	if err != nil {
		return nil, err
	}
	nodes, err := assembleTree(data, res, p)
	if err != nil {
		return nil, err
	}
	if p.Centralize {
		for i := range nodes {
			if !nodes[i].Centralized {
				continue
			}
			centralizeAccount(&nodes[i], data[nodes[i].ID].initial.Balance, p.DateTo, res.futureReconcileIDs)
		}
	}

	futureIDs := make([]int64, 0, len(res.futureReconcileIDs))
	for id := range res.futureReconcileIDs {
		futureIDs = append(futureIDs, id)
	}
	sort.Slice(futureIDs, func(i, j int) bool { return futureIDs[i] < futureIDs[j] })

	return &Report{
		RunID:              runID,
		CompanyID:          p.CompanyID,
		DateFrom:           p.DateFrom,
		DateTo:             p.DateTo,
		Accounts:           nodes,
		AccountsData:       res.accounts,
		Journals:           res.journals,
		Taxes:              res.taxes,
		Analytic:           res.analytic,
		Reconciliations:    res.reconciliations,
		FutureReconcileIDs: futureIDs,
		ForeignCurrency:    p.ForeignCurrency,
		OnlyPostedMoves:    p.OnlyPostedMoves,
		HideAccountAt0:     p.HideAccountAt0,
		Centralize:         p.Centralize,
		GroupedBy:          p.GroupedBy,
		FilterPartnerIDs:   len(p.PartnerIDs) > 0,
	}, nil
}

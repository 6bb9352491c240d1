// Package http exposes the general ledger report over HTTP for interactive
// use and for external renderers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/export"
)

// Handler wires the general ledger report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *ledger.Service
	cache     *ledger.Cache
	validate  *validator.Validate
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the report handler. The cache may be nil.
func NewHandler(logger *slog.Logger, service *ledger.Service, cache *ledger.Cache) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		cache:    cache,
		validate: validator.New(),
		rateLimit: httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(
			httprate.KeyByIP,
		)),
	}
}

// MountRoutes registers the report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/finance/gl", h.handleGetReport)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/finance/gl/export.csv", h.handleExportCSV)
	})
}

// reportRequest carries the raw query parameters before conversion.
type reportRequest struct {
	DateFrom           string `validate:"required,datetime=2006-01-02"`
	DateTo             string `validate:"required,datetime=2006-01-02"`
	FYStartDate        string `validate:"omitempty,datetime=2006-01-02"`
	CompanyID          int64  `validate:"omitempty,gt=0"`
	GroupedBy          string `validate:"omitempty,oneof=partners taxes"`
	UnaffectedEarnings int64  `validate:"omitempty,gt=0"`
}

func (h *Handler) parseParams(r *http.Request) (ledger.ReportParams, error) {
	q := r.URL.Query()
	req := reportRequest{
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
		FYStartDate: q.Get("fy_start_date"),
		GroupedBy:   q.Get("grouped_by"),
	}
	var err error
	if req.CompanyID, err = parseID(q.Get("company_id")); err != nil {
		return ledger.ReportParams{}, fmt.Errorf("company_id: %w", err)
	}
	if req.UnaffectedEarnings, err = parseID(q.Get("unaffected_earnings_account_id")); err != nil {
		return ledger.ReportParams{}, fmt.Errorf("unaffected_earnings_account_id: %w", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return ledger.ReportParams{}, err
	}

	params := ledger.ReportParams{
		CompanyID:                   req.CompanyID,
		GroupedBy:                   ledger.GroupingMode(req.GroupedBy),
		UnaffectedEarningsAccountID: req.UnaffectedEarnings,
		ForeignCurrency:             q.Get("foreign_currency") == "1",
		OnlyPostedMoves:             q.Get("only_posted") != "0",
		HideAccountAt0:              q.Get("hide_account_at_0") == "1",
		Centralize:                  q.Get("centralize") == "1",
	}
	params.DateFrom, _ = time.Parse("2006-01-02", req.DateFrom)
	params.DateTo, _ = time.Parse("2006-01-02", req.DateTo)
	if req.FYStartDate != "" {
		params.FYStartDate, _ = time.Parse("2006-01-02", req.FYStartDate)
	} else {
		// Default fiscal year start: January 1st of the period's year.
		params.FYStartDate = time.Date(params.DateFrom.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if params.AccountIDs, err = parseIDList(q.Get("account_ids")); err != nil {
		return ledger.ReportParams{}, fmt.Errorf("account_ids: %w", err)
	}
	if params.PartnerIDs, err = parseIDList(q.Get("partner_ids")); err != nil {
		return ledger.ReportParams{}, fmt.Errorf("partner_ids: %w", err)
	}
	if params.CostCenterIDs, err = parseIDList(q.Get("cost_center_ids")); err != nil {
		return ledger.ReportParams{}, fmt.Errorf("cost_center_ids: %w", err)
	}
	return params, nil
}

func (h *Handler) buildReport(r *http.Request, params ledger.ReportParams) (*ledger.Report, error) {
	if h.cache == nil {
		return h.service.BuildReport(r.Context(), params)
	}
	return h.cache.Fetch(r.Context(), params, func(ctx context.Context) (*ledger.Report, error) {
		return h.service.BuildReport(ctx, params)
	})
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := h.buildReport(r, params)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Error("encode report", slog.Any("error", err))
	}
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := h.buildReport(r, params)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	filename := fmt.Sprintf("general_ledger_%s_%s.csv",
		params.DateFrom.Format("20060102"), params.DateTo.Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteReportCSV(w, report); err != nil {
		h.logger.Error("write report csv", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps pipeline errors onto HTTP statuses: configuration problems
// are the caller's fault, everything else is an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidDateRange),
		errors.Is(err, ledger.ErrInvalidGrouping),
		errors.Is(err, ledger.ErrInvalidFiscalYearStart):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func parseID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

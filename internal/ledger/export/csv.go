// Package export flattens assembled ledger reports into renderer-friendly
// rows. The PDF/XLSX engines live outside this module and consume the same
// shape over HTTP.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

var header = []string{
	"Account", "Group", "Date", "Entry", "Journal", "Partner",
	"Reference", "Reconcile", "Debit", "Credit", "Cumulative",
}

// WriteReportCSV serialises the report tree: one initial-balance row per
// account (and per group), the movement lines in order, then the final
// balance. The foreign-currency column only appears when the run asked for it.
func WriteReportCSV(w io.Writer, report *ledger.Report) error {
	if report == nil {
		return fmt.Errorf("export: nil report")
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	head := header
	if report.ForeignCurrency {
		head = append(append([]string(nil), header...), "Currency Balance")
	}
	if err := writer.Write(head); err != nil {
		return err
	}
	for _, account := range report.Accounts {
		label := account.Code + " " + account.Name
		if err := writeBalanceRow(writer, report, label, "", "Initial balance", account.Initial); err != nil {
			return err
		}
		for _, group := range account.Groups {
			if err := writeBalanceRow(writer, report, label, group.Name, "Initial balance", group.Initial); err != nil {
				return err
			}
			if err := writeLines(writer, report, label, group.Name, group.Lines); err != nil {
				return err
			}
			if err := writeBalanceRow(writer, report, label, group.Name, "Ending balance", group.Final); err != nil {
				return err
			}
		}
		if err := writeLines(writer, report, label, "", account.Lines); err != nil {
			return err
		}
		if err := writeBalanceRow(writer, report, label, "", "Ending balance", account.Final); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeLines(writer *csv.Writer, report *ledger.Report, account, group string, lines []ledger.MovementLine) error {
	for _, line := range lines {
		journal := ""
		if j, ok := report.Journals[line.JournalID]; ok {
			journal = j.Code
		}
		row := []string{
			account,
			group,
			line.Date.Format("2006-01-02"),
			line.Entry,
			journal,
			line.PartnerName,
			line.RefLabel,
			line.ReconcileName,
			formatFloat(line.Debit),
			formatFloat(line.Credit),
			formatFloat(line.Cumulative),
		}
		if report.ForeignCurrency {
			row = append(row, formatFloat(line.CurrencyBalance))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeBalanceRow(writer *csv.Writer, report *ledger.Report, account, group, label string, bucket ledger.BalanceBucket) error {
	row := []string{
		account, group, "", "", "", "", label, "",
		formatFloat(bucket.Debit),
		formatFloat(bucket.Credit),
		formatFloat(bucket.Balance),
	}
	if report.ForeignCurrency {
		row = append(row, formatFloat(bucket.CurrencyBalance))
	}
	return writer.Write(row)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"lending/internal/calendar"
	"lending/internal/money"
	"lending/internal/services"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", ErrUnknownFormat
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Amount is a money cell in minor units.
type Amount int64

type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
	// Footer is appended after the rows, e.g. a total line.
	Footer []any
}

func DailyCollections(report services.DailyCollections) Table {
	t := Table{
		Sheet:   "Collections " + calendar.Format(report.Date),
		Headers: []string{"Date", "Borrower", "Amount", "Balance After", "Late", "Remarks"},
	}
	for _, p := range report.Payments {
		remarks := ""
		if p.Remarks != nil {
			remarks = *p.Remarks
		}
		t.Rows = append(t.Rows, []any{
			calendar.Format(p.PaymentDate), p.BorrowerName,
			Amount(p.AmountPaid), Amount(p.BalanceAfter), yesNo(p.IsLate), remarks,
		})
	}
	t.Footer = []any{"Total", "", Amount(report.Total), "", "", ""}
	return t
}

func OverdueAccounts(accounts []services.OverdueAccount) Table {
	t := Table{
		Sheet:   "Overdue",
		Headers: []string{"Loan", "Borrower", "Due Date", "Days Overdue", "Total Payable", "Remaining"},
	}
	var remaining int64
	for _, a := range accounts {
		t.Rows = append(t.Rows, []any{
			a.Loan.ID, a.Loan.BorrowerName, calendar.Format(a.Loan.DueDate), a.DaysOverdue,
			Amount(a.Loan.TotalPayable), Amount(a.Loan.RemainingBalance),
		})
		remaining += a.Loan.RemainingBalance
	}
	t.Footer = []any{"Total", "", "", "", "", Amount(remaining)}
	return t
}

func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case CSV:
		return WriteCSV(w, t)
	case XLSX:
		return WriteXLSX(w, t)
	}
	return ErrUnknownFormat
}

func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range rowsWithFooter(t) {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = csvCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := t.Sheet
	if sheet == "" {
		sheet = "Report"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, header := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	for r, row := range rowsWithFooter(t) {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if amount, ok := value.(Amount); ok {
				if err := f.SetCellValue(sheet, cell, money.ToDecimal(int64(amount)).InexactFloat64()); err != nil {
					return err
				}
				_ = f.SetCellStyle(sheet, cell, cell, moneyStyle)
				continue
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	_, err = f.WriteTo(w)
	return err
}

func rowsWithFooter(t Table) [][]any {
	if t.Footer == nil {
		return t.Rows
	}
	return append(append([][]any{}, t.Rows...), t.Footer)
}

func csvCell(value any) string {
	switch v := value.(type) {
	case Amount:
		return money.FormatMinor(int64(v))
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

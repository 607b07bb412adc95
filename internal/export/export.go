// Package export produces XLSX workbooks of a month's transactions.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"finanze/internal/core"
	"finanze/internal/store"
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

var headers = []string{
	"Date",
	"Type",
	"Amount",
	"Category",
	"Note",
	"Source",
}

// MonthXLSX returns a workbook with one row per transaction in the month,
// newest first, matching the API's month listing order.
func (s *Service) MonthXLSX(ctx context.Context, userID, monthKey string) ([]byte, error) {
	if !core.ValidMonthKey(monthKey) {
		return nil, core.ErrInvalidMonthKey
	}
	start := time.Now()

	txs, err := s.store.ListTransactionsForMonth(ctx, userID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := monthKey
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, tx := range txs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, tx.Date.Format(time.DateOnly))
		write(2, string(tx.Type))
		write(3, tx.Amount.Units())
		write(4, tx.CategoryID)
		write(5, tx.Note)
		if tx.Source != nil {
			write(6, tx.Source.Kind+":"+tx.Source.SessionID)
		} else {
			write(6, "")
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 10)
	_ = f.SetColWidth(sheet, "C", "C", 14)
	_ = f.SetColWidth(sheet, "D", "D", 22)
	_ = f.SetColWidth(sheet, "E", "E", 48)
	_ = f.SetColWidth(sheet, "F", "F", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	slog.InfoContext(ctx, "Exported month workbook",
		"user_id", userID,
		"month_key", monthKey,
		"rows", len(txs),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

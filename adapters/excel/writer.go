package excel

import (
	"fmt"
	"io"

	"histfit/domain/results"

	"github.com/xuri/excelize/v2"
)

// ResultWriter exports fit and scan records to an xlsx workbook.
type ResultWriter struct{}

// NewResultWriter creates a workbook exporter.
func NewResultWriter() *ResultWriter {
	return &ResultWriter{}
}

// WriteFit writes a "Parameters" sheet with one row per fitted parameter.
func (w *ResultWriter) WriteFit(record *results.FitRecord, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Parameters"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []string{"Parameter", "Value", "Uncertainty", "Fixed", "POI"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}

	for i, p := range record.Parameters {
		row := []interface{}{p.Name, p.Value, p.Uncertainty, p.Fixed, p.IsPOI}
		if err := writeValues(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	summaryRow := len(record.Parameters) + 3
	if err := writeValues(f, sheet, summaryRow, []interface{}{"-2 log L", record.TwoNLL}); err != nil {
		return err
	}
	if err := writeValues(f, sheet, summaryRow+1, []interface{}{"fit id", record.ID.String()}); err != nil {
		return err
	}

	if len(record.Pulls) > 0 {
		if err := w.writePulls(f, record.Pulls); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteScan writes a "Scan" sheet with the profile-likelihood curve.
func (w *ResultWriter) WriteScan(record *results.ScanRecord, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Scan"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := writeRow(f, sheet, 1, []string{record.Parameter, "delta(-2 log L)"}); err != nil {
		return err
	}
	for i, p := range record.Points {
		if err := writeValues(f, sheet, i+2, []interface{}{p.Value, p.DeltaNLL}); err != nil {
			return err
		}
	}

	summaryRow := len(record.Points) + 3
	if err := writeValues(f, sheet, summaryRow, []interface{}{"best fit -2 log L", record.BestFitTwoNLL}); err != nil {
		return err
	}
	if err := writeValues(f, sheet, summaryRow+1, []interface{}{"scan id", record.ID.String()}); err != nil {
		return err
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *ResultWriter) writePulls(f *excelize.File, pulls []results.PullRecord) error {
	const sheet = "Pulls"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add pulls sheet: %w", err)
	}
	if err := writeRow(f, sheet, 1, []string{"Parameter", "Pull"}); err != nil {
		return err
	}
	for i, p := range pulls {
		if err := writeValues(f, sheet, i+2, []interface{}{p.Name, p.Pull}); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return writeValues(f, sheet, row, cells)
}

func writeValues(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

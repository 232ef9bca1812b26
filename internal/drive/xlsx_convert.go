package drive

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/andresuchdata/dairyplan/backend-go/internal/sales"
)

// convertXLSXToCSV rewrites the first sheet of a workbook as CSV, keeping the
// header row so the file parses like any other sales sheet.
func convertXLSXToCSV(xlsxPath, csvPath string) error {
	in, err := os.Open(xlsxPath)
	if err != nil {
		return fmt.Errorf("failed to open xlsx file %s: %w", xlsxPath, err)
	}
	defer in.Close()

	table, err := sales.ReadXLSX(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", xlsxPath, err)
	}

	out, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create csv file %s: %w", csvPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write csv header to %s: %w", csvPath, err)
	}
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row to %s: %w", csvPath, err)
		}
	}
	w.Flush()
	return w.Error()
}

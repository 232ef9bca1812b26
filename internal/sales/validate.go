package sales

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// Column names of a sales table.
const (
	ColDate         = "Date"
	ColCompany      = "Company"
	ColProduct      = "Product"
	ColQuantitySold = "Quantity_Sold"
	ColUnitPrice    = "Unit_Price"
	ColRevenue      = "Revenue"
)

var (
	RequiredColumns   = []string{ColDate, ColProduct, ColQuantitySold, ColUnitPrice}
	SupportedProducts = []string{"Milk", "Butter", "Cheese", "Yogurt", "Ghee", "Paneer", "Ice_Cream", "Curd", "Lassi", "Chocolate"}
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01-02-06",
	"1/2/2006",
}

// Report is the outcome of validating a table. Errors make the table
// unusable; warnings are informational.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks the columns and cell formats of t.
func Validate(t Table) Report {
	rep := Report{Errors: []string{}, Warnings: []string{}}

	var missing []string
	for _, c := range RequiredColumns {
		if t.Column(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		rep.Errors = append(rep.Errors, "Missing required columns: "+strings.Join(missing, ", "))
		return rep
	}

	dateIdx := t.Column(ColDate)
	productIdx := t.Column(ColProduct)
	numeric := []string{ColQuantitySold, ColUnitPrice}

	badDate := false
	badNumber := map[string]bool{}
	negative := map[string]bool{}
	unknown := map[string]bool{}
	var minDate, maxDate time.Time

	for _, row := range t.Rows {
		d, err := parseDate(cell(row, dateIdx))
		if err != nil {
			badDate = true
		} else {
			if minDate.IsZero() || d.Before(minDate) {
				minDate = d
			}
			if d.After(maxDate) {
				maxDate = d
			}
		}
		for _, col := range numeric {
			v, err := parseNumber(cell(row, t.Column(col)))
			if err != nil {
				badNumber[col] = true
				continue
			}
			if v < 0 {
				negative[col] = true
			}
		}
		if p := strings.TrimSpace(cell(row, productIdx)); p != "" && !supported(p) {
			unknown[p] = true
		}
	}

	if badDate {
		rep.Errors = append(rep.Errors, "Date column contains invalid date formats. Please use YYYY-MM-DD format.")
	}
	for _, col := range numeric {
		if badNumber[col] {
			rep.Errors = append(rep.Errors, col+" contains non-numeric values")
		}
		if negative[col] {
			rep.Warnings = append(rep.Warnings, col+" contains negative values")
		}
	}
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for p := range unknown {
			names = append(names, p)
		}
		sort.Strings(names)
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("Unknown products found: %s. Supported products: %s",
			strings.Join(names, ", "), strings.Join(SupportedProducts, ", ")))
	}
	if !badDate && !minDate.IsZero() {
		switch days := int(maxDate.Sub(minDate).Hours() / 24); {
		case days < 30:
			rep.Warnings = append(rep.Warnings, "Dataset covers less than 30 days. More data recommended for better forecasting.")
		case days < 90:
			rep.Warnings = append(rep.Warnings, "Dataset covers less than 90 days. Consider adding more historical data.")
		}
	}

	rep.Valid = len(rep.Errors) == 0
	return rep
}

// Parse converts a table into records. Revenue is derived from quantity and
// price when the column is absent or the cell is empty.
func Parse(t Table) ([]domain.SalesRecord, error) {
	if rep := Validate(t); !rep.Valid {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(rep.Errors, "; "))
	}

	dateIdx := t.Column(ColDate)
	companyIdx := t.Column(ColCompany)
	productIdx := t.Column(ColProduct)
	qtyIdx := t.Column(ColQuantitySold)
	priceIdx := t.Column(ColUnitPrice)
	revenueIdx := t.Column(ColRevenue)

	records := make([]domain.SalesRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		d, _ := parseDate(cell(row, dateIdx))
		qty, _ := parseNumber(cell(row, qtyIdx))
		price, _ := parseNumber(cell(row, priceIdx))

		rec := domain.SalesRecord{
			Date:         domain.Day(d),
			Company:      strings.TrimSpace(cell(row, companyIdx)),
			Product:      strings.TrimSpace(cell(row, productIdx)),
			QuantitySold: qty,
			UnitPrice:    price,
			Revenue:      qty * price,
		}
		if rec.Product == "" {
			return nil, fmt.Errorf("%w: row %d has no product", domain.ErrValidation, i+2)
		}
		if raw := strings.TrimSpace(cell(row, revenueIdx)); raw != "" {
			rev, err := parseNumber(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d revenue %q is not numeric", domain.ErrValidation, i+2, raw)
			}
			rec.Revenue = rev
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func supported(p string) bool {
	for _, s := range SupportedProducts {
		if s == p {
			return true
		}
	}
	return false
}

package google

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"meurenda/internal/core"
)

// Column layout of the export sheet.
const (
	colID = iota
	colOwner
	colDate
	colKind
	colDescription
	colCategory
	colAmount
	colProductCost
)

func headerRow() []any {
	return []any{"ID", "Owner", "Date", "Kind", "Description", "Category", "Amount", "ProductCost"}
}

// buildRow renders a record in column order. Amounts are written as
// numbers so spreadsheet formulas can sum them.
func buildRow(r core.Record, loc *time.Location) []any {
	category := ""
	if r.Kind == core.Expense {
		category = r.CategoryLabel()
	}
	return []any{
		r.ID,
		r.OwnerID,
		r.OccurredAt.In(loc).Format(time.DateOnly),
		string(r.Kind),
		r.Description,
		category,
		r.Amount.Float(),
		r.ProductCost.Float(),
	}
}

// matchRows returns the zero-based indices of rows whose col cell equals
// want, highest index first.
func matchRows(values [][]any, col int, want string) []int {
	want = strings.TrimSpace(want)
	var out []int
	for i, row := range values {
		if col >= len(row) {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[col])) == want {
			out = append(out, i)
		}
	}
	slices.Reverse(out)
	return out
}

// a1Range quotes the sheet name so names with spaces or digits stay valid.
func a1Range(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

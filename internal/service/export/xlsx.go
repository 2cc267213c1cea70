// Package export renders saved filter sets as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/surveillance-api/internal/model"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var fixedColumns = []string{"id", "name", "report_type", "created_at"}

// SavedFiltersWorkbook writes one row per filter set. Parameter names
// become extra columns after the fixed ones, sorted by name.
func SavedFiltersWorkbook(reportTypeID string, sets []model.SavedFilterSet) (*bytes.Buffer, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := SheetName(reportTypeID)
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	params := parameterNames(sets)
	header := append(append([]string{}, fixedColumns...), params...)
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, s := range sets {
		record := []string{s.ID, s.Name, s.ReportTypeID, s.CreatedAt}
		for _, p := range params {
			record = append(record, s.Filters[p])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cell, &record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

// Filename is the attachment name for a report type's export.
func Filename(reportTypeID string) string {
	return fmt.Sprintf("saved_filters_%s.xlsx", strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(reportTypeID))
}

// SheetName strips characters Excel rejects and truncates to 31 characters.
func SheetName(name string) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if len(safe) > 31 {
		safe = safe[:31]
	}
	if safe == "" {
		return "Sheet1"
	}
	return safe
}

func parameterNames(sets []model.SavedFilterSet) []string {
	seen := make(map[string]struct{})
	for _, s := range sets {
		for k := range s.Filters {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

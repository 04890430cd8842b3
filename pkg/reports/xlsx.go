package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary  = "Summary"
	sheetCosts    = "Costs"
	sheetContacts = "Contacts"
	sheetEvents   = "Timeline"

	// numFmtMoney is the built-in "#,##0.00" format
	numFmtMoney = 4
)

// XLSXRenderer renders one worksheet per section
type XLSXRenderer struct{}

// ContentType implements Renderer
func (XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render implements Renderer. Amounts are written as dollars so spreadsheet
// formulas work on them.
func (XLSXRenderer) Render(w io.Writer, d *Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{sheetCosts, sheetContacts, sheetEvents} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	s := &sheetWriter{f: f, bold: bold, money: money}
	p := d.Project
	s.rows(sheetSummary, [][]interface{}{
		{"Project", p.Name},
		{"Status", string(p.Status)},
		{"Address", p.Address},
		{"City", p.City},
		{"Start", formatDate(p.StartDate)},
		{"Target", formatDate(p.TargetDate)},
		{"Generated", d.GeneratedAt.Format("2006-01-02 15:04 MST")},
		{},
		{"Category", "Lines", "Total"},
	})
	s.style(sheetSummary, "A1", "A7", bold)
	s.style(sheetSummary, "A9", "C9", bold)
	row := 10
	for _, c := range d.Breakdown.ByCategory {
		s.row(sheetSummary, row, string(c.Category), c.Count, dollars(c.TotalCents))
		row++
	}
	for _, line := range []struct {
		label string
		cents int64
	}{
		{"Total spent", d.Breakdown.TotalCents},
		{"Budget", d.Breakdown.BudgetCents},
		{"Variance", d.Breakdown.VarianceCents},
	} {
		s.row(sheetSummary, row, line.label, nil, dollars(line.cents))
		s.style(sheetSummary, cell(1, row), cell(1, row), bold)
		row++
	}
	s.style(sheetSummary, "C10", cell(3, row-1), money)
	s.widths(sheetSummary, 14, 40)

	s.header(sheetCosts, "Date", "Category", "Description", "Vendor", "Amount")
	for i, c := range d.Costs {
		s.row(sheetCosts, i+2, c.IncurredOn.Format(dateLayout), string(c.Category), c.Description, c.Vendor, dollars(c.AmountCents))
	}
	if len(d.Costs) > 0 {
		s.style(sheetCosts, "E2", cell(5, len(d.Costs)+1), money)
	}
	s.widths(sheetCosts, 14, 40)

	s.header(sheetContacts, "Name", "Company", "Role", "Email", "Phone", "Average rating", "Ratings")
	for i, c := range d.Contacts {
		var avg interface{}
		if c.AverageRating != nil {
			avg = *c.AverageRating
		}
		s.row(sheetContacts, i+2, c.Name, c.Company, c.Role, c.Email, c.Phone, avg, c.RatingCount)
	}
	s.widths(sheetContacts, 14, 30)

	s.header(sheetEvents, "Scheduled", "Kind", "Title", "Completed", "Notes")
	for i, e := range d.Events {
		completed := ""
		if e.CompletedAt != nil {
			completed = e.CompletedAt.Format(dateLayout)
		}
		s.row(sheetEvents, i+2, e.ScheduledAt.Format(dateLayout), string(e.Kind), e.Title, completed, e.Notes)
	}
	s.widths(sheetEvents, 14, 40)

	if s.err != nil {
		return fmt.Errorf("failed to build workbook: %w", s.err)
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to render xlsx: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so the layout code reads straight through
type sheetWriter struct {
	f           *excelize.File
	bold, money int
	err         error
}

func (s *sheetWriter) row(sheet string, n int, values ...interface{}) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetSheetRow(sheet, cell(1, n), &values)
}

func (s *sheetWriter) rows(sheet string, rows [][]interface{}) {
	for i, r := range rows {
		s.row(sheet, i+1, r...)
	}
}

func (s *sheetWriter) header(sheet string, titles ...string) {
	values := make([]interface{}, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	s.row(sheet, 1, values...)
	s.style(sheet, "A1", cell(len(titles), 1), s.bold)
	if s.err == nil {
		s.err = s.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
}

func (s *sheetWriter) style(sheet, from, to string, id int) {
	if s.err == nil {
		s.err = s.f.SetCellStyle(sheet, from, to, id)
	}
}

func (s *sheetWriter) widths(sheet string, narrow, wide float64) {
	if s.err == nil {
		s.err = s.f.SetColWidth(sheet, "A", "B", narrow)
	}
	if s.err == nil {
		s.err = s.f.SetColWidth(sheet, "C", "G", wide)
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}

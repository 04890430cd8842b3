package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// PDFRenderer renders an A4 portrait report
type PDFRenderer struct{}

// ContentType implements Renderer
func (PDFRenderer) ContentType() string { return "application/pdf" }

type column struct {
	title string
	width float64
	align string
}

// Render implements Renderer
func (PDFRenderer) Render(w io.Writer, d *Data) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(d.Project.Name, true)
	pdf.SetCreator("groundwork", true)
	pdf.SetCreationDate(d.GeneratedAt)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	p := d.Project
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(p.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	location := strings.Trim(strings.Join([]string{p.Address, p.City}, ", "), ", ")
	for _, line := range []string{
		"Status: " + string(p.Status),
		"Location: " + orDash(location),
		fmt.Sprintf("Start: %s   Target: %s", formatDate(p.StartDate), formatDate(p.TargetDate)),
		"Generated: " + d.GeneratedAt.Format("2006-01-02 15:04 MST"),
	} {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	if p.Description != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, 5, tr(p.Description), "", "L", false)
	}

	b := d.Breakdown
	section(pdf, "Budget")
	table(pdf, tr, []column{{"Category", 60, "L"}, {"Lines", 30, "R"}, {"Total", 50, "R"}}, func(row func(...string)) {
		for _, c := range b.ByCategory {
			row(string(c.Category), fmt.Sprint(c.Count), models.FormatCents(c.TotalCents))
		}
		row("Total spent", "", models.FormatCents(b.TotalCents))
		row("Budget", "", models.FormatCents(b.BudgetCents))
		row("Variance", "", models.FormatCents(b.VarianceCents))
	})

	section(pdf, "Cost lines")
	table(pdf, tr, []column{{"Date", 25, "L"}, {"Category", 25, "L"}, {"Description", 70, "L"}, {"Vendor", 35, "L"}, {"Amount", 30, "R"}},
		func(row func(...string)) {
			for _, c := range d.Costs {
				row(c.IncurredOn.Format(dateLayout), string(c.Category), c.Description, c.Vendor, models.FormatCents(c.AmountCents))
			}
		})

	section(pdf, "Contacts")
	table(pdf, tr, []column{{"Name", 45, "L"}, {"Company", 45, "L"}, {"Role", 30, "L"}, {"Phone", 35, "L"}, {"Rating", 30, "R"}},
		func(row func(...string)) {
			for _, c := range d.Contacts {
				row(c.Name, c.Company, c.Role, c.Phone, formatRating(c.AverageRating, c.RatingCount))
			}
		})

	section(pdf, "Timeline")
	table(pdf, tr, []column{{"Scheduled", 30, "L"}, {"Kind", 30, "L"}, {"Title", 90, "L"}, {"State", 35, "L"}},
		func(row func(...string)) {
			for _, e := range d.Events {
				row(e.ScheduledAt.Format(dateLayout), string(e.Kind), e.Title, eventState(e.CompletedAt))
			}
		})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

// table draws a header row and then whatever rows fill emits. Cells are cut to fit.
func table(pdf *fpdf.Fpdf, tr func(string) string, cols []column, fill func(row func(...string))) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	rows := 0
	fill(func(values ...string) {
		for i, c := range cols {
			pdf.CellFormat(c.width, 6, fit(pdf, tr(values[i]), c.width-2), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
		rows++
	})
	if rows == 0 {
		var total float64
		for _, c := range cols {
			total += c.width
		}
		pdf.CellFormat(total, 6, "None", "1", 1, "C", false, 0, "")
	}
}

func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

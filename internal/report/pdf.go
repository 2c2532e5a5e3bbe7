package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"dtr/internal/timefmt"
)

const (
	pdfMargin = 15.0
	rowH      = 7.0
)

// ширины колонок таблицы: дата, вход, выход, длительность, заметка (A4 минус поля = 180 мм)
var pdfCols = []float64{26, 22, 22, 22, 88}

// WritePDF рисует A4-отчёт: заголовок, период, таблица на каждого участника и итоги.
func WritePDF(w io.Writer, meta Meta, groups []UserGroup, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle("Daily Time Record", true)
	pdf.SetCreator("dtr", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(meta.OrgName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Daily Time Record: %s to %s", meta.From, meta.To)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(groups) == 0 {
		pdf.CellFormat(0, rowH, "No time entries in this period.", "", 1, "L", false, 0, "")
	}

	for _, g := range groups {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr("User: "+g.UserID), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(229, 231, 235)
		for i, h := range []string{"Date", "Time In", "Time Out", "Duration", "Note"} {
			pdf.CellFormat(pdfCols[i], rowH, h, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		for _, d := range g.Days {
			for _, e := range d.Entries {
				out, dur, note := "active", "", ""
				if e.TimeOut != nil {
					out = e.TimeOut.In(loc).Format("15:04")
				}
				if e.Duration != nil {
					dur = timefmt.FormatMinutes(*e.Duration)
				}
				if e.Note != nil {
					note = truncate(*e.Note, 60)
				}
				cells := []string{d.Date, e.TimeIn.In(loc).Format("15:04"), out, dur, tr(note)}
				for i, c := range cells {
					pdf.CellFormat(pdfCols[i], rowH, c, "1", 0, "L", false, 0, "")
				}
				pdf.Ln(-1)
			}
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(pdfCols[0]+pdfCols[1]+pdfCols[2], rowH, "Day total", "1", 0, "R", false, 0, "")
			pdf.CellFormat(pdfCols[3], rowH, d.Total, "1", 0, "L", false, 0, "")
			pdf.CellFormat(pdfCols[4], rowH, "", "1", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 9)
		}

		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 8, "Total: "+g.Total, "", 1, "R", false, 0, "")
		pdf.Ln(3)
	}

	if len(groups) > 1 {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 8, "All members: "+timefmt.FormatMinutes(GrandTotal(groups)), "T", 1, "R", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Package report renders class attendance rosters into PDF documents.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/kursadbilgin/report-dispatch/internal/domain"
)

// Renderer turns a class roster into an attachment.
type Renderer interface {
	Render(className string, roster []domain.RosterEntry, date domain.Date) ([]byte, error)
}

const (
	pageMargin   = 15.0
	rowHeight    = 7.0
	colNumber    = 15.0
	colStatus    = 40.0
	headerHeight = 8.0
)

// PDFRenderer produces A4 PDF reports. Output is byte-identical for the same
// roster and date: document timestamps are pinned to the report date.
type PDFRenderer struct {
	creator string
}

func NewPDFRenderer(creator string) *PDFRenderer {
	if creator == "" {
		creator = "report-dispatch"
	}
	return &PDFRenderer{creator: creator}
}

func (r *PDFRenderer) Render(className string, roster []domain.RosterEntry, date domain.Date) ([]byte, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: report date is required", domain.ErrValidation)
	}

	stamp := date.In(time.UTC)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := fmt.Sprintf("Daily Attendance Report - Class %s", className)
	pdf.SetTitle(title, true)
	pdf.SetCreator(r.creator, true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Date: "+date.String(), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	nameWidth := pageWidth(pdf) - colNumber - colStatus
	tableHeader := func() {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(colNumber, headerHeight, "#", "1", 0, "C", true, 0, "")
		pdf.CellFormat(nameWidth, headerHeight, "Student", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colStatus, headerHeight, "Status", "1", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	tableHeader()

	_, pageHeight := pdf.GetPageSize()
	counts := make(map[domain.AttendanceStatus]int, 4)

	for i, entry := range roster {
		if pdf.GetY()+rowHeight > pageHeight-pageMargin-5 {
			pdf.AddPage()
			tableHeader()
		}

		counts[entry.Status]++
		pdf.CellFormat(colNumber, rowHeight, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(nameWidth, rowHeight, tr(entry.Student.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colStatus, rowHeight, entry.Status.Label(), "1", 1, "L", false, 0, "")
	}

	if len(roster) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.CellFormat(0, rowHeight, "No students are assigned to this class.", "1", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, rowHeight, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, status := range []domain.AttendanceStatus{
		domain.AttendancePresent,
		domain.AttendanceLate,
		domain.AttendanceAbsent,
		domain.AttendanceUnknown,
	} {
		if status == domain.AttendanceUnknown && counts[status] == 0 {
			continue
		}
		pdf.CellFormat(0, 6, fmt.Sprintf("%s: %d", status.Label(), counts[status]), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %d", len(roster)), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf for class %s: %w", className, err)
	}
	return buf.Bytes(), nil
}

func pageWidth(pdf *fpdf.Fpdf) float64 {
	w, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	return w - left - right
}

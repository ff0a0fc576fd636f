// Package export renders a ledger tab as a downloadable document.
package export

import (
	"errors"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// Format is a document type a tab can be exported as
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat validates the ?type= query value
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPDF, FormatExcel:
		return Format(s), nil
	}
	return "", ErrUnsupportedFormat
}

// ContentType is the MIME type of the rendered document
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension is the file extension of the rendered document
func (f Format) Extension() string {
	if f == FormatPDF {
		return ".pdf"
	}
	return ".xlsx"
}

// Table is the tabular content of one exported tab
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Write renders t into w
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatPDF:
		return writePDF(w, t)
	case FormatExcel:
		return writeExcel(w, t)
	}
	return ErrUnsupportedFormat
}

const sheetName = "Sheet1"

func writeExcel(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	row := 1
	if t.Title != "" {
		if err := f.SetCellValue(sheetName, "A1", t.Title); err != nil {
			return err
		}
		row = 3
	}

	if err := setRow(f, row, t.Headers); err != nil {
		return err
	}
	for i, r := range t.Rows {
		if err := setRow(f, row+1+i, r); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// landscape A4 minus 10mm margins
const pdfContentWidth = 277.0

func writePDF(w io.Writer, t Table) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(t.Title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")

	cols := len(t.Headers)
	if cols == 0 {
		return pdf.Output(w)
	}
	width := pdfContentWidth / float64(cols)

	pdf.SetFont("Helvetica", "B", 9)
	for _, h := range t.Headers {
		pdf.CellFormat(width, 7, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range t.Rows {
		for i := 0; i < cols; i++ {
			v := ""
			if i < len(r) {
				v = r[i]
			}
			pdf.CellFormat(width, 6, tr(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

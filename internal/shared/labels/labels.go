// Package labels renders inventory unit labels and dispatch receipts. Pure
// functions: structured data in, PDF bytes out.
package labels

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// UnitLabel is the data printed on a pallet/lot label.
type UnitLabel struct {
	UnitCode     string
	ProductID    string
	Description  string
	LotID        string
	DocumentID   string
	LocationPath string
}

// ReceiptLine is one row of the dispatch receipt table.
type ReceiptLine struct {
	ItemCode    string
	Description string
	Required    float64
	Verified    float64
}

// Receipt is the dispatch summary rendered after finalize.
type Receipt struct {
	DocumentID   string
	ClientName   string
	VerifiedBy   string
	VerifiedAt   string
	VehiclePlate string
	DriverName   string
	Notes        string
	Lines        []ReceiptLine
}

const maxDescriptionLen = 40

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func qrPNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, 256)
}

func code128PNG(content string) ([]byte, error) {
	bc, err := code128.Encode(content)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(bc, 400, 80)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderUnitLabel produces a fixed-size 100x60mm label PDF with both a QR and
// a Code128 barcode encoding the unit code.
func RenderUnitLabel(l UnitLabel) ([]byte, error) {
	qr, err := qrPNG(l.UnitCode)
	if err != nil {
		return nil, fmt.Errorf("labels: qr encode: %w", err)
	}
	bc, err := code128PNG(l.UnitCode)
	if err != nil {
		return nil, fmt.Errorf("labels: barcode encode: %w", err)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: 100, Ht: 60},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.RegisterImageOptionsReader("bc", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(bc))

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(64, 8, l.UnitCode, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(64, 4, fmt.Sprintf("Producto: %s", l.ProductID), "", 1, "L", false, 0, "")
	pdf.CellFormat(64, 4, truncate(l.Description, maxDescriptionLen), "", 1, "L", false, 0, "")
	if l.LotID != "" {
		pdf.CellFormat(64, 4, fmt.Sprintf("Lote: %s", l.LotID), "", 1, "L", false, 0, "")
	}
	if l.DocumentID != "" {
		pdf.CellFormat(64, 4, fmt.Sprintf("Documento: %s", l.DocumentID), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(64, 4, truncate(l.LocationPath, 52), "", 1, "L", false, 0, "")

	// QR on the right, barcode along the bottom
	pdf.ImageOptions("qr", 72, 4, 24, 24, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.ImageOptions("bc", 4, 42, 92, 14, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("labels: pdf output: %w", err)
	}
	return out.Bytes(), nil
}

// RenderDispatchReceipt produces the tabulated dispatch summary. Row color
// follows the verification result: green exact, amber short, red zero or
// surplus.
func RenderDispatchReceipt(r Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Comprobante de Despacho", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Documento: %s", r.DocumentID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Cliente: %s", r.ClientName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Verificado por: %s  (%s)", r.VerifiedBy, r.VerifiedAt), "", 1, "L", false, 0, "")
	if r.VehiclePlate != "" || r.DriverName != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Placa: %s  Conductor: %s", r.VehiclePlate, r.DriverName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(30, 7, "Código", "1", 0, "L", true, 0, "")
	pdf.CellFormat(90, 7, "Descripción", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Requerido", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Verificado", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range r.Lines {
		switch {
		case line.Verified == line.Required:
			pdf.SetFillColor(204, 240, 204) // green: exact
		case line.Verified == 0 || line.Verified > line.Required:
			pdf.SetFillColor(245, 204, 204) // red: zero or over
		default:
			pdf.SetFillColor(250, 235, 190) // amber: short
		}
		pdf.CellFormat(30, 6, line.ItemCode, "1", 0, "L", true, 0, "")
		pdf.CellFormat(90, 6, truncate(line.Description, 52), "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%g", line.Required), "1", 0, "R", true, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%g", line.Verified), "1", 1, "R", true, 0, "")
	}

	if r.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, "Notas: "+r.Notes, "", "L", false)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("labels: pdf output: %w", err)
	}
	return out.Bytes(), nil
}

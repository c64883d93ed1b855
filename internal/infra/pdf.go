package infra

// pdf.go: canje voucher generation using go-pdf/fpdf.
// A voucher is a receipt-size page the client shows when picking up the
// reward:
//   - Program header
//   - Canje id and creation date
//   - Client name and phone
//   - Product / service and points redeemed
//   - Current estado
//
// The file variant saves to storagePath/canje_{id}.pdf.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"mannypuntos/internal/model"
)

// etiquetasEstado are the client-facing labels printed on the voucher.
var etiquetasEstado = map[string]string{
	model.EstadoPendienteEntrega: "Pendiente de entrega",
	model.EstadoEnLista:          "En lista",
	model.EstadoEntregado:        "Entregado",
	model.EstadoCompletado:       "Completado",
}

// WriteCanjeVoucher renders the voucher for s into w.
func WriteCanjeVoucher(w io.Writer, s model.CanjeSnapshot) error {
	pdf := buildVoucher(s)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render voucher: %w", err)
	}
	return nil
}

// GenerateCanjeVoucherFile writes the voucher under storagePath (created if
// needed) and returns the file path.
func GenerateCanjeVoucherFile(s model.CanjeSnapshot, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("canje_%s.pdf", s.ID))

	pdf := buildVoucher(s)
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func buildVoucher(s model.CanjeSnapshot) *fpdf.Fpdf {
	// 74mm × 105mm, close to thermal receipt paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "Manny Puntos", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, tr("Comprobante de canje"), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 6)
	pdf.CellFormat(contentW, 4, s.ID.String(), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, s.CreatedAt.Format("02/01/2006  15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	labelW := contentW * 0.35
	valueW := contentW - labelW
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(labelW, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(valueW, 5, tr(truncar(value, 28)), "", 1, "L", false, 0, "")
	}

	row("Cliente:", s.ClienteNombre)
	row("Teléfono:", s.ClienteTelefono)
	row("Recompensa:", s.ProductoNombre)
	if s.ProductoTipo == model.TipoServicio {
		row("Tipo:", "Servicio")
	}
	row("Estado:", etiquetasEstado[s.Estado])
	if s.EntregadoAt != nil {
		row("Entregado:", s.EntregadoAt.Format("02/01/2006"))
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW*0.6, 6, "PUNTOS:", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.4, 6, fmt.Sprintf("%d", s.PuntosCanjeados), "", 1, "R", false, 0, "")

	// ── Footer ────────────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr("Presentá este comprobante al retirar"), "", 1, "C", false, 0, "")
	return pdf
}

func truncar(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

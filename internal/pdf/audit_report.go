package pdf

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"

	"taskflow/internal/models"
)

// Generator renders documents; handlers depend on the interface.
type Generator interface {
	RenderAuditTrail(w io.Writer, data AuditTrailData) error
}

// AuditTrailGenerator renders a task's audit trail as an A4 table.
type AuditTrailGenerator struct {
	FontPath string // TTF with Cyrillic/Latin glyphs; core Helvetica when missing
	fontName string
}

type AuditTrailData struct {
	Task        *models.Task
	Entries     []models.AuditEntry
	GeneratedAt time.Time
}

func NewAuditTrailGenerator(fontPath string) *AuditTrailGenerator {
	return &AuditTrailGenerator{FontPath: fontPath, fontName: "DejaVu"}
}

func (g *AuditTrailGenerator) RenderAuditTrail(w io.Writer, data AuditTrailData) error {
	if data.Task == nil {
		return fmt.Errorf("audit trail: task is required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Audit trail "+data.Task.ID, true)
	pdf.SetAuthor("taskflow", true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	font, tr := g.setupFont(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(font, "", 9)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 10, "Audit trail", "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.CellFormat(0, 7, tr(data.Task.Title), "", 1, "C", false, 0, "")
	hr(pdf)

	kvLine(pdf, font, "Task", tr(data.Task.ID))
	kvLine(pdf, font, "Project", tr(data.Task.ProjectID))
	kvLine(pdf, font, "Status", tr(data.Task.Status))
	kvLine(pdf, font, "Generated", data.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(2)
	hr(pdf)

	widths := []float64{35, 28, 50, 50, 17}
	headers := []string{"When", "Field", "Old value", "New value", "Actor"}
	pdf.SetFont(font, "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(font, "", 8)
	if len(data.Entries) == 0 {
		pdf.CellFormat(0, 7, "No changes recorded.", "1", 1, "C", false, 0, "")
	}
	for _, e := range data.Entries {
		row := []string{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Field,
			truncate(valueOrDash(e.OldValue), 40),
			truncate(valueOrDash(e.NewValue), 40),
			shortID(e.ActorID),
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 6, tr(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

// setupFont returns the font family and the translator every user-supplied
// string must pass through. Core Helvetica is cp1252-encoded, so UTF-8 text
// is mapped onto it; runes outside the code page print as '.'.
func (g *AuditTrailGenerator) setupFont(pdf *gofpdf.Fpdf) (string, func(string) string) {
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			pdf.AddUTF8Font(g.fontName, "", g.FontPath)
			pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
			return g.fontName, func(s string) string { return s }
		}
		log.Printf("[pdf][font] %s not found, falling back to Helvetica", g.FontPath)
	}
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

func kvLine(pdf *gofpdf.Fpdf, font, key, val string) {
	pdf.SetFont(font, "B", 10)
	pdf.CellFormat(30, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(15, y, 195, y)
	pdf.SetY(y + 2)
}

func valueOrDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// shortID keeps the first UUID group; the full id is in the JSON trail.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

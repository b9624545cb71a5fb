package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/model"
)

const fontName = "Helvetica"

// Generator renders the portfolio report with the core Helvetica font. Text is
// translated to cp1252, which covers Portuguese accents.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.PortfolioReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, tr("Relatório executivo de contratos"), "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Gerado em %s | Período: %s", formatDateTime(report.GeneratedAt), report.Period)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	summary := report.Summary
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Resumo"), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		fmt.Sprintf("Contratos: %d", summary.Contracts),
		fmt.Sprintf("Valor original total: R$ %s", formatMoney(summary.TotalOriginalValue)),
		fmt.Sprintf("Valor realizado total: R$ %s (%s%% em média)", formatMoney(summary.TotalRealized), formatMoney(summary.MeanPercentRealized)),
		fmt.Sprintf("Saldo total: R$ %s", formatMoney(summary.TotalBalance)),
		fmt.Sprintf("Economia total: R$ %s", formatMoney(summary.TotalSavings)),
		fmt.Sprintf("Meta de redução atingida: %s (%d de %d contratos)", formatBool(summary.TargetMet()), summary.ContractsMeetingGoal, summary.Contracts),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	headers := []string{"Número", "Projeto", "Cliente", "Original", "Realizado", "Saldo", "% real.", "Economia", "Meta"}
	colWidths := []float64{34, 55, 45, 28, 28, 28, 18, 26, 11}
	drawTableRow(pdf, tr, headers, colWidths, true)

	for _, row := range report.Rows {
		c, m := row.Contract, row.Metrics
		drawTableRow(pdf, tr, []string{
			c.ContractNumber,
			clip(c.ProjectName, 32),
			clip(c.Client, 26),
			formatMoney(c.OriginalValue),
			formatMoney(m.RealizedValue),
			formatMoney(m.ContractBalance),
			formatMoney(m.PercentRealized),
			formatMoney(m.SavingsObtained),
			formatBool(m.ReductionTargetMet),
		}, colWidths, false)
	}

	if len(report.Rows) == 0 {
		pdf.Ln(2)
		pdf.MultiCell(0, 6, tr("Nenhum contrato no período selecionado."), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		align := "L"
		if i > 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func clip(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func formatMoney(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatBool(value bool) string {
	if value {
		return "Sim"
	}
	return "Não"
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006 15:04")
}

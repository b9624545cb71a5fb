package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/obrasplan/contracts-service/internal/model"
)

const maxSheetName = 31

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate writes the portfolio summary on the first sheet and one sheet of
// budget items per contract.
func (g *Generator) Generate(report model.PortfolioReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Resumo"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, summarySheet, report)

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, row := range report.Rows {
		sheetName := buildSheetName(row.Contract, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		g.writeDetail(file, sheetName, row)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.PortfolioReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}
	summary := report.Summary

	set("A1", "Relatório de contratos")
	set("A2", "Gerado em")
	set("B2", formatDateTime(report.GeneratedAt))
	set("A3", "Período")
	set("B3", report.Period)
	set("A4", "Contratos")
	set("B4", summary.Contracts)
	set("A5", "Valor original total")
	set("B5", formatMoney(summary.TotalOriginalValue))
	set("A6", "Valor realizado total")
	set("B6", formatMoney(summary.TotalRealized))
	set("A7", "Saldo total")
	set("B7", formatMoney(summary.TotalBalance))
	set("A8", "Economia total")
	set("B8", formatMoney(summary.TotalSavings))
	set("A9", "% realizado (média)")
	set("B9", formatMoney(summary.MeanPercentRealized))
	set("A10", "Meta de redução atingida")
	set("B10", formatBool(summary.TargetMet()))

	tableRow := 12
	headers := []string{
		"Número",
		"Projeto",
		"Cliente",
		"Status",
		"Valor original",
		"Realizado",
		"Saldo",
		"% realizado",
		"Economia",
		"Meta atingida",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, row := range report.Rows {
		r := tableRow + 1 + i
		c, m := row.Contract, row.Metrics
		set(fmt.Sprintf("A%d", r), c.ContractNumber)
		set(fmt.Sprintf("B%d", r), c.ProjectName)
		set(fmt.Sprintf("C%d", r), c.Client)
		set(fmt.Sprintf("D%d", r), string(c.Status))
		set(fmt.Sprintf("E%d", r), formatMoney(c.OriginalValue))
		set(fmt.Sprintf("F%d", r), formatMoney(m.RealizedValue))
		set(fmt.Sprintf("G%d", r), formatMoney(m.ContractBalance))
		set(fmt.Sprintf("H%d", r), formatMoney(m.PercentRealized))
		set(fmt.Sprintf("I%d", r), formatMoney(m.SavingsObtained))
		set(fmt.Sprintf("J%d", r), formatBool(m.ReductionTargetMet))
	}

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "C", 32)
	_ = file.SetColWidth(sheet, "D", "J", 16)
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, row model.PortfolioRow) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}
	c, m := row.Contract, row.Metrics

	set("A1", "Contrato")
	set("B1", c.ContractNumber)
	set("A2", "Projeto")
	set("B2", c.ProjectName)
	set("A3", "Cliente")
	set("B3", c.Client)
	set("A4", "Início")
	set("B4", formatDate(c.StartDate))
	set("A5", "Valor original")
	set("B5", formatMoney(c.OriginalValue))
	set("A6", "Realizado")
	set("B6", formatMoney(m.RealizedValue))
	set("A7", "Saldo")
	set("B7", formatMoney(m.ContractBalance))

	tableRow := 9
	headers := []string{
		"Item",
		"Descrição",
		"Centro de custo",
		"Unidade",
		"Quantidade",
		"Valor unitário",
		"Valor total",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, item := range c.BudgetItems {
		r := tableRow + 1 + i
		set(fmt.Sprintf("A%d", r), item.ItemCode)
		set(fmt.Sprintf("B%d", r), item.Description)
		set(fmt.Sprintf("C%d", r), item.CostCenter)
		set(fmt.Sprintf("D%d", r), formatString(item.Unit))
		set(fmt.Sprintf("E%d", r), formatOptional(item.PlannedQuantity))
		set(fmt.Sprintf("F%d", r), formatOptional(item.PlannedUnitValue))
		set(fmt.Sprintf("G%d", r), formatMoney(item.PlannedTotalValue))
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "B", 48)
	_ = file.SetColWidth(sheet, "C", "G", 16)
}

// buildSheetName derives a unique excel-safe sheet name from the contract
// number, falling back to the id.
func buildSheetName(contract model.Contract, used map[string]struct{}) string {
	base := strings.TrimSpace(contract.ContractNumber)
	if base == "" {
		base = contract.ID.String()
	}
	base = truncate(sanitizeSheetName(base), maxSheetName)

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		candidate = truncate(base, maxSheetName-len(suffix)) + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Contrato"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Contrato"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatMoney(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatOptional(value *decimal.Decimal) string {
	if value == nil {
		return ""
	}
	return value.String()
}

func formatBool(value bool) string {
	if value {
		return "Sim"
	}
	return "Não"
}

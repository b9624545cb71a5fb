package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/obrasplan/contracts-service/internal/model"
)

// headerScanRows bounds how far down the sheet the header row is searched.
const headerScanRows = 30

type column int

const (
	colItemCode column = iota
	colDescription
	colCostCenter
	colUnit
	colQuantity
	colWeight
	colUnitValue
	colTotalValue
	colNormalHours
	colOvertimeHours
	colSalary
	columnCount
)

var headerAliases = map[string]column{
	"item":                colItemCode,
	"codigo":              colItemCode,
	"cod":                 colItemCode,
	"codigo item":         colItemCode,
	"codigo do item":      colItemCode,
	"descricao":           colDescription,
	"descricao do item":   colDescription,
	"discriminacao":       colDescription,
	"centro de custo":     colCostCenter,
	"centro custo":        colCostCenter,
	"cc":                  colCostCenter,
	"unidade":             colUnit,
	"un":                  colUnit,
	"und":                 colUnit,
	"unid":                colUnit,
	"quantidade":          colQuantity,
	"quantidade prevista": colQuantity,
	"qtd":                 colQuantity,
	"qtde":                colQuantity,
	"peso":                colWeight,
	"peso previsto":       colWeight,
	"peso kg":             colWeight,
	"valor unitario":      colUnitValue,
	"preco unitario":      colUnitValue,
	"vl unitario":         colUnitValue,
	"valor total":         colTotalValue,
	"preco total":         colTotalValue,
	"vl total":            colTotalValue,
	"total":               colTotalValue,
	"horas normais":       colNormalHours,
	"horas extras":        colOvertimeHours,
	"salario":             colSalary,
}

type BudgetItemWriter interface {
	CreateBudgetItems(ctx context.Context, contractID uuid.UUID, items []model.BudgetItem) error
}

// BudgetImporter reads the client budget sheet (QQP) of a workbook.
type BudgetImporter struct {
	sheet string
	items BudgetItemWriter
}

func NewBudgetImporter(sheet string, items BudgetItemWriter) *BudgetImporter {
	return &BudgetImporter{sheet: sheet, items: items}
}

// Import parses the workbook. Problems with the content are reported through
// the result; the error is reserved for unreadable files and storage failures.
func (i *BudgetImporter) Import(ctx context.Context, content []byte, contractID *uuid.UUID) (*model.BudgetImportResult, error) {
	file, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	result := &model.BudgetImportResult{ContractTotalValue: decimal.Zero}

	sheet, ok := findSheet(file.GetSheetList(), i.sheet)
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("sheet %q not found", i.sheet))
		return result, nil
	}
	rows, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	parseRows(rows, result)
	result.Success = len(result.Errors) == 0
	if !result.Success || contractID == nil {
		return result, nil
	}

	if err := i.items.CreateBudgetItems(ctx, *contractID, result.Items); err != nil {
		return nil, fmt.Errorf("store budget items: %w", err)
	}
	return result, nil
}

func parseRows(rows [][]string, result *model.BudgetImportResult) {
	headerRow, columns, ok := findHeader(rows)
	if !ok {
		result.Errors = append(result.Errors, "header row with description and total value columns not found")
		return
	}
	if columns[colCostCenter] < 0 {
		result.Errors = append(result.Errors, "cost center column not found")
		return
	}

	var declaredTotal *decimal.Decimal
	itemsTotal := decimal.Zero

	for idx := headerRow + 1; idx < len(rows); idx++ {
		row := rows[idx]
		line := idx + 1
		cell := func(c column) string {
			pos := columns[c]
			if pos < 0 || pos >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[pos])
		}

		code, description := cell(colItemCode), cell(colDescription)
		rawTotal := cell(colTotalValue)
		if code == "" && description == "" && rawTotal == "" {
			continue
		}

		if isTotalLabel(code) || isTotalLabel(description) {
			total, present, err := parseAmount(rawTotal)
			if err != nil || !present {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid contract total %q", line, rawTotal))
				continue
			}
			declaredTotal = &total
			continue
		}

		total, present, err := parseAmount(rawTotal)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid total value %q", line, rawTotal))
			continue
		}
		if !present {
			// group headings carry a description but no values
			continue
		}
		if description == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: description is required", line))
			continue
		}
		costCenter := cell(colCostCenter)
		if costCenter == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: cost center is required", line))
			continue
		}
		if code == "" {
			code = fmt.Sprintf("%d", len(result.Items)+1)
		}

		item := model.BudgetItem{
			ItemCode:          code,
			Description:       description,
			CostCenter:        costCenter,
			PlannedTotalValue: total,
		}
		if unit := cell(colUnit); unit != "" {
			item.Unit = &unit
		}
		optional := []struct {
			col    column
			target **decimal.Decimal
			label  string
		}{
			{colQuantity, &item.PlannedQuantity, "quantity"},
			{colWeight, &item.PlannedWeight, "weight"},
			{colUnitValue, &item.PlannedUnitValue, "unit value"},
			{colNormalHours, &item.PlannedNormalHours, "normal hours"},
			{colOvertimeHours, &item.PlannedOvertimeHours, "overtime hours"},
			{colSalary, &item.PlannedSalary, "salary"},
		}
		valid := true
		for _, field := range optional {
			raw := cell(field.col)
			value, ok, err := parseAmount(raw)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid %s %q", line, field.label, raw))
				valid = false
				continue
			}
			if ok {
				v := value
				*field.target = &v
			}
		}
		if !valid {
			continue
		}

		result.Items = append(result.Items, item)
		itemsTotal = itemsTotal.Add(total)
	}

	if len(result.Items) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, "no budget items found")
	}
	if declaredTotal != nil {
		result.ContractTotalValue = *declaredTotal
	} else {
		result.ContractTotalValue = itemsTotal
	}
}

func findSheet(sheets []string, wanted string) (string, bool) {
	target := normalizeLabel(wanted)
	for _, name := range sheets {
		if name == wanted {
			return name, true
		}
	}
	for _, name := range sheets {
		if normalizeLabel(name) == target {
			return name, true
		}
	}
	return "", false
}

func findHeader(rows [][]string) (int, [columnCount]int, bool) {
	var columns [columnCount]int
	for idx := 0; idx < len(rows) && idx < headerScanRows; idx++ {
		for c := range columns {
			columns[c] = -1
		}
		for pos, value := range rows[idx] {
			col, ok := headerAliases[normalizeLabel(value)]
			if ok && columns[col] < 0 {
				columns[col] = pos
			}
		}
		if columns[colDescription] >= 0 && columns[colTotalValue] >= 0 {
			return idx, columns, true
		}
	}
	return 0, columns, false
}

func isTotalLabel(value string) bool {
	label := normalizeLabel(value)
	return label == "total" || strings.HasPrefix(label, "total geral") || strings.HasPrefix(label, "valor total do contrato")
}

// normalizeLabel folds case and accents and collapses punctuation so that
// "Descrição", "DESCRICAO" and "descricao:" compare equal.
func normalizeLabel(value string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, value)
	if err != nil {
		folded = value
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	gap := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

// parseAmount accepts raw numeric cells ("1234.5") and typed Brazilian
// amounts ("R$ 1.234,50"). The boolean is false for empty cells.
func parseAmount(raw string) (decimal.Decimal, bool, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "R$")
	value = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
	if value == "" || value == "-" {
		return decimal.Zero, false, nil
	}

	lastComma := strings.LastIndex(value, ",")
	lastDot := strings.LastIndex(value, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		value = strings.ReplaceAll(value, ",", "")
	case lastComma >= 0:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false, err
	}
	return parsed, true, nil
}

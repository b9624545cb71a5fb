package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/metrics"
)

// BudgetImportResult is what the spreadsheet importer reports back. Items are
// persisted only when the import is bound to a contract.
type BudgetImportResult struct {
	Success            bool
	Errors             []string
	ContractTotalValue decimal.Decimal
	Items              []BudgetItem
}

type PortfolioRow struct {
	Contract Contract
	Metrics  metrics.Metrics
}

// PortfolioReport feeds the excel and pdf exports of the executive dashboard.
type PortfolioReport struct {
	GeneratedAt time.Time
	Period      string
	Summary     metrics.Portfolio
	Rows        []PortfolioRow
}

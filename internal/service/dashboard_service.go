package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/metrics"
	"github.com/obrasplan/contracts-service/internal/model"
	"github.com/obrasplan/contracts-service/internal/repository"
)

type DashboardContractSource interface {
	ListForDashboard(ctx context.Context, filter repository.DashboardFilter) ([]model.Contract, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	ListBudgetItems(ctx context.Context, contractIDs []uuid.UUID) (map[uuid.UUID][]model.BudgetItem, error)
}

type DashboardPurchaseSource interface {
	RealizedValueSource
	OrderStats(ctx context.Context, contractIDs []uuid.UUID, from, to *time.Time) (repository.OrderStats, error)
	CountApprovedSuppliers(ctx context.Context) (int64, error)
}

// ReportGenerator renders the portfolio report into one file format.
type ReportGenerator interface {
	Generate(report model.PortfolioReport) ([]byte, error)
}

type DashboardService struct {
	contracts DashboardContractSource
	purchases DashboardPurchaseSource
	excel     ReportGenerator
	pdf       ReportGenerator
	log       zerolog.Logger
	now       func() time.Time
}

func NewDashboardService(
	contracts DashboardContractSource,
	purchases DashboardPurchaseSource,
	excel ReportGenerator,
	pdf ReportGenerator,
	log zerolog.Logger,
) *DashboardService {
	return &DashboardService{
		contracts: contracts,
		purchases: purchases,
		excel:     excel,
		pdf:       pdf,
		log:       log,
		now:       time.Now,
	}
}

type SuppliesDashboard struct {
	Contracts           int             `json:"contracts"`
	TotalPurchaseOrders int64           `json:"total_purchase_orders"`
	OrderedValue        decimal.Decimal `json:"ordered_value"`
	SavingsObtained     decimal.Decimal `json:"savings_obtained"`
	ApprovedSuppliers   int64           `json:"approved_suppliers"`
}

type ExecutiveDashboard struct {
	Contracts              int             `json:"contracts"`
	TotalOriginalValue     decimal.Decimal `json:"total_original_value"`
	TotalRealized          decimal.Decimal `json:"total_realized"`
	PercentRealizedTotal   decimal.Decimal `json:"percent_realized_total"`
	TotalSavings           decimal.Decimal `json:"total_savings"`
	PercentSavings         decimal.Decimal `json:"percent_savings"`
	TotalBalance           decimal.Decimal `json:"total_balance"`
	ReductionTargetMet     bool            `json:"reduction_target_met"`
	ContractsMeetingTarget int             `json:"contracts_meeting_target"`
}

// KPISummary holds either the supplies counters or the executive figures,
// depending on who asks.
type KPISummary struct {
	TotalPurchaseOrders  *int64           `json:"total_purchase_orders,omitempty"`
	SavingsObtained      *decimal.Decimal `json:"savings_obtained,omitempty"`
	ApprovedSuppliers    *int64           `json:"approved_suppliers,omitempty"`
	PercentRealizedTotal *decimal.Decimal `json:"percent_realized_total,omitempty"`
	TotalSavings         *decimal.Decimal `json:"total_savings,omitempty"`
	TotalBalance         *decimal.Decimal `json:"total_balance,omitempty"`
	ReductionTargetMet   *bool            `json:"reduction_target_met,omitempty"`
}

type ContractMetricsView struct {
	ContractID             uuid.UUID       `json:"contract_id"`
	ContractNumber         string          `json:"contract_number"`
	ProjectName            string          `json:"project_name"`
	Client                 string          `json:"client"`
	OriginalValue          decimal.Decimal `json:"original_value"`
	ReductionTargetPercent decimal.Decimal `json:"reduction_target_percent"`
	metrics.Metrics
}

type ReportFormat string

const (
	ReportExcel ReportFormat = "excel"
	ReportPDF   ReportFormat = "pdf"
)

type ReportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (s *DashboardService) Supplies(ctx context.Context, filter repository.DashboardFilter) (*SuppliesDashboard, error) {
	if err := validateDashboardFilter(filter); err != nil {
		return nil, err
	}
	contracts, portfolio, err := s.portfolio(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := s.purchases.OrderStats(ctx, contractIDs(contracts), filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	approved, err := s.purchases.CountApprovedSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	return &SuppliesDashboard{
		Contracts:           portfolio.Contracts,
		TotalPurchaseOrders: stats.Orders,
		OrderedValue:        stats.OrderedValue,
		SavingsObtained:     portfolio.TotalSavings,
		ApprovedSuppliers:   approved,
	}, nil
}

func (s *DashboardService) Executive(ctx context.Context, filter repository.DashboardFilter) (*ExecutiveDashboard, error) {
	if err := validateDashboardFilter(filter); err != nil {
		return nil, err
	}
	_, portfolio, err := s.portfolio(ctx, filter)
	if err != nil {
		return nil, err
	}
	return executiveFrom(portfolio), nil
}

// Summary narrows the KPIs to the caller's role: executives get the portfolio
// figures, everyone else the supplies counters.
func (s *DashboardService) Summary(ctx context.Context, principal model.Principal, contractID *uuid.UUID) (*KPISummary, error) {
	var filter repository.DashboardFilter
	if contractID != nil {
		filter.ContractIDs = []uuid.UUID{*contractID}
	}

	if !principal.IsExecutive() {
		supplies, err := s.Supplies(ctx, filter)
		if err != nil {
			return nil, err
		}
		return &KPISummary{
			TotalPurchaseOrders: &supplies.TotalPurchaseOrders,
			SavingsObtained:     &supplies.SavingsObtained,
			ApprovedSuppliers:   &supplies.ApprovedSuppliers,
		}, nil
	}

	executive, err := s.Executive(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &KPISummary{
		PercentRealizedTotal: &executive.PercentRealizedTotal,
		TotalSavings:         &executive.TotalSavings,
		TotalBalance:         &executive.TotalBalance,
		ReductionTargetMet:   &executive.ReductionTargetMet,
	}, nil
}

func (s *DashboardService) ContractMetrics(ctx context.Context, id uuid.UUID) (*ContractMetricsView, error) {
	contract, err := s.contracts.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	realized, err := s.purchases.RealizedValues(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return &ContractMetricsView{
		ContractID:             contract.ID,
		ContractNumber:         contract.ContractNumber,
		ProjectName:            contract.ProjectName,
		Client:                 contract.Client,
		OriginalValue:          contract.OriginalValue,
		ReductionTargetPercent: contract.ReductionTargetPercent,
		Metrics:                metrics.Compute(contract.OriginalValue, contract.ReductionTargetPercent, realized[id]),
	}, nil
}

// Report exports the executive view with one row per contract.
func (s *DashboardService) Report(ctx context.Context, format ReportFormat, filter repository.DashboardFilter) (*ReportFile, error) {
	var generator ReportGenerator
	var contentType, extension string
	switch format {
	case ReportExcel:
		generator = s.excel
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		extension = "xlsx"
	case ReportPDF:
		generator = s.pdf
		contentType = "application/pdf"
		extension = "pdf"
	default:
		return nil, fmt.Errorf("%w: format must be excel or pdf", ErrInvalidInput)
	}
	if err := validateDashboardFilter(filter); err != nil {
		return nil, err
	}

	contracts, err := s.contracts.ListForDashboard(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := contractIDs(contracts)
	realized, err := s.purchases.RealizedValues(ctx, ids)
	if err != nil {
		return nil, err
	}
	items, err := s.contracts.ListBudgetItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	report := model.PortfolioReport{
		GeneratedAt: generatedAt,
		Period:      describePeriod(filter),
		Rows:        make([]model.PortfolioRow, 0, len(contracts)),
	}
	for _, c := range contracts {
		c.BudgetItems = items[c.ID]
		m := metrics.Compute(c.OriginalValue, c.ReductionTargetPercent, realized[c.ID])
		report.Summary.Add(c.OriginalValue, m)
		report.Rows = append(report.Rows, model.PortfolioRow{Contract: c, Metrics: m})
	}
	report.Summary.Finish()

	content, err := generator.Generate(report)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("format", string(format)).Int("contracts", len(report.Rows)).Msg("portfolio report generated")

	return &ReportFile{
		FileName:    fmt.Sprintf("contracts-portfolio-%s.%s", generatedAt.Format("20060102-150405"), extension),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (s *DashboardService) portfolio(ctx context.Context, filter repository.DashboardFilter) ([]model.Contract, metrics.Portfolio, error) {
	var portfolio metrics.Portfolio
	contracts, err := s.contracts.ListForDashboard(ctx, filter)
	if err != nil {
		return nil, portfolio, err
	}
	realized, err := s.purchases.RealizedValues(ctx, contractIDs(contracts))
	if err != nil {
		return nil, portfolio, err
	}
	for _, c := range contracts {
		portfolio.Add(c.OriginalValue, metrics.Compute(c.OriginalValue, c.ReductionTargetPercent, realized[c.ID]))
	}
	portfolio.Finish()
	return contracts, portfolio, nil
}

func executiveFrom(p metrics.Portfolio) *ExecutiveDashboard {
	return &ExecutiveDashboard{
		Contracts:              p.Contracts,
		TotalOriginalValue:     p.TotalOriginalValue,
		TotalRealized:          p.TotalRealized,
		PercentRealizedTotal:   p.MeanPercentRealized,
		TotalSavings:           p.TotalSavings,
		PercentSavings:         p.MeanPercentSavings,
		TotalBalance:           p.TotalBalance,
		ReductionTargetMet:     p.TargetMet(),
		ContractsMeetingTarget: p.ContractsMeetingGoal,
	}
}

func validateDashboardFilter(filter repository.DashboardFilter) error {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return fmt.Errorf("%w: start_date must be before or equal to end_date", ErrInvalidInput)
	}
	return nil
}

func describePeriod(filter repository.DashboardFilter) string {
	parts := make([]string, 0, 2)
	if filter.From != nil {
		parts = append(parts, "from "+filter.From.Format("2006-01-02"))
	}
	if filter.To != nil {
		parts = append(parts, "to "+filter.To.Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return "all periods"
	}
	return strings.Join(parts, " ")
}

package service

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/config"
	"github.com/obrasplan/contracts-service/internal/metrics"
	"github.com/obrasplan/contracts-service/internal/model"
	"github.com/obrasplan/contracts-service/internal/repository"
)

// ContractStore is the persistence used by the contract lifecycle.
type ContractStore interface {
	List(ctx context.Context, filter repository.ListFilter) ([]model.Contract, int64, error)
	ListAll(ctx context.Context) ([]model.Contract, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	GetWithItems(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	CreateWithItems(ctx context.Context, contract *model.Contract, items []model.BudgetItem) error
	CountBudgetItems(ctx context.Context, contractIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) (*model.Contract, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RealizedValueSource sums invoice totals per contract.
type RealizedValueSource interface {
	RealizedValues(ctx context.Context, contractIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// BudgetImporter parses a budget spreadsheet. With a nil contract id it only
// extracts the total and the items; with an id it also stores the items.
type BudgetImporter interface {
	Import(ctx context.Context, content []byte, contractID *uuid.UUID) (*model.BudgetImportResult, error)
}

type ContractService struct {
	contracts       ContractStore
	realized        RealizedValueSource
	importer        BudgetImporter
	log             zerolog.Logger
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
}

func NewContractService(
	contracts ContractStore,
	realized RealizedValueSource,
	importer BudgetImporter,
	cfg *config.Config,
	log zerolog.Logger,
) *ContractService {
	return &ContractService{
		contracts:       contracts,
		realized:        realized,
		importer:        importer,
		log:             log,
		defaultPageSize: cfg.Contracts.DefaultPageSize,
		maxPageSize:     cfg.Contracts.MaxPageSize,
		now:             time.Now,
	}
}

// ContractView is a contract with its derived metrics.
type ContractView struct {
	model.Contract
	metrics.Metrics
	HasBudgetImport bool `json:"has_budget_import"`
}

type ListContractsInput struct {
	Skip   int
	Limit  int
	Client string
	Status string
}

type ContractPage struct {
	Contracts []ContractView `json:"contracts"`
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	PerPage   int            `json:"per_page"`
}

type ContractKPIs struct {
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	AvgProgress     decimal.Decimal `json:"avg_progress"`
	ActiveContracts int             `json:"active_contracts"`
	Contracts       int             `json:"contracts"`
}

type CreateContractInput struct {
	ContractNumber         string
	ProjectName            string
	Client                 string
	ContractType           model.ContractType
	OriginalValue          decimal.Decimal
	ReductionTargetPercent decimal.Decimal
	StartDate              time.Time
	PlannedEndDate         *time.Time
	Notes                  *string
	BudgetItems            []model.BudgetItem
	Principal              model.Principal
}

type ImportContractInput struct {
	FileName     string
	Content      []byte
	ProjectName  string
	Client       string
	ContractType model.ContractType
	StartDate    time.Time
	Description  *string
	Principal    model.Principal
}

type UpdateContractInput struct {
	ProjectName            *string
	Client                 *string
	OriginalValue          *decimal.Decimal
	ReductionTargetPercent *decimal.Decimal
	Status                 *model.ContractStatus
	PlannedEndDate         *time.Time
	ActualEndDate          *time.Time
	Notes                  *string
}

func (s *ContractService) List(ctx context.Context, input ListContractsInput) (*ContractPage, error) {
	if input.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", ErrInvalidInput)
	}
	if input.Limit == 0 {
		input.Limit = s.defaultPageSize
	}
	if input.Limit < 1 || input.Limit > s.maxPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, s.maxPageSize)
	}
	if input.Status != "" && !model.ContractStatus(input.Status).Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
	}

	contracts, total, err := s.contracts.List(ctx, repository.ListFilter{
		Skip:   input.Skip,
		Limit:  input.Limit,
		Client: input.Client,
		Status: input.Status,
	})
	if err != nil {
		return nil, err
	}

	views, err := s.views(ctx, contracts)
	if err != nil {
		return nil, err
	}
	return &ContractPage{
		Contracts: views,
		Total:     total,
		Page:      input.Skip/input.Limit + 1,
		PerPage:   input.Limit,
	}, nil
}

func (s *ContractService) Get(ctx context.Context, id uuid.UUID) (*ContractView, error) {
	contract, err := s.contracts.GetWithItems(ctx, id)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	return s.view(ctx, *contract, len(contract.BudgetItems) > 0)
}

// KPIs aggregates every contract using the invoiced amounts.
func (s *ContractService) KPIs(ctx context.Context) (*ContractKPIs, error) {
	contracts, err := s.contracts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	realized, err := s.realized.RealizedValues(ctx, contractIDs(contracts))
	if err != nil {
		return nil, err
	}

	var portfolio metrics.Portfolio
	kpis := &ContractKPIs{}
	for _, c := range contracts {
		portfolio.Add(c.OriginalValue, metrics.Compute(c.OriginalValue, c.ReductionTargetPercent, realized[c.ID]))
		if c.Status == model.ContractStatusActive {
			kpis.ActiveContracts++
		}
	}
	portfolio.Finish()

	kpis.Contracts = portfolio.Contracts
	kpis.TotalValue = portfolio.TotalOriginalValue
	kpis.TotalSpent = portfolio.TotalRealized
	kpis.AvgProgress = portfolio.MeanPercentRealized
	return kpis, nil
}

// CreateFromPayload stores a contract and its budget items atomically.
func (s *ContractService) CreateFromPayload(ctx context.Context, input CreateContractInput) (*ContractView, error) {
	input.ContractNumber = strings.TrimSpace(input.ContractNumber)
	if err := validateContractFields(input.ProjectName, input.Client, input.ContractType, input.StartDate); err != nil {
		return nil, err
	}
	if !input.OriginalValue.IsPositive() {
		return nil, fmt.Errorf("%w: original_value must be greater than zero", ErrInvalidInput)
	}
	if err := validatePercent(input.ReductionTargetPercent); err != nil {
		return nil, err
	}
	if input.PlannedEndDate != nil && input.PlannedEndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: planned_end_date must not be before start_date", ErrInvalidInput)
	}
	for i, item := range input.BudgetItems {
		if err := validateBudgetItem(item); err != nil {
			return nil, fmt.Errorf("%w (item %d)", err, i+1)
		}
	}

	if input.ContractNumber == "" {
		input.ContractNumber = s.nextContractNumber()
	} else {
		exists, err := s.contracts.ExistsByNumber(ctx, input.ContractNumber)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: contract number %s already exists", ErrInvalidInput, input.ContractNumber)
		}
	}

	contract := &model.Contract{
		ContractNumber:         input.ContractNumber,
		ProjectName:            strings.TrimSpace(input.ProjectName),
		Client:                 strings.TrimSpace(input.Client),
		ContractType:           input.ContractType,
		OriginalValue:          input.OriginalValue,
		ReductionTargetPercent: input.ReductionTargetPercent,
		Status:                 model.ContractStatusActive,
		StartDate:              input.StartDate,
		PlannedEndDate:         input.PlannedEndDate,
		Notes:                  input.Notes,
		CreatedBy:              input.Principal.UserID,
	}
	items := make([]model.BudgetItem, len(input.BudgetItems))
	copy(items, input.BudgetItems)

	if err := s.contracts.CreateWithItems(ctx, contract, items); err != nil {
		return nil, storeError(err, "contract")
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("contract_number", contract.ContractNumber).
		Int("budget_items", len(items)).
		Msg("contract created")

	return &ContractView{
		Contract:        *contract,
		Metrics:         metrics.Compute(contract.OriginalValue, contract.ReductionTargetPercent, decimal.Zero),
		HasBudgetImport: len(items) > 0,
	}, nil
}

var allowedBudgetExtensions = map[string]struct{}{
	".xlsx": {},
	".xlsm": {},
}

// CreateFromImport creates a contract whose value and budget come from the
// uploaded spreadsheet. See importSaga for the failure handling.
func (s *ContractService) CreateFromImport(ctx context.Context, input ImportContractInput) (*ContractView, error) {
	if len(input.Content) == 0 {
		return nil, fmt.Errorf("%w: budget file is required", ErrImportFailed)
	}
	if _, ok := allowedBudgetExtensions[strings.ToLower(filepath.Ext(input.FileName))]; !ok {
		return nil, fmt.Errorf("%w: budget file must be .xlsx or .xlsm", ErrImportFailed)
	}
	if err := validateContractFields(input.ProjectName, input.Client, input.ContractType, input.StartDate); err != nil {
		return nil, err
	}

	saga := newImportSaga(s.contracts, s.importer, s.log)
	contract, err := saga.run(ctx, input.Content, func(total decimal.Decimal) *model.Contract {
		return &model.Contract{
			ContractNumber:         s.nextContractNumber(),
			ProjectName:            strings.TrimSpace(input.ProjectName),
			Client:                 strings.TrimSpace(input.Client),
			ContractType:           input.ContractType,
			OriginalValue:          total,
			ReductionTargetPercent: decimal.Zero,
			Status:                 model.ContractStatusActive,
			StartDate:              input.StartDate,
			Notes:                  input.Description,
			CreatedBy:              input.Principal.UserID,
		}
	})
	if err != nil {
		return nil, err
	}

	return &ContractView{
		Contract:        *contract,
		Metrics:         metrics.Compute(contract.OriginalValue, contract.ReductionTargetPercent, decimal.Zero),
		HasBudgetImport: true,
	}, nil
}

func (s *ContractService) Update(ctx context.Context, id uuid.UUID, input UpdateContractInput) (*ContractView, error) {
	changes := make(map[string]interface{})
	if input.ProjectName != nil {
		if strings.TrimSpace(*input.ProjectName) == "" {
			return nil, fmt.Errorf("%w: project_name must not be empty", ErrInvalidInput)
		}
		changes["project_name"] = strings.TrimSpace(*input.ProjectName)
	}
	if input.Client != nil {
		if strings.TrimSpace(*input.Client) == "" {
			return nil, fmt.Errorf("%w: client must not be empty", ErrInvalidInput)
		}
		changes["client"] = strings.TrimSpace(*input.Client)
	}
	if input.OriginalValue != nil {
		if !input.OriginalValue.IsPositive() {
			return nil, fmt.Errorf("%w: original_value must be greater than zero", ErrInvalidInput)
		}
		changes["original_value"] = *input.OriginalValue
	}
	if input.ReductionTargetPercent != nil {
		if err := validatePercent(*input.ReductionTargetPercent); err != nil {
			return nil, err
		}
		changes["reduction_target_percent"] = *input.ReductionTargetPercent
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *input.Status)
		}
		changes["status"] = *input.Status
	}
	if input.PlannedEndDate != nil {
		current, err := s.contracts.Get(ctx, id)
		if err != nil {
			return nil, storeError(err, "contract")
		}
		if input.PlannedEndDate.Before(current.StartDate) {
			return nil, fmt.Errorf("%w: planned_end_date must not be before start_date", ErrInvalidInput)
		}
		changes["planned_end_date"] = *input.PlannedEndDate
	}
	if input.ActualEndDate != nil {
		changes["actual_end_date"] = *input.ActualEndDate
	}
	if input.Notes != nil {
		changes["notes"] = *input.Notes
	}

	contract, err := s.contracts.Update(ctx, id, changes)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	counts, err := s.contracts.CountBudgetItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *contract, counts[id] > 0)
}

func (s *ContractService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.contracts.Delete(ctx, id); err != nil {
		return storeError(err, "contract")
	}
	s.log.Info().Str("contract_id", id.String()).Msg("contract deleted")
	return nil
}

func (s *ContractService) view(ctx context.Context, contract model.Contract, hasItems bool) (*ContractView, error) {
	realized, err := s.realized.RealizedValues(ctx, []uuid.UUID{contract.ID})
	if err != nil {
		return nil, err
	}
	return &ContractView{
		Contract:        contract,
		Metrics:         metrics.Compute(contract.OriginalValue, contract.ReductionTargetPercent, realized[contract.ID]),
		HasBudgetImport: hasItems,
	}, nil
}

func (s *ContractService) views(ctx context.Context, contracts []model.Contract) ([]ContractView, error) {
	ids := contractIDs(contracts)
	realized, err := s.realized.RealizedValues(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts, err := s.contracts.CountBudgetItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ContractView, 0, len(contracts))
	for _, c := range contracts {
		views = append(views, ContractView{
			Contract:        c,
			Metrics:         metrics.Compute(c.OriginalValue, c.ReductionTargetPercent, realized[c.ID]),
			HasBudgetImport: counts[c.ID] > 0,
		})
	}
	return views, nil
}

func (s *ContractService) nextContractNumber() string {
	return fmt.Sprintf("CONT-%d-%d", s.now().Unix(), 1000+rand.Intn(9000))
}

func contractIDs(contracts []model.Contract) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ID)
	}
	return ids
}

func validateContractFields(projectName, client string, contractType model.ContractType, startDate time.Time) error {
	if strings.TrimSpace(projectName) == "" {
		return fmt.Errorf("%w: project_name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(client) == "" {
		return fmt.Errorf("%w: client is required", ErrInvalidInput)
	}
	if !contractType.Valid() {
		return fmt.Errorf("%w: contract_type must be material_product or service", ErrInvalidInput)
	}
	if startDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidInput)
	}
	return nil
}

func validatePercent(value decimal.Decimal) error {
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: reduction_target_percent must be between 0 and 100", ErrInvalidInput)
	}
	return nil
}

func validateBudgetItem(item model.BudgetItem) error {
	switch {
	case strings.TrimSpace(item.ItemCode) == "":
		return fmt.Errorf("%w: item_code is required", ErrInvalidInput)
	case strings.TrimSpace(item.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case strings.TrimSpace(item.CostCenter) == "":
		return fmt.Errorf("%w: cost_center is required", ErrInvalidInput)
	case item.PlannedTotalValue.IsNegative():
		return fmt.Errorf("%w: planned_total_value must not be negative", ErrInvalidInput)
	}
	return nil
}

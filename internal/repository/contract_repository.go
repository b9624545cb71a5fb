package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obrasplan/contracts-service/internal/model"
)

var (
	ErrDuplicateNumber = errors.New("duplicate number")
	ErrInUse           = errors.New("referenced by other records")
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

type ListFilter struct {
	Skip   int
	Limit  int
	Client string
	Status string
}

// DashboardFilter narrows the contract set of the dashboards. Every non-empty
// field is applied, all of them together.
type DashboardFilter struct {
	From        *time.Time
	To          *time.Time
	ContractIDs []uuid.UUID
	Client      string
	CostCenter  string
}

func (r *ContractRepository) List(ctx context.Context, filter ListFilter) ([]model.Contract, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Contract{})
	if client := strings.TrimSpace(filter.Client); client != "" {
		query = query.Where("LOWER(client) LIKE ?", "%"+strings.ToLower(client)+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var contracts []model.Contract
	err := query.
		Order("created_at DESC").
		Order("id").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Find(&contracts).Error
	if err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

func (r *ContractRepository) ListAll(ctx context.Context) ([]model.Contract, error) {
	var contracts []model.Contract
	if err := r.db.WithContext(ctx).Order("created_at").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ContractRepository) ListForDashboard(ctx context.Context, filter DashboardFilter) ([]model.Contract, error) {
	query := r.db.WithContext(ctx).Model(&model.Contract{})
	if filter.From != nil {
		query = query.Where("start_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_date <= ?", *filter.To)
	}
	if len(filter.ContractIDs) > 0 {
		query = query.Where("id IN ?", filter.ContractIDs)
	}
	if client := strings.TrimSpace(filter.Client); client != "" {
		query = query.Where("LOWER(client) LIKE ?", "%"+strings.ToLower(client)+"%")
	}
	if costCenter := strings.TrimSpace(filter.CostCenter); costCenter != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM budget_items bi WHERE bi.contract_id = contracts.id AND bi.cost_center = ?)",
			costCenter,
		)
	}

	var contracts []model.Contract
	if err := query.Order("start_date").Order("id").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ContractRepository) Get(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) GetWithItems(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).
		Preload("BudgetItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("item_code") }).
		First(&contract, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("contract_number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateWithItems inserts the contract and its budget items in one transaction.
func (r *ContractRepository) CreateWithItems(ctx context.Context, contract *model.Contract, items []model.BudgetItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("BudgetItems").Create(contract).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ContractID = contract.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		contract.BudgetItems = items
		return nil
	})
	return translate(err)
}

func (r *ContractRepository) CreateBudgetItems(ctx context.Context, contractID uuid.UUID, items []model.BudgetItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ContractID = contractID
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	return translate(err)
}

// ListBudgetItems loads the items of all given contracts in one query,
// grouped by contract.
func (r *ContractRepository) ListBudgetItems(ctx context.Context, contractIDs []uuid.UUID) (map[uuid.UUID][]model.BudgetItem, error) {
	result := make(map[uuid.UUID][]model.BudgetItem, len(contractIDs))
	if len(contractIDs) == 0 {
		return result, nil
	}

	var items []model.BudgetItem
	err := r.db.WithContext(ctx).
		Where("contract_id IN ?", contractIDs).
		Order("contract_id").
		Order("item_code").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ContractID] = append(result[item.ContractID], item)
	}
	return result, nil
}

// CountBudgetItems returns the number of items per contract; contracts without
// items are absent from the map.
func (r *ContractRepository) CountBudgetItems(ctx context.Context, contractIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	result := make(map[uuid.UUID]int64, len(contractIDs))
	if len(contractIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ContractID uuid.UUID
		Items      int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.BudgetItem{}).
		Select("contract_id, COUNT(*) AS items").
		Where("contract_id IN ?", contractIDs).
		Group("contract_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ContractID] = row.Items
	}
	return result, nil
}

// Update applies only the given columns.
func (r *ContractRepository) Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&contract, "id = ?", id).Error; err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&contract).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&contract, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &contract, nil
}

// Delete removes the budget items before the contract row so the foreign key
// from budget_items never points at a missing contract.
func (r *ContractRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Contract{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("contract_id = ?", id).Delete(&model.BudgetItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Contract{}).Error
	})
	return translate(err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateNumber
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrInUse
	default:
		return err
	}
}

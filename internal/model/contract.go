package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ContractType string

const (
	ContractTypeMaterialProduct ContractType = "material_product"
	ContractTypeService         ContractType = "service"
)

func (t ContractType) Valid() bool {
	return t == ContractTypeMaterialProduct || t == ContractTypeService
}

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
	ContractStatusSuspended ContractStatus = "suspended"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusActive, ContractStatusCompleted, ContractStatusCancelled, ContractStatusSuspended:
		return true
	default:
		return false
	}
}

type Contract struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ContractNumber         string          `gorm:"size:64;not null;uniqueIndex:uq_contract_number" json:"contract_number"`
	ProjectName            string          `gorm:"not null" json:"project_name"`
	Client                 string          `gorm:"not null;index" json:"client"`
	ContractType           ContractType    `gorm:"size:32;not null" json:"contract_type"`
	OriginalValue          decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"original_value"`
	ReductionTargetPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"reduction_target_percent"`
	Status                 ContractStatus  `gorm:"size:32;not null;default:active;index" json:"status"`
	StartDate              time.Time       `gorm:"not null" json:"start_date"`
	PlannedEndDate         *time.Time      `json:"planned_end_date,omitempty"`
	ActualEndDate          *time.Time      `json:"actual_end_date,omitempty"`
	Notes                  *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy              uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	BudgetItems            []BudgetItem    `gorm:"foreignKey:ContractID" json:"budget_items,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

func (c *Contract) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = ContractStatusActive
	}
	return nil
}

// BudgetItem is one planned line of a contract budget. Hours and salary are
// only filled for service contracts.
type BudgetItem struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"contract_id"`
	ItemCode             string           `gorm:"size:64;not null" json:"item_code"`
	Description          string           `gorm:"type:text;not null" json:"description"`
	CostCenter           string           `gorm:"size:128;not null;index" json:"cost_center"`
	Unit                 *string          `gorm:"size:32" json:"unit,omitempty"`
	PlannedQuantity      *decimal.Decimal `gorm:"type:numeric(15,4)" json:"planned_quantity,omitempty"`
	PlannedWeight        *decimal.Decimal `gorm:"type:numeric(15,4)" json:"planned_weight,omitempty"`
	PlannedUnitValue     *decimal.Decimal `gorm:"type:numeric(15,2)" json:"planned_unit_value,omitempty"`
	PlannedTotalValue    decimal.Decimal  `gorm:"type:numeric(15,2);not null" json:"planned_total_value"`
	PlannedNormalHours   *decimal.Decimal `gorm:"type:numeric(10,2)" json:"planned_normal_hours,omitempty"`
	PlannedOvertimeHours *decimal.Decimal `gorm:"type:numeric(10,2)" json:"planned_overtime_hours,omitempty"`
	PlannedSalary        *decimal.Decimal `gorm:"type:numeric(15,2)" json:"planned_salary,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (BudgetItem) TableName() string { return "budget_items" }

func (b *BudgetItem) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

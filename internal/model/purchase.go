package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Supplier struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	TaxID      *string   `gorm:"size:32;uniqueIndex:uq_supplier_tax_id" json:"tax_id,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `gorm:"size:32" json:"phone,omitempty"`
	Address    *string   `gorm:"type:text" json:"address,omitempty"`
	IsApproved bool      `gorm:"not null;default:false;index" json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Supplier) TableName() string { return "suppliers" }

func (s *Supplier) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type PurchaseOrderStatus string

const (
	PurchaseOrderOpen      PurchaseOrderStatus = "open"
	PurchaseOrderDelivered PurchaseOrderStatus = "delivered"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

// PurchaseOrder is an order placed against a contract with one supplier.
type PurchaseOrder struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"contract_id"`
	SupplierID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"supplier_id"`
	OrderNumber        string              `gorm:"size:64;not null;uniqueIndex:uq_purchase_order_number" json:"order_number"`
	TotalValue         decimal.Decimal     `gorm:"type:numeric(15,2);not null" json:"total_value"`
	IssuedAt           time.Time           `gorm:"not null;index" json:"issued_at"`
	ExpectedDeliveryAt *time.Time          `json:"expected_delivery_at,omitempty"`
	Status             PurchaseOrderStatus `gorm:"size:32;not null;default:open" json:"status"`
	Notes              *string             `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy          uuid.UUID           `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt          time.Time           `json:"created_at"`
	Contract           *Contract           `gorm:"foreignKey:ContractID" json:"-"`
	Supplier           *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Invoices           []Invoice           `gorm:"foreignKey:PurchaseOrderID" json:"invoices,omitempty"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

func (p *PurchaseOrder) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PurchaseOrderOpen
	}
	return nil
}

// Invoice is the supplier's billed document (nota fiscal) for a purchase order.
type Invoice struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	InvoiceNumber   string          `gorm:"size:64;not null" json:"invoice_number"`
	TotalValue      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"total_value"`
	IssuedAt        time.Time       `gorm:"not null" json:"issued_at"`
	DueAt           *time.Time      `json:"due_at,omitempty"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

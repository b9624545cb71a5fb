package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/model"
)

type PurchaseStore interface {
	CreateSupplier(ctx context.Context, supplier *model.Supplier) error
	GetSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	ApproveSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, order *model.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, contractID uuid.UUID) ([]model.PurchaseOrder, error)
	CreateInvoice(ctx context.Context, invoice *model.Invoice) error
}

type contractLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Contract, error)
}

// PurchaseService records suppliers, purchase orders and their invoices. The
// invoices are what realized value is computed from.
type PurchaseService struct {
	purchases PurchaseStore
	contracts contractLookup
	log       zerolog.Logger
}

func NewPurchaseService(purchases PurchaseStore, contracts contractLookup, log zerolog.Logger) *PurchaseService {
	return &PurchaseService{purchases: purchases, contracts: contracts, log: log}
}

type CreateSupplierInput struct {
	Name    string
	TaxID   *string
	Email   *string
	Phone   *string
	Address *string
}

type CreatePurchaseOrderInput struct {
	ContractID         uuid.UUID
	SupplierID         uuid.UUID
	OrderNumber        string
	TotalValue         decimal.Decimal
	IssuedAt           time.Time
	ExpectedDeliveryAt *time.Time
	Notes              *string
	Principal          model.Principal
}

type RegisterInvoiceInput struct {
	PurchaseOrderID uuid.UUID
	InvoiceNumber   string
	TotalValue      decimal.Decimal
	IssuedAt        time.Time
	DueAt           *time.Time
	Notes           *string
}

func (s *PurchaseService) CreateSupplier(ctx context.Context, input CreateSupplierInput) (*model.Supplier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	supplier := &model.Supplier{
		Name:    strings.TrimSpace(input.Name),
		TaxID:   trimmedOrNil(input.TaxID),
		Email:   trimmedOrNil(input.Email),
		Phone:   trimmedOrNil(input.Phone),
		Address: input.Address,
	}
	if err := s.purchases.CreateSupplier(ctx, supplier); err != nil {
		return nil, storeError(err, "supplier")
	}
	return supplier, nil
}

func (s *PurchaseService) ApproveSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	supplier, err := s.purchases.ApproveSupplier(ctx, id)
	if err != nil {
		return nil, storeError(err, "supplier")
	}
	s.log.Info().Str("supplier_id", id.String()).Msg("supplier approved")
	return supplier, nil
}

func (s *PurchaseService) CreatePurchaseOrder(ctx context.Context, input CreatePurchaseOrderInput) (*model.PurchaseOrder, error) {
	if strings.TrimSpace(input.OrderNumber) == "" {
		return nil, fmt.Errorf("%w: order_number is required", ErrInvalidInput)
	}
	if !input.TotalValue.IsPositive() {
		return nil, fmt.Errorf("%w: total_value must be greater than zero", ErrInvalidInput)
	}
	if input.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: issued_at is required", ErrInvalidInput)
	}

	contract, err := s.contracts.Get(ctx, input.ContractID)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	if contract.Status == model.ContractStatusCancelled {
		return nil, fmt.Errorf("%w: contract %s is cancelled", ErrInvalidInput, contract.ContractNumber)
	}
	if _, err := s.purchases.GetSupplier(ctx, input.SupplierID); err != nil {
		return nil, storeError(err, "supplier")
	}

	order := &model.PurchaseOrder{
		ContractID:         input.ContractID,
		SupplierID:         input.SupplierID,
		OrderNumber:        strings.TrimSpace(input.OrderNumber),
		TotalValue:         input.TotalValue,
		IssuedAt:           input.IssuedAt,
		ExpectedDeliveryAt: input.ExpectedDeliveryAt,
		Status:             model.PurchaseOrderOpen,
		Notes:              input.Notes,
		CreatedBy:          input.Principal.UserID,
	}
	if err := s.purchases.CreatePurchaseOrder(ctx, order); err != nil {
		return nil, storeError(err, "purchase order")
	}
	return order, nil
}

func (s *PurchaseService) RegisterInvoice(ctx context.Context, input RegisterInvoiceInput) (*model.Invoice, error) {
	if strings.TrimSpace(input.InvoiceNumber) == "" {
		return nil, fmt.Errorf("%w: invoice_number is required", ErrInvalidInput)
	}
	if !input.TotalValue.IsPositive() {
		return nil, fmt.Errorf("%w: total_value must be greater than zero", ErrInvalidInput)
	}
	if input.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: issued_at is required", ErrInvalidInput)
	}

	order, err := s.purchases.GetPurchaseOrder(ctx, input.PurchaseOrderID)
	if err != nil {
		return nil, storeError(err, "purchase order")
	}
	if order.Status == model.PurchaseOrderCancelled {
		return nil, fmt.Errorf("%w: purchase order %s is cancelled", ErrInvalidInput, order.OrderNumber)
	}

	invoice := &model.Invoice{
		PurchaseOrderID: order.ID,
		InvoiceNumber:   strings.TrimSpace(input.InvoiceNumber),
		TotalValue:      input.TotalValue,
		IssuedAt:        input.IssuedAt,
		DueAt:           input.DueAt,
		Notes:           input.Notes,
	}
	if err := s.purchases.CreateInvoice(ctx, invoice); err != nil {
		return nil, storeError(err, "invoice")
	}
	s.log.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("contract_id", order.ContractID.String()).
		Str("total_value", invoice.TotalValue.String()).
		Msg("invoice registered")
	return invoice, nil
}

func (s *PurchaseService) ListPurchaseOrders(ctx context.Context, contractID uuid.UUID) ([]model.PurchaseOrder, error) {
	if _, err := s.contracts.Get(ctx, contractID); err != nil {
		return nil, storeError(err, "contract")
	}
	return s.purchases.ListPurchaseOrders(ctx, contractID)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

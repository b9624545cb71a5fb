package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obrasplan/contracts-service/internal/model"
)

// moneyScale matches the numeric(15,2) money columns. Sums are rounded to it
// because sqlite aggregates numeric columns as floating point.
const moneyScale = 2

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// RealizedValues sums invoice totals per contract through the purchase orders.
// Contracts without invoices map to zero.
func (r *PurchaseRepository) RealizedValues(ctx context.Context, contractIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	result := make(map[uuid.UUID]decimal.Decimal, len(contractIDs))
	if len(contractIDs) == 0 {
		return result, nil
	}
	for _, id := range contractIDs {
		result[id] = decimal.Zero
	}

	var rows []struct {
		ContractID uuid.UUID
		Total      decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			po.contract_id,
			COALESCE(SUM(inv.total_value), 0) AS total
		FROM invoices inv
		JOIN purchase_orders po ON po.id = inv.purchase_order_id
		WHERE po.contract_id IN ?
		GROUP BY po.contract_id
	`, contractIDs).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ContractID] = row.Total.Round(moneyScale)
	}
	return result, nil
}

type OrderStats struct {
	Orders       int64
	OrderedValue decimal.Decimal
}

// OrderStats counts the non-cancelled purchase orders of the given contracts,
// optionally limited to orders issued inside [from, to].
func (r *PurchaseRepository) OrderStats(ctx context.Context, contractIDs []uuid.UUID, from, to *time.Time) (OrderStats, error) {
	if len(contractIDs) == 0 {
		return OrderStats{OrderedValue: decimal.Zero}, nil
	}

	query := r.db.WithContext(ctx).
		Model(&model.PurchaseOrder{}).
		Select("COUNT(*) AS orders, COALESCE(SUM(total_value), 0) AS ordered_value").
		Where("contract_id IN ?", contractIDs).
		Where("status <> ?", model.PurchaseOrderCancelled)
	if from != nil {
		query = query.Where("issued_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("issued_at <= ?", *to)
	}

	var stats OrderStats
	if err := query.Scan(&stats).Error; err != nil {
		return OrderStats{}, err
	}
	stats.OrderedValue = stats.OrderedValue.Round(moneyScale)
	return stats, nil
}

func (r *PurchaseRepository) CountApprovedSuppliers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Supplier{}).
		Where("is_approved = ?", true).
		Count(&count).Error
	return count, err
}

func (r *PurchaseRepository) CreateSupplier(ctx context.Context, supplier *model.Supplier) error {
	return translate(r.db.WithContext(ctx).Create(supplier).Error)
}

func (r *PurchaseRepository) GetSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *PurchaseRepository) ApproveSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&supplier, "id = ?", id).Error; err != nil {
			return err
		}
		supplier.IsApproved = true
		return tx.Model(&supplier).Update("is_approved", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *PurchaseRepository) CreatePurchaseOrder(ctx context.Context, order *model.PurchaseOrder) error {
	return translate(r.db.WithContext(ctx).Omit("Contract", "Supplier", "Invoices").Create(order).Error)
}

func (r *PurchaseRepository) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var order model.PurchaseOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *PurchaseRepository) ListPurchaseOrders(ctx context.Context, contractID uuid.UUID) ([]model.PurchaseOrder, error) {
	var orders []model.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Invoices", func(tx *gorm.DB) *gorm.DB { return tx.Order("issued_at") }).
		Where("contract_id = ?", contractID).
		Order("issued_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *PurchaseRepository) CreateInvoice(ctx context.Context, invoice *model.Invoice) error {
	return translate(r.db.WithContext(ctx).Create(invoice).Error)
}

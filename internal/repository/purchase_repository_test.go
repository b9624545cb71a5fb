package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/obrasplan/contracts-service/internal/db/dbtest"
	"github.com/obrasplan/contracts-service/internal/model"
	"github.com/obrasplan/contracts-service/internal/repository"
)

type purchaseFixture struct {
	contracts *repository.ContractRepository
	purchases *repository.PurchaseRepository
	supplier  *model.Supplier
}

func newPurchaseFixture(t *testing.T) purchaseFixture {
	t.Helper()
	database := dbtest.New(t)
	f := purchaseFixture{
		contracts: repository.NewContractRepository(database),
		purchases: repository.NewPurchaseRepository(database),
		supplier:  &model.Supplier{Name: "Concreto Sul"},
	}
	require.NoError(t, f.purchases.CreateSupplier(context.Background(), f.supplier))
	return f
}

func (f purchaseFixture) order(t *testing.T, contractID uuid.UUID, number string, total int64, issued time.Time, status model.PurchaseOrderStatus) *model.PurchaseOrder {
	t.Helper()
	order := &model.PurchaseOrder{
		ContractID:  contractID,
		SupplierID:  f.supplier.ID,
		OrderNumber: number,
		TotalValue:  decimal.NewFromInt(total),
		IssuedAt:    issued,
		Status:      status,
		CreatedBy:   uuid.New(),
	}
	require.NoError(t, f.purchases.CreatePurchaseOrder(context.Background(), order))
	return order
}

func (f purchaseFixture) invoice(t *testing.T, orderID uuid.UUID, number string, total decimal.Decimal) {
	t.Helper()
	require.NoError(t, f.purchases.CreateInvoice(context.Background(), &model.Invoice{
		PurchaseOrderID: orderID,
		InvoiceNumber:   number,
		TotalValue:      total,
		IssuedAt:        jan1,
	}))
}

func TestPurchaseRepositoryRealizedValuesSumsInvoices(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	billed := newContract("C-1", "Vale", jan1)
	idle := newContract("C-2", "Vale", jan1)
	require.NoError(t, f.contracts.CreateWithItems(ctx, billed, nil))
	require.NoError(t, f.contracts.CreateWithItems(ctx, idle, nil))

	first := f.order(t, billed.ID, "PO-1", 500, jan1, model.PurchaseOrderOpen)
	second := f.order(t, billed.ID, "PO-2", 500, jan1, model.PurchaseOrderDelivered)
	f.invoice(t, first.ID, "NF-1", decimal.RequireFromString("150.25"))
	f.invoice(t, first.ID, "NF-2", decimal.RequireFromString("100.50"))
	f.invoice(t, second.ID, "NF-1", decimal.NewFromInt(50))

	realized, err := f.purchases.RealizedValues(ctx, []uuid.UUID{billed.ID, idle.ID})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("300.75").Equal(realized[billed.ID]), realized[billed.ID].String())
	assert.True(t, realized[idle.ID].IsZero())

	empty, err := f.purchases.RealizedValues(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPurchaseRepositoryRealizedValuesKeepsCents(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	contract := newContract("C-1", "Vale", jan1)
	require.NoError(t, f.contracts.CreateWithItems(ctx, contract, nil))
	order := f.order(t, contract.ID, "PO-1", 1, jan1, model.PurchaseOrderOpen)
	f.invoice(t, order.ID, "NF-1", decimal.RequireFromString("0.10"))
	f.invoice(t, order.ID, "NF-2", decimal.RequireFromString("0.20"))

	realized, err := f.purchases.RealizedValues(ctx, []uuid.UUID{contract.ID})
	require.NoError(t, err)
	assert.Equal(t, "0.3", realized[contract.ID].String())
}

func TestPurchaseRepositoryInvoiceNumberIsUniquePerOrder(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	contract := newContract("C-1", "Vale", jan1)
	require.NoError(t, f.contracts.CreateWithItems(ctx, contract, nil))
	order := f.order(t, contract.ID, "PO-1", 500, jan1, model.PurchaseOrderOpen)
	f.invoice(t, order.ID, "NF-1", decimal.NewFromInt(10))

	err := f.purchases.CreateInvoice(ctx, &model.Invoice{
		PurchaseOrderID: order.ID,
		InvoiceNumber:   "NF-1",
		TotalValue:      decimal.NewFromInt(10),
		IssuedAt:        jan1,
	})
	require.ErrorIs(t, err, repository.ErrDuplicateNumber)
}

func TestPurchaseRepositoryOrderStats(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	contract := newContract("C-1", "Vale", jan1)
	require.NoError(t, f.contracts.CreateWithItems(ctx, contract, nil))
	f.order(t, contract.ID, "PO-1", 100, jan1, model.PurchaseOrderOpen)
	f.order(t, contract.ID, "PO-2", 200, jan1.AddDate(0, 2, 0), model.PurchaseOrderDelivered)
	f.order(t, contract.ID, "PO-3", 400, jan1, model.PurchaseOrderCancelled)

	stats, err := f.purchases.OrderStats(ctx, []uuid.UUID{contract.ID}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Orders)
	assert.True(t, decimal.NewFromInt(300).Equal(stats.OrderedValue))

	from := jan1.AddDate(0, 1, 0)
	stats, err = f.purchases.OrderStats(ctx, []uuid.UUID{contract.ID}, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Orders)

	stats, err = f.purchases.OrderStats(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Orders)
}

func TestPurchaseRepositoryApproveSupplier(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	count, err := f.purchases.CountApprovedSuppliers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	approved, err := f.purchases.ApproveSupplier(ctx, f.supplier.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	count, err = f.purchases.CountApprovedSuppliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = f.purchases.ApproveSupplier(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPurchaseRepositoryListPurchaseOrdersPreloads(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	contract := newContract("C-1", "Vale", jan1)
	require.NoError(t, f.contracts.CreateWithItems(ctx, contract, nil))
	order := f.order(t, contract.ID, "PO-1", 100, jan1, model.PurchaseOrderOpen)
	f.invoice(t, order.ID, "NF-1", decimal.NewFromInt(40))

	orders, err := f.purchases.ListPurchaseOrders(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].Supplier)
	assert.Equal(t, "Concreto Sul", orders[0].Supplier.Name)
	require.Len(t, orders[0].Invoices, 1)
	assert.Equal(t, "NF-1", orders[0].Invoices[0].InvoiceNumber)
}

package db

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/obrasplan/contracts-service/internal/model"
)

var migrations = []*gormigrate.Migration{
	{
		ID: "202410011200_create_contracts",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&model.Contract{}, &model.BudgetItem{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&model.BudgetItem{}, &model.Contract{})
		},
	},
	{
		ID: "202410151000_create_purchases",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&model.Supplier{}, &model.PurchaseOrder{}, &model.Invoice{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&model.Invoice{}, &model.PurchaseOrder{}, &model.Supplier{})
		},
	},
	{
		ID: "202411040900_index_invoice_number",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoice_order_number ON invoices (purchase_order_id, invoice_number)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS uq_invoice_order_number`).Error
		},
	},
}

func Migrate(database *gorm.DB) error {
	m := gormigrate.New(database, gormigrate.DefaultOptions, migrations)
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

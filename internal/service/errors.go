package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/obrasplan/contracts-service/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrImportFailed = errors.New("budget import failed")
)

// storeError maps repository failures onto the service taxonomy.
func storeError(err error, subject string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, subject)
	case errors.Is(err, repository.ErrDuplicateNumber):
		return fmt.Errorf("%w: %s number already exists", ErrInvalidInput, subject)
	case errors.Is(err, repository.ErrInUse):
		return fmt.Errorf("%w: %s is referenced by other records", ErrInvalidInput, subject)
	default:
		return err
	}
}

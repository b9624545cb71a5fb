package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/obrasplan/contracts-service/internal/model"
)

type ImportState string

const (
	ImportParsing         ImportState = "parsing"
	ImportCreating        ImportState = "creating"
	ImportPersistingItems ImportState = "persisting-items"
	ImportCommitted       ImportState = "committed"
	ImportCompensating    ImportState = "compensating"
	ImportFailed          ImportState = "failed"
)

var importTransitions = map[ImportState][]ImportState{
	ImportParsing:         {ImportCreating, ImportFailed},
	ImportCreating:        {ImportPersistingItems, ImportFailed},
	ImportPersistingItems: {ImportCommitted, ImportCompensating},
	ImportCompensating:    {ImportFailed},
}

// contractWriter is the slice of the store the saga needs.
type contractWriter interface {
	CreateWithItems(ctx context.Context, contract *model.Contract, items []model.BudgetItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// importSaga creates a contract from a budget spreadsheet in three steps:
// parse the file, insert the contract with the extracted total, then import
// the items bound to the new contract. The last step runs outside the
// contract insert, so a failure there deletes the contract again.
type importSaga struct {
	contracts contractWriter
	importer  BudgetImporter
	log       zerolog.Logger
	state     ImportState
	trace     []ImportState
}

func newImportSaga(contracts contractWriter, importer BudgetImporter, log zerolog.Logger) *importSaga {
	return &importSaga{
		contracts: contracts,
		importer:  importer,
		log:       log.With().Str("flow", "contract_import").Logger(),
		state:     ImportParsing,
		trace:     []ImportState{ImportParsing},
	}
}

func (s *importSaga) advance(next ImportState) {
	for _, allowed := range importTransitions[s.state] {
		if allowed == next {
			s.log.Debug().Str("from", string(s.state)).Str("to", string(next)).Msg("import state")
			s.state = next
			s.trace = append(s.trace, next)
			return
		}
	}
	panic(fmt.Sprintf("import saga: illegal transition %s -> %s", s.state, next))
}

func (s *importSaga) fail(err error) error {
	s.advance(ImportFailed)
	return err
}

func (s *importSaga) run(ctx context.Context, content []byte, build func(total decimal.Decimal) *model.Contract) (*model.Contract, error) {
	parsed, err := s.importer.Import(ctx, content, nil)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %v", ErrImportFailed, err))
	}
	if !parsed.Success {
		return nil, s.fail(fmt.Errorf("%w: %s", ErrImportFailed, strings.Join(parsed.Errors, "; ")))
	}
	if !parsed.ContractTotalValue.IsPositive() {
		return nil, s.fail(fmt.Errorf("%w: could not extract the contract total value", ErrImportFailed))
	}

	s.advance(ImportCreating)
	contract := build(parsed.ContractTotalValue)
	if err := s.contracts.CreateWithItems(ctx, contract, nil); err != nil {
		return nil, s.fail(storeError(err, "contract"))
	}

	s.advance(ImportPersistingItems)
	stored, err := s.importer.Import(ctx, content, &contract.ID)
	if err == nil && !stored.Success {
		err = errors.New(strings.Join(stored.Errors, "; "))
	}
	if err != nil {
		cause := fmt.Errorf("%w: saving budget items: %v", ErrImportFailed, err)
		return nil, s.compensate(ctx, contract.ID, cause)
	}

	s.advance(ImportCommitted)
	contract.BudgetItems = stored.Items
	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("contract_number", contract.ContractNumber).
		Int("budget_items", len(stored.Items)).
		Msg("contract imported")
	return contract, nil
}

// compensate removes the contract created by the saga. The returned error is
// always the original cause; a failed delete is only attached as context.
func (s *importSaga) compensate(ctx context.Context, contractID uuid.UUID, cause error) error {
	s.advance(ImportCompensating)
	if err := s.contracts.Delete(context.WithoutCancel(ctx), contractID); err != nil {
		s.log.Error().Err(err).Str("contract_id", contractID.String()).Msg("compensating delete failed")
		return s.fail(fmt.Errorf("%w (rollback of contract %s failed: %v)", cause, contractID, err))
	}
	s.log.Warn().Err(cause).Str("contract_id", contractID.String()).Msg("contract import rolled back")
	return s.fail(cause)
}

package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/universal-brc20/indexer/internal/postgres"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
)

// Repository implements the module datagateways on PostgreSQL. A repository
// returned by BeginBRC20Tx runs every statement inside that transaction.
type Repository struct {
	db postgres.Queryable
	tx pgx.Tx
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ datagateway.BRC20DataGateway       = (*Repository)(nil)
	_ datagateway.IndexerInfoDataGateway = (*Repository)(nil)
)

// BeginBRC20Tx returns a new repository bound to a started transaction.
func (r *Repository) BeginBRC20Tx(ctx context.Context) (datagateway.BRC20DataGatewayWithTx, error) {
	txer, ok := r.db.(postgres.TxQueryable)
	if !ok {
		return nil, errors.New("underlying db does not support transactions")
	}
	tx, err := txer.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	return &Repository{db: tx, tx: tx}, nil
}

func (r *Repository) Commit(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	if err := r.tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	r.tx = nil
	return nil
}

func (r *Repository) Rollback(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "failed to rollback transaction")
	}
	r.tx = nil
	return nil
}

package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

func (r *Repository) GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, client_version, db_version, event_hash_version, network, created_at
		FROM brc20_indexer_states
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	var state entity.IndexerState
	var network string
	if err := row.Scan(&state.Id, &state.ClientVersion, &state.DBVersion, &state.EventHashVersion, &network, &state.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.IndexerState{}, errors.WithStack(errs.NotFound)
		}
		return entity.IndexerState{}, errors.Wrap(err, "error during query")
	}
	state.Network = common.Network(network)
	return state, nil
}

func (r *Repository) CreateIndexerState(ctx context.Context, state entity.IndexerState) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO brc20_indexer_states (client_version, db_version, event_hash_version, network)
		VALUES ($1, $2, $3, $4)
	`, state.ClientVersion, state.DBVersion, state.EventHashVersion, string(state.Network)); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

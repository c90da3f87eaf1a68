package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
)

func (u *Usecase) GetBalancesByPkScript(ctx context.Context, pkScript string) ([]*entity.Balance, error) {
	balances, err := u.dg.GetBalancesByPkScript(ctx, pkScript)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetBalancesByPkScript")
	}
	return balances, nil
}

func (u *Usecase) GetHoldersByTick(ctx context.Context, tick string, limit, offset int32) ([]*entity.Balance, error) {
	normalized, _, err := protocol.NormalizeTicker(tick)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	balances, err := u.dg.GetBalancesByTick(ctx, normalized, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetBalancesByTick")
	}
	return balances, nil
}

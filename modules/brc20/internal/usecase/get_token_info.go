package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
)

// TokenInfo joins the deploy entry with its supply decomposition.
type TokenInfo struct {
	Entry  *entity.DeployEntry
	Supply *entity.Supply
}

func (u *Usecase) GetTokenInfo(ctx context.Context, tick string) (*TokenInfo, error) {
	normalized, _, err := protocol.NormalizeTicker(tick)
	if err != nil {
		return nil, errs.WithPublicMessage(errors.Wrap(errs.InvalidArgument, err.Error()), "invalid ticker")
	}
	entry, err := u.dg.GetDeployEntryByTick(ctx, normalized)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetDeployEntryByTick")
	}
	supply, err := u.dg.GetSupply(ctx, normalized)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return nil, errors.Wrap(err, "error during GetSupply")
		}
		supply = &entity.Supply{Tick: normalized}
	}
	return &TokenInfo{Entry: entry, Supply: supply}, nil
}

package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

func (u *Usecase) GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	block, err := u.dg.GetLatestIndexedBlock(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetLatestIndexedBlock")
	}
	return block, nil
}

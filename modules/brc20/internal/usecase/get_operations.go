package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

func (u *Usecase) GetOperationLogs(ctx context.Context, filter datagateway.OperationLogFilter, limit, offset int32) ([]*entity.OperationLog, error) {
	logs, err := u.dg.GetOperationLogs(ctx, filter, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetOperationLogs")
	}
	return logs, nil
}

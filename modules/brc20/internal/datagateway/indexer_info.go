package datagateway

import (
	"context"

	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

type IndexerInfoDataGateway interface {
	GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error)
	CreateIndexerState(ctx context.Context, state entity.IndexerState) error
}

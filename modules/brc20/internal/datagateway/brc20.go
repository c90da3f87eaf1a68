package datagateway

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

type BRC20DataGateway interface {
	BRC20ReaderDataGateway
	BRC20WriterDataGateway

	// BeginBRC20Tx returns a new BRC20DataGateway with transaction enabled. All write operations performed in this datagateway must be committed to persist changes.
	BeginBRC20Tx(ctx context.Context) (BRC20DataGatewayWithTx, error)
}

type BRC20DataGatewayWithTx interface {
	BRC20DataGateway
	Tx
}

type BRC20ReaderDataGateway interface {
	// GetLatestIndexedBlock returns errs.NotFound when no block has been
	// committed yet.
	GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error)
	GetIndexedBlockByHeight(ctx context.Context, height uint64) (*entity.IndexedBlock, error)

	GetDeployEntryByTick(ctx context.Context, tick string) (*entity.DeployEntry, error)
	GetBalance(ctx context.Context, pkScript, tick string) (uint128.Uint128, error)
	GetSupply(ctx context.Context, tick string) (*entity.Supply, error)
	GetLegacyTokenByTick(ctx context.Context, tick string) (*entity.LegacyToken, error)

	GetBalancesByPkScript(ctx context.Context, pkScript string) ([]*entity.Balance, error)
	GetBalancesByTick(ctx context.Context, tick string, limit, offset int32) ([]*entity.Balance, error)
	GetOperationLogs(ctx context.Context, filter OperationLogFilter, limit, offset int32) ([]*entity.OperationLog, error)
}

type BRC20WriterDataGateway interface {
	// AddBalance upserts (pkScript, tick) and credits the amount.
	AddBalance(ctx context.Context, pkScript, tick string, amount uint128.Uint128, blockHeight uint64) error
	// SubBalance debits the amount. Returns errs.InvalidArgument when the
	// stored balance is below the amount; nothing is written in that case.
	SubBalance(ctx context.Context, pkScript, tick string, amount uint128.Uint128, blockHeight uint64) error

	// CreateDeployEntry returns errs.Duplicate when the tick already exists.
	CreateDeployEntry(ctx context.Context, entry *entity.DeployEntry) error
	DeleteDeployEntryByTick(ctx context.Context, tick string) error

	// AddSupply credits one bucket of the supply row, creating it on first use.
	AddSupply(ctx context.Context, tick string, field entity.SupplyField, amount uint128.Uint128, blockHeight uint64) error
	// SubSupply debits one bucket. Returns errs.InvalidArgument on underflow.
	SubSupply(ctx context.Context, tick string, field entity.SupplyField, amount uint128.Uint128, blockHeight uint64) error

	CreateLegacyToken(ctx context.Context, token *entity.LegacyToken) error
	DeleteLegacyTokenByTick(ctx context.Context, tick string) error

	CreateOperationLogs(ctx context.Context, logs []*entity.OperationLog) error
	DeleteOperationLogsSinceHeight(ctx context.Context, height uint64) error

	CreateIndexedBlock(ctx context.Context, block *entity.IndexedBlock) error
	DeleteIndexedBlocksSinceHeight(ctx context.Context, height uint64) error
}

// OperationLogFilter narrows an operation log query. Zero values mean no
// constraint on that field.
type OperationLogFilter struct {
	Tick        string
	TxHash      *chainhash.Hash
	FromHeight  uint64
	ToHeight    uint64
	OnlyValid   bool
	OnlyInvalid bool
}

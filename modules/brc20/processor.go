package brc20

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/core/indexer"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/modules/brc20/config"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/opi"
	"github.com/universal-brc20/indexer/pkg/btcclient"
	"github.com/universal-brc20/indexer/pkg/logger"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
)

// Make sure to implement the Bitcoin Processor interface
var _ indexer.Processor[*types.Block] = (*Processor)(nil)

type Processor struct {
	brc20Dg         datagateway.BRC20DataGateway
	indexerInfoDg   datagateway.IndexerInfoDataGateway
	btcClient       btcclient.Contract
	network         common.Network
	registry        *opi.Registry
	retry           config.RetryConfig
	startHeight     uint64
	payloadMaxBytes int
	cleanupFuncs    []func(context.Context) error

	// cache of previous output scripts for sender resolution
	pkScriptCache *lru.Cache[wire.OutPoint, []byte]
}

const pkScriptCacheSize = 100000

func NewProcessor(
	brc20Dg datagateway.BRC20DataGateway,
	indexerInfoDg datagateway.IndexerInfoDataGateway,
	btcClient btcclient.Contract,
	network common.Network,
	registry *opi.Registry,
	retry config.RetryConfig,
	startHeight uint64,
	payloadMaxBytes int,
	cleanupFuncs []func(context.Context) error,
) (*Processor, error) {
	pkScriptCache, err := lru.New[wire.OutPoint, []byte](pkScriptCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pkScriptCache")
	}

	return &Processor{
		brc20Dg:         brc20Dg,
		indexerInfoDg:   indexerInfoDg,
		btcClient:       btcClient,
		network:         network,
		registry:        registry,
		retry:           retry,
		startHeight:     startHeight,
		payloadMaxBytes: payloadMaxBytes,
		cleanupFuncs:    cleanupFuncs,
		pkScriptCache:   pkScriptCache,
	}, nil
}

// Name implements indexer.Processor.
func (p *Processor) Name() string {
	return "brc20"
}

// VerifyStates implements indexer.Processor.
func (p *Processor) VerifyStates(ctx context.Context) error {
	indexerState, err := p.indexerInfoDg.GetLatestIndexerState(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "failed to get latest indexer state")
	}
	// if not found, create indexer state
	if errors.Is(err, errs.NotFound) {
		if err := p.indexerInfoDg.CreateIndexerState(ctx, entity.IndexerState{
			ClientVersion:    ClientVersion,
			DBVersion:        DBVersion,
			EventHashVersion: EventHashVersion,
			Network:          p.network,
		}); err != nil {
			return errors.Wrap(err, "failed to set indexer state")
		}
		return nil
	}
	if indexerState.DBVersion != DBVersion {
		return errors.Wrapf(errs.ConflictSetting, "db version mismatch: current version is %d, expected %d. Please migrate the database first", indexerState.DBVersion, DBVersion)
	}
	if indexerState.EventHashVersion != EventHashVersion {
		return errors.Wrapf(errs.ConflictSetting, "commit checksum version mismatch: current version is %d, expected %d. Please reset the database first", indexerState.EventHashVersion, EventHashVersion)
	}
	if indexerState.Network != p.network {
		return errors.Wrapf(errs.ConflictSetting, "network mismatch: latest indexed network is %q, configured network is %q. If you want to change the network, please reset the database", indexerState.Network, p.network)
	}
	return nil
}

// startingBlock returns the header right before the first block to index,
// taking the configured start height override into account.
func (p *Processor) startingBlock() types.BlockHeader {
	if p.startHeight > 0 {
		return types.BlockHeader{
			Height: int64(p.startHeight) - 1,
			Hash:   common.ZeroHash,
		}
	}
	return startingBlockHeader[p.network]
}

// CurrentBlock implements indexer.Processor.
func (p *Processor) CurrentBlock(ctx context.Context) (types.BlockHeader, error) {
	block, err := p.brc20Dg.GetLatestIndexedBlock(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return p.startingBlock(), nil
		}
		return types.BlockHeader{}, errors.Wrap(err, "failed to get latest indexed block")
	}
	return types.BlockHeader{
		Height: int64(block.Height),
		Hash:   block.Hash,
	}, nil
}

// GetIndexedBlock implements indexer.Processor.
func (p *Processor) GetIndexedBlock(ctx context.Context, height int64) (types.BlockHeader, error) {
	block, err := p.brc20Dg.GetIndexedBlockByHeight(ctx, uint64(height))
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to get indexed block")
	}
	return types.BlockHeader{
		Height: int64(block.Height),
		Hash:   block.Hash,
	}, nil
}

// RevertData implements indexer.Processor. Every block from the tip down to
// `from` is reverted by applying the inverse of its stored commit plan after
// verifying the plan against its checksum.
func (p *Processor) RevertData(ctx context.Context, from int64) error {
	latest, err := p.brc20Dg.GetLatestIndexedBlock(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to get latest indexed block")
	}

	brc20DgTx, err := p.brc20Dg.BeginBRC20Tx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err := brc20DgTx.Rollback(ctx); err != nil {
			logger.WarnContext(ctx, "failed to rollback transaction",
				slogx.Error(err),
				slogx.String("event", "rollback_brc20_revert"),
			)
		}
	}()

	for height := int64(latest.Height); height >= from; height-- {
		block, err := p.brc20Dg.GetIndexedBlockByHeight(ctx, uint64(height))
		if err != nil {
			return errors.Wrapf(err, "failed to get indexed block %d", height)
		}
		if checksum := calculateCommitChecksum(block.CommitPlan); !checksum.IsEqual(&block.CommitChecksum) {
			return errors.Wrapf(errs.InternalError, "commit checksum mismatch at height %d: stored %s, calculated %s. Database is corrupted, please reset and re-index", height, block.CommitChecksum, checksum)
		}
		if err := applyCommitPlan(ctx, brc20DgTx, block.CommitPlan.Inverse(), uint64(height)); err != nil {
			return errors.Wrapf(err, "failed to revert block %d", height)
		}
		logger.InfoContext(ctx, "Reverted block",
			slogx.String("event", "revert_block"),
			slogx.Int64("height", height),
		)
	}

	if err := brc20DgTx.DeleteOperationLogsSinceHeight(ctx, uint64(from)); err != nil {
		return errors.Wrap(err, "failed to delete operation logs")
	}
	if err := brc20DgTx.DeleteIndexedBlocksSinceHeight(ctx, uint64(from)); err != nil {
		return errors.Wrap(err, "failed to delete indexed blocks")
	}

	if err := brc20DgTx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Shutdown implements indexer.Processor.
func (p *Processor) Shutdown(ctx context.Context) error {
	var errList []error
	for _, cleanup := range p.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.WithStack(errors.Join(errList...))
}

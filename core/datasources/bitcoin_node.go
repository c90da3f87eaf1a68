package datasources

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/internal/subscription"
	"github.com/universal-brc20/indexer/pkg/btcclient"
	"github.com/universal-brc20/indexer/pkg/logger"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultFetchConcurrency is the number of block fetches in flight per chunk.
	defaultFetchConcurrency = 8

	// defaultChunkSize is the number of blocks emitted per batch.
	defaultChunkSize = 10
)

// Make sure to implement the Datasource and the Bitcoin client contract.
var (
	_ Datasource[*types.Block] = (*BitcoinNodeDatasource)(nil)
	_ btcclient.Contract       = (*BitcoinNodeDatasource)(nil)
)

// BitcoinNodeDatasource fetches blocks from a Bitcoin Core RPC node.
type BitcoinNodeDatasource struct {
	btcclient   *rpcclient.Client
	concurrency int
	chunkSize   int64
}

type BitcoinNodeOption func(*BitcoinNodeDatasource)

// WithFetchConcurrency sets how many blocks are prefetched in parallel.
func WithFetchConcurrency(n int) BitcoinNodeOption {
	return func(d *BitcoinNodeDatasource) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func NewBitcoinNode(client *rpcclient.Client, options ...BitcoinNodeOption) *BitcoinNodeDatasource {
	datasource := &BitcoinNodeDatasource{
		btcclient:   client,
		concurrency: defaultFetchConcurrency,
		chunkSize:   defaultChunkSize,
	}
	for _, option := range options {
		option(datasource)
	}
	return datasource
}

func (d *BitcoinNodeDatasource) Name() string {
	return "bitcoin-node"
}

// Fetch polling blocks from Bitcoin node
//
//   - from: block height to start fetching, if -1, it will start from genesis block
//   - to: block height to stop fetching, if -1, it will fetch until the latest block
func (d *BitcoinNodeDatasource) Fetch(ctx context.Context, from, to int64) ([]*types.Block, error) {
	ch := make(chan []*types.Block)
	subscription, err := d.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer subscription.Unsubscribe()

	blocks := make([]*types.Block, 0)
	for {
		select {
		case b := <-ch:
			blocks = append(blocks, b...)
		case <-subscription.Done():
			return blocks, nil
		case err := <-subscription.Err():
			if err != nil {
				return nil, errors.Wrap(err, "got error while fetching blocks")
			}
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "context done")
		}
	}
}

// FetchAsync polling blocks from Bitcoin node asynchronously (non-blocking)
//
//   - from: block height to start fetching, if -1, it will start from genesis block
//   - to: block height to stop fetching, if -1, it will fetch until the latest block
func (d *BitcoinNodeDatasource) FetchAsync(ctx context.Context, from, to int64, ch chan<- []*types.Block) (*subscription.ClientSubscription[[]*types.Block], error) {
	start, end, skip, err := d.prepareRange(from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare fetch range")
	}

	out := subscription.NewSubscription(ch)
	if skip {
		if err := out.UnsubscribeWithContext(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to unsubscribe")
		}
		return out.Client(), nil
	}

	go func() {
		defer out.Unsubscribe()

		for chunkStart := start; chunkStart <= end; chunkStart += d.chunkSize {
			chunkEnd := min(chunkStart+d.chunkSize-1, end)

			blocks, err := d.fetchChunk(ctx, chunkStart, chunkEnd)
			if err != nil {
				if sendErr := out.SendError(ctx, errors.WithStack(err)); sendErr != nil {
					logger.WarnContext(ctx, "Failed to send datasource error to subscription client",
						slogx.Error(sendErr),
					)
				}
				return
			}

			if err := out.Send(ctx, blocks); err != nil {
				// closed by the consumer, stop fetching
				return
			}
		}
	}()

	return out.Client(), nil
}

// fetchChunk fetches a contiguous range of blocks, preserving height order.
func (d *BitcoinNodeDatasource) fetchChunk(ctx context.Context, from, to int64) ([]*types.Block, error) {
	blocks := make([]*types.Block, to-from+1)
	group, groupctx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for height := from; height <= to; height++ {
		height := height
		group.Go(func() error {
			if err := groupctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			hash, err := d.btcclient.GetBlockHash(height)
			if err != nil {
				return errors.Wrapf(err, "failed to get block hash, height: %d", height)
			}
			msgBlock, err := d.btcclient.GetBlock(hash)
			if err != nil {
				return errors.Wrapf(err, "failed to get block, height: %d", height)
			}
			blocks[height-from] = types.ParseMsgBlock(msgBlock, height)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(errs.Retryable, err.Error())
	}
	return blocks, nil
}

// GetBlockHeader returns the block header of the given height from the node.
func (d *BitcoinNodeDatasource) GetBlockHeader(ctx context.Context, height int64) (types.BlockHeader, error) {
	hash, err := d.btcclient.GetBlockHash(height)
	if err != nil {
		return types.BlockHeader{}, errors.Wrapf(err, "failed to get block hash, height: %d", height)
	}
	header, err := d.btcclient.GetBlockHeader(hash)
	if err != nil {
		return types.BlockHeader{}, errors.Wrapf(err, "failed to get block header, hash: %s", hash)
	}
	return types.BlockHeader{
		Hash:       header.BlockHash(),
		Height:     height,
		Version:    header.Version,
		PrevBlock:  header.PrevBlock,
		MerkleRoot: header.MerkleRoot,
		Timestamp:  header.Timestamp,
		Bits:       header.Bits,
		Nonce:      header.Nonce,
	}, nil
}

// GetRawTransactionAndHeightByTxHash implements btcclient.Contract. Used to
// resolve the previous outputs of transaction inputs.
func (d *BitcoinNodeDatasource) GetRawTransactionAndHeightByTxHash(ctx context.Context, txHash chainhash.Hash) (*wire.MsgTx, int64, error) {
	verbose, err := d.btcclient.GetRawTransactionVerbose(&txHash)
	if err != nil {
		return nil, -1, errors.Wrapf(err, "failed to get raw transaction, hash: %s", txHash)
	}
	rawTx, err := d.btcclient.GetRawTransaction(&txHash)
	if err != nil {
		return nil, -1, errors.Wrapf(err, "failed to get raw transaction, hash: %s", txHash)
	}
	var height int64 = -1
	if verbose.BlockHash != "" {
		blockHash, err := chainhash.NewHashFromStr(verbose.BlockHash)
		if err != nil {
			return nil, -1, errors.Wrap(err, "failed to parse block hash")
		}
		verboseHeader, err := d.btcclient.GetBlockHeaderVerbose(blockHash)
		if err != nil {
			return nil, -1, errors.Wrapf(err, "failed to get block header, hash: %s", blockHash)
		}
		height = int64(verboseHeader.Height)
	}
	return rawTx.MsgTx(), height, nil
}

func (d *BitcoinNodeDatasource) prepareRange(fromHeight, toHeight int64) (start, end int64, skip bool, err error) {
	start = fromHeight
	end = toHeight

	// get current bitcoin block height
	latestBlockHeight, err := d.btcclient.GetBlockCount()
	if err != nil {
		return -1, -1, false, errors.Wrap(err, "failed to get block count")
	}

	// set start to genesis block height
	if start < 0 {
		start = 0
	}

	// set end to current bitcoin block height if
	// - end is -1
	// - end is greater than current bitcoin block height
	if end < 0 || end > latestBlockHeight {
		end = latestBlockHeight
	}

	// if start is greater than end, skip this round
	if start > end {
		return -1, -1, true, nil
	}

	return start, end, false, nil
}

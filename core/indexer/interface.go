package indexer

import (
	"context"

	"github.com/universal-brc20/indexer/core/types"
)

// Input is a generic input for the indexer with block header information.
type Input interface {
	BlockHeader() types.BlockHeader
}

// Processor is a generic processor for the indexer.
type Processor[T Input] interface {
	// Name returns the name of the processor. Used for logging.
	Name() string

	// Process processes a batch of inputs. The whole batch must be committed
	// atomically per block, or not at all.
	Process(ctx context.Context, inputs []T) error

	// CurrentBlock returns the latest indexed block header.
	CurrentBlock(ctx context.Context) (types.BlockHeader, error)

	// GetIndexedBlock returns the indexed block header by height.
	GetIndexedBlock(ctx context.Context, height int64) (types.BlockHeader, error)

	// RevertData reverts all indexed data from the given height (inclusive).
	RevertData(ctx context.Context, from int64) error

	// Shutdown cleans up processor resources.
	Shutdown(ctx context.Context) error
}

// IndexerWorker is an interface for module workers driven by the main process.
type IndexerWorker interface {
	Run(ctx context.Context) error
	ShutdownWithContext(ctx context.Context) error
}

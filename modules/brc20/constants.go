package brc20

import (
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/core/types"
)

const (
	ClientVersion    = "v0.0.1"
	DBVersion        = 1
	EventHashVersion = 1
)

// startingBlockHeader holds the block right before the first indexed block for
// each network. The hash is left zeroed because indexing starts from a fixed
// activation height rather than a checkpointed block.
var startingBlockHeader = map[common.Network]types.BlockHeader{
	common.NetworkMainnet: {
		Height: 895533,
		Hash:   common.ZeroHash,
	},
	common.NetworkTestnet: {
		Height: 2874999,
		Hash:   common.ZeroHash,
	},
}

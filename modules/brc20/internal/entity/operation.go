package entity

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
)

// Operation is a decoded payload with its transaction context, ready to be
// routed to an operation processor. It is not persisted; the outcome is
// recorded as an OperationLog.
type Operation struct {
	Payload *protocol.Payload
	Tx      *types.Transaction

	BlockHeight uint64
	BlockHash   chainhash.Hash
	BlockTime   time.Time
	TxIndex     uint32

	// SenderPkScript is the hex-encoded script of the first resolvable input.
	// Empty when resolution failed or was not attempted.
	SenderPkScript string
}

// OperationLog is the audit record of one processed operation, valid or not.
type OperationLog struct {
	Id           int64
	TxHash       chainhash.Hash
	OpTag        string
	Tick         string
	AmountRaw    string
	BlockHeight  uint64
	BlockHash    chainhash.Hash
	TxIndex      uint32
	SubIndex     int32
	FromPkScript string
	ToPkScript   string
	Valid        bool
	ErrorCode    string
	RawPayload   []byte
	Timestamp    time.Time
}

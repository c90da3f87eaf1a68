package legacy

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gaze-network/uint128"
)

// TokenRecord is a denormalized cache of an inscription-based deploy in the
// legacy namespace.
type TokenRecord struct {
	Tick                string
	OriginalTick        string
	MaxSupply           uint128.Uint128
	LimitPerMint        uint128.Uint128
	Decimals            uint16
	DeployInscriptionId string
	DeployBlockHeight   uint64
	DeployerAddress     string
}

// TransferEvent is an inscription-based transfer credited in a transaction,
// as reported by the legacy namespace oracle. Amount is in base units.
type TransferEvent struct {
	Tick          string
	Amount        uint128.Uint128
	SenderAddress string
	InscriptionId string
}

// Oracle answers queries about the legacy (inscription-based) namespace.
// Responses for a given (ticker|txid, as-of-height) pair must be stable.
type Oracle interface {
	// LookupTicker returns errs.NotFound when the ticker does not exist in
	// the legacy namespace.
	LookupTicker(ctx context.Context, tick string) (*TokenRecord, error)

	// TransferEventsForTx lists the inscription transfers credited in the
	// given transaction.
	TransferEventsForTx(ctx context.Context, txHash chainhash.Hash) ([]*TransferEvent, error)
}

package entity

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gaze-network/uint128"
)

// DeployEntry is the immutable record of a deployed ticker.
type DeployEntry struct {
	Tick         string
	OriginalTick string
	MaxSupply    uint128.Uint128
	LimitPerMint uint128.Uint128 // zero means no per-operation limit
	Decimals     uint16

	DeployerPkScript string // hex
	DeployTxHash     chainhash.Hash
	BlockHeight      uint64
	TxIndex          uint32
	Timestamp        time.Time

	// LegacyValidated is false when the deploy was accepted without a
	// successful legacy namespace check.
	LegacyValidated bool
}

// EffectiveLimitPerMint returns the per-operation mint cap.
func (e *DeployEntry) EffectiveLimitPerMint() uint128.Uint128 {
	if e.LimitPerMint.IsZero() {
		return e.MaxSupply
	}
	return e.LimitPerMint
}

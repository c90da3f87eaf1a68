package entity

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// IndexedBlock is one committed block. The serialized commit plan is kept so
// the block can be reverted by applying the plan's inverse during a reorg.
type IndexedBlock struct {
	Height         uint64
	Hash           chainhash.Hash
	PrevHash       chainhash.Hash
	CommitChecksum chainhash.Hash
	CommitPlan     *CommitPlan
	CreatedAt      time.Time
}

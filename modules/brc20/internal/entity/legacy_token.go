package entity

import (
	"time"

	"github.com/gaze-network/uint128"
)

// LegacyToken caches a ticker record fetched from the legacy namespace
// oracle. Its MaxSupply feeds the legacy bucket of the supply decomposition.
type LegacyToken struct {
	Tick                string
	OriginalTick        string
	MaxSupply           uint128.Uint128
	Decimals            uint16
	DeployInscriptionId string
	DeployedAtHeight    uint64
	BlockHeight         uint64 // height at which the record was cached
	FetchedAt           time.Time
}

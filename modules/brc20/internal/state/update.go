package state

import (
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

// Update is one state change command produced by an operation processor.
// Commands are applied to the intermediate state only after the processor
// reports success, so a failed operation leaves no partial effects.
type Update interface {
	isUpdate()
}

type BalanceAdd struct {
	PkScript string
	Tick     string
	Amount   uint128.Uint128
}

type BalanceSub struct {
	PkScript string
	Tick     string
	Amount   uint128.Uint128
}

type DeployCreate struct {
	Entry *entity.DeployEntry
}

type SupplyAdd struct {
	Tick   string
	Field  entity.SupplyField
	Amount uint128.Uint128
}

type LegacyTokenCreate struct {
	Token *entity.LegacyToken
}

func (BalanceAdd) isUpdate()        {}
func (BalanceSub) isUpdate()        {}
func (DeployCreate) isUpdate()      {}
func (SupplyAdd) isUpdate()         {}
func (LegacyTokenCreate) isUpdate() {}

package entity

import (
	"github.com/gaze-network/uint128"
)

// Balance is the current holding of one account for one ticker. PkScript is
// the hex-encoded output script that owns the balance.
type Balance struct {
	PkScript    string
	Tick        string
	Amount      uint128.Uint128
	BlockHeight uint64 // height of the last change
}

package entity

import (
	"github.com/gaze-network/uint128"
)

// SupplyField identifies a bucket of the supply decomposition.
type SupplyField string

const (
	SupplyFieldUniversal SupplyField = "universal"
	SupplyFieldLegacy    SupplyField = "legacy"
	SupplyFieldBurned    SupplyField = "burned"
)

// Supply is the per-ticker supply decomposition. The invariant
// UniversalMinted + LegacyMinted + Burned <= MaxSupply is enforced at commit.
type Supply struct {
	Tick            string
	UniversalMinted uint128.Uint128
	LegacyMinted    uint128.Uint128
	Burned          uint128.Uint128
	BlockHeight     uint64
}

// Total returns the overall minted amount across namespaces.
func (s *Supply) Total() uint128.Uint128 {
	return s.UniversalMinted.Add(s.LegacyMinted)
}

// Allocated returns the amount counted against the max supply.
func (s *Supply) Allocated() uint128.Uint128 {
	return s.Total().Add(s.Burned)
}

// Field returns the named bucket value.
func (s *Supply) Field(field SupplyField) uint128.Uint128 {
	switch field {
	case SupplyFieldUniversal:
		return s.UniversalMinted
	case SupplyFieldLegacy:
		return s.LegacyMinted
	case SupplyFieldBurned:
		return s.Burned
	}
	return uint128.Zero
}

package state

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

// Reader is the committed-state read surface the view overlays. Implemented
// by the module's datagateway.
type Reader interface {
	// GetDeployEntryByTick returns errs.NotFound when the tick is unknown.
	GetDeployEntryByTick(ctx context.Context, tick string) (*entity.DeployEntry, error)

	// GetBalance returns the committed balance, zero when no row exists.
	GetBalance(ctx context.Context, pkScript, tick string) (uint128.Uint128, error)

	// GetSupply returns errs.NotFound when no supply row exists for the tick.
	GetSupply(ctx context.Context, tick string) (*entity.Supply, error)

	// GetLegacyTokenByTick returns errs.NotFound when the tick was never cached.
	GetLegacyTokenByTick(ctx context.Context, tick string) (*entity.LegacyToken, error)
}

// View exposes token state as of the current operation: committed rows
// overlaid with the effects accumulated earlier in the same block.
type View struct {
	reader       Reader
	intermediate *Intermediate
	height       uint64
}

func NewView(reader Reader, intermediate *Intermediate, height uint64) *View {
	return &View{
		reader:       reader,
		intermediate: intermediate,
		height:       height,
	}
}

// Height returns the height of the block being processed.
func (v *View) Height() uint64 {
	return v.height
}

// DeployOf returns the deploy entry visible to the current operation, or
// errs.NotFound.
func (v *View) DeployOf(ctx context.Context, tick string) (*entity.DeployEntry, error) {
	if entry, ok := v.intermediate.deploys[tick]; ok {
		return entry, nil
	}
	entry, err := v.reader.GetDeployEntryByTick(ctx, tick)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return entry, nil
}

// BalanceOf returns the spendable balance visible to the current operation.
func (v *View) BalanceOf(ctx context.Context, pkScript, tick string) (uint128.Uint128, error) {
	committed, err := v.reader.GetBalance(ctx, pkScript, tick)
	if err != nil {
		return uint128.Zero, errors.WithStack(err)
	}
	key := balanceKey{PkScript: pkScript, Tick: tick}
	balance := committed.Add(v.intermediate.balanceAdds[key])
	subs := v.intermediate.balanceSubs[key]
	if balance.Cmp(subs) < 0 {
		return uint128.Zero, errors.Wrapf(errs.InternalError, "intermediate balance underflow, pkScript: %s, tick: %s", pkScript, tick)
	}
	return balance.Sub(subs), nil
}

// SupplyOf returns the supply decomposition visible to the current operation.
// Unknown ticks yield a zero-valued supply.
func (v *View) SupplyOf(ctx context.Context, tick string) (*entity.Supply, error) {
	supply, err := v.reader.GetSupply(ctx, tick)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return nil, errors.WithStack(err)
		}
		supply = &entity.Supply{Tick: tick}
	}
	overlaid := &entity.Supply{
		Tick:            tick,
		UniversalMinted: supply.UniversalMinted.Add(v.intermediate.supplyAdds[supplyKey{Tick: tick, Field: entity.SupplyFieldUniversal}]),
		LegacyMinted:    supply.LegacyMinted.Add(v.intermediate.supplyAdds[supplyKey{Tick: tick, Field: entity.SupplyFieldLegacy}]),
		Burned:          supply.Burned.Add(v.intermediate.supplyAdds[supplyKey{Tick: tick, Field: entity.SupplyFieldBurned}]),
		BlockHeight:     v.height,
	}
	return overlaid, nil
}

// LegacyTokenOf returns the cached legacy token record visible to the current
// operation, or errs.NotFound.
func (v *View) LegacyTokenOf(ctx context.Context, tick string) (*entity.LegacyToken, error) {
	if token, ok := v.intermediate.legacyTokens[tick]; ok {
		return token, nil
	}
	token, err := v.reader.GetLegacyTokenByTick(ctx, tick)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return token, nil
}

package state

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

type stubReader struct {
	deploys  map[string]*entity.DeployEntry
	balances map[string]map[string]uint128.Uint128
	supplies map[string]*entity.Supply
	legacy   map[string]*entity.LegacyToken
}

func newStubReader() *stubReader {
	return &stubReader{
		deploys:  make(map[string]*entity.DeployEntry),
		balances: make(map[string]map[string]uint128.Uint128),
		supplies: make(map[string]*entity.Supply),
		legacy:   make(map[string]*entity.LegacyToken),
	}
}

func (r *stubReader) GetDeployEntryByTick(_ context.Context, tick string) (*entity.DeployEntry, error) {
	entry, ok := r.deploys[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return entry, nil
}

func (r *stubReader) GetBalance(_ context.Context, pkScript, tick string) (uint128.Uint128, error) {
	return r.balances[pkScript][tick], nil
}

func (r *stubReader) GetSupply(_ context.Context, tick string) (*entity.Supply, error) {
	supply, ok := r.supplies[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return supply, nil
}

func (r *stubReader) GetLegacyTokenByTick(_ context.Context, tick string) (*entity.LegacyToken, error) {
	token, ok := r.legacy[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return token, nil
}

func TestViewOverlay(t *testing.T) {
	ctx := context.Background()

	t.Run("deploy_from_intermediate_shadows_reader", func(t *testing.T) {
		reader := newStubReader()
		intermediate := NewIntermediate()
		view := NewView(reader, intermediate, 100)

		_, err := view.DeployOf(ctx, "ORDI")
		assert.ErrorIs(t, err, errs.NotFound)

		intermediate.Apply([]Update{DeployCreate{Entry: &entity.DeployEntry{Tick: "ORDI", Decimals: 8}}})
		entry, err := view.DeployOf(ctx, "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint16(8), entry.Decimals)
	})

	t.Run("balance_folds_adds_and_subs", func(t *testing.T) {
		reader := newStubReader()
		reader.balances["aa"] = map[string]uint128.Uint128{"ORDI": uint128.From64(100)}
		intermediate := NewIntermediate()
		view := NewView(reader, intermediate, 100)

		intermediate.Apply([]Update{
			BalanceAdd{PkScript: "aa", Tick: "ORDI", Amount: uint128.From64(50)},
			BalanceSub{PkScript: "aa", Tick: "ORDI", Amount: uint128.From64(30)},
		})
		balance, err := view.BalanceOf(ctx, "aa", "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(120), balance)
	})

	t.Run("balance_zero_for_unknown_account", func(t *testing.T) {
		view := NewView(newStubReader(), NewIntermediate(), 100)
		balance, err := view.BalanceOf(ctx, "bb", "ORDI")
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("supply_overlays_per_field", func(t *testing.T) {
		reader := newStubReader()
		reader.supplies["ORDI"] = &entity.Supply{
			Tick:            "ORDI",
			UniversalMinted: uint128.From64(1000),
			BlockHeight:     99,
		}
		intermediate := NewIntermediate()
		view := NewView(reader, intermediate, 100)

		intermediate.Apply([]Update{
			SupplyAdd{Tick: "ORDI", Field: entity.SupplyFieldUniversal, Amount: uint128.From64(10)},
			SupplyAdd{Tick: "ORDI", Field: entity.SupplyFieldBurned, Amount: uint128.From64(5)},
		})
		supply, err := view.SupplyOf(ctx, "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(1010), supply.UniversalMinted)
		assert.Equal(t, uint128.From64(5), supply.Burned)
		assert.Equal(t, uint128.From64(1015), supply.Allocated())
		assert.Equal(t, uint64(100), supply.BlockHeight)
	})

	t.Run("supply_zero_for_unknown_tick", func(t *testing.T) {
		view := NewView(newStubReader(), NewIntermediate(), 100)
		supply, err := view.SupplyOf(ctx, "NOPE")
		require.NoError(t, err)
		assert.True(t, supply.Allocated().IsZero())
	})

	t.Run("legacy_token_from_intermediate", func(t *testing.T) {
		intermediate := NewIntermediate()
		view := NewView(newStubReader(), intermediate, 100)

		_, err := view.LegacyTokenOf(ctx, "ORDI")
		assert.ErrorIs(t, err, errs.NotFound)

		intermediate.Apply([]Update{LegacyTokenCreate{Token: &entity.LegacyToken{Tick: "ORDI", Decimals: 18}}})
		token, err := view.LegacyTokenOf(ctx, "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint16(18), token.Decimals)
	})
}

func TestIntermediateSeal(t *testing.T) {
	t.Run("sections_sorted_and_zero_deltas_dropped", func(t *testing.T) {
		intermediate := NewIntermediate()
		intermediate.Apply([]Update{
			BalanceAdd{PkScript: "bb", Tick: "ORDI", Amount: uint128.From64(1)},
			BalanceAdd{PkScript: "aa", Tick: "ORDI", Amount: uint128.From64(2)},
			BalanceAdd{PkScript: "aa", Tick: "SATS", Amount: uint128.Zero},
			SupplyAdd{Tick: "SATS", Field: entity.SupplyFieldUniversal, Amount: uint128.From64(3)},
			SupplyAdd{Tick: "ORDI", Field: entity.SupplyFieldUniversal, Amount: uint128.From64(4)},
		})
		plan := intermediate.Seal(100, "hash", "prev")

		require.Len(t, plan.BalanceAdds, 2)
		assert.Equal(t, "aa", plan.BalanceAdds[0].PkScript)
		assert.Equal(t, "bb", plan.BalanceAdds[1].PkScript)

		require.Len(t, plan.SupplyAdds, 2)
		assert.Equal(t, "ORDI", plan.SupplyAdds[0].Tick)
		assert.Equal(t, "SATS", plan.SupplyAdds[1].Tick)
	})

	t.Run("repeated_deltas_accumulate", func(t *testing.T) {
		intermediate := NewIntermediate()
		intermediate.Apply([]Update{
			BalanceAdd{PkScript: "aa", Tick: "ORDI", Amount: uint128.From64(10)},
			BalanceAdd{PkScript: "aa", Tick: "ORDI", Amount: uint128.From64(15)},
		})
		plan := intermediate.Seal(100, "hash", "prev")
		require.Len(t, plan.BalanceAdds, 1)
		assert.Equal(t, "25", plan.BalanceAdds[0].Amount)
	})
}

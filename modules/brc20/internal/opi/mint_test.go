package opi

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

func mintPayload(amtRaw string) *protocol.Payload {
	return &protocol.Payload{
		OpTag:        "mint",
		Tick:         "ORDI",
		OriginalTick: "ordi",
		AmountRaw:    amtRaw,
	}
}

func mintReader() *fakeReader {
	reader := newFakeReader()
	reader.deploys["ORDI"] = &entity.DeployEntry{
		Tick:         "ORDI",
		MaxSupply:    uint128.From64(1000),
		LimitPerMint: uint128.From64(100),
		Decimals:     0,
	}
	return reader
}

func TestMintProcessor(t *testing.T) {
	ctx := context.Background()
	processor := NewMintProcessor(common.NetworkMainnet)
	sender := hex.EncodeToString(p2wpkhScript(0x01))

	t.Run("missing_amt_rejected", func(t *testing.T) {
		op := testOp(t, mintPayload(""), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(mintReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeMissingField, outcome.Code)
	})

	t.Run("unknown_ticker_rejected", func(t *testing.T) {
		op := testOp(t, mintPayload("10"), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(newFakeReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeTickerNotDeployed, outcome.Code)
	})

	t.Run("non_canonical_amount_rejected", func(t *testing.T) {
		op := testOp(t, mintPayload("1.5"), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(mintReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeInvalidAmount, outcome.Code)
	})

	t.Run("zero_amount_rejected", func(t *testing.T) {
		op := testOp(t, mintPayload("0"), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(mintReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeInvalidAmount, outcome.Code)
	})

	t.Run("amount_over_limit_rejected", func(t *testing.T) {
		op := testOp(t, mintPayload("101"), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(mintReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeMintExceedsLimit, outcome.Code)
	})

	t.Run("amount_over_remaining_supply_rejected", func(t *testing.T) {
		reader := mintReader()
		reader.supplies["ORDI"] = &entity.Supply{
			Tick:            "ORDI",
			UniversalMinted: uint128.From64(900),
			Burned:          uint128.From64(50),
		}
		op := testOp(t, mintPayload("60"), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(reader))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeMintExceedsSupply, outcome.Code)
	})

	t.Run("mint_to_exact_cap_accepted", func(t *testing.T) {
		reader := mintReader()
		reader.supplies["ORDI"] = &entity.Supply{
			Tick:            "ORDI",
			UniversalMinted: uint128.From64(900),
		}
		op := testOp(t, mintPayload("100"), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(reader))
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess())
	})

	t.Run("no_standard_output_rejected", func(t *testing.T) {
		tx := &types.Transaction{TxOut: []*types.TxOut{opReturnOut()}}
		op := testOp(t, mintPayload("10"), tx, sender)
		outcome, _, err := processor.Process(ctx, op, testView(mintReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeNoStandardOutput, outcome.Code)
	})

	t.Run("success_credits_first_standard_output", func(t *testing.T) {
		receiver := p2wpkhScript(0x02)
		op := testOp(t, mintPayload("10"), standardTx(receiver, p2wpkhScript(0x03)), sender)
		outcome, updates, err := processor.Process(ctx, op, testView(mintReader()))
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess())

		require.Len(t, updates, 2)
		balanceAdd, ok := updates[0].(state.BalanceAdd)
		require.True(t, ok)
		assert.Equal(t, hex.EncodeToString(receiver), balanceAdd.PkScript)
		assert.Equal(t, uint128.From64(10), balanceAdd.Amount)
		supplyAdd, ok := updates[1].(state.SupplyAdd)
		require.True(t, ok)
		assert.Equal(t, entity.SupplyFieldUniversal, supplyAdd.Field)
		assert.Equal(t, uint128.From64(10), supplyAdd.Amount)
	})
}

package opi

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

func transferPayload(amtRaw string, amtsRaw []string) *protocol.Payload {
	return &protocol.Payload{
		OpTag:        "transfer",
		Tick:         "ORDI",
		OriginalTick: "ordi",
		AmountRaw:    amtRaw,
		AmountsRaw:   amtsRaw,
	}
}

func transferReader(sender string, balance uint64) *fakeReader {
	reader := newFakeReader()
	reader.deploys["ORDI"] = &entity.DeployEntry{
		Tick:         "ORDI",
		MaxSupply:    uint128.From64(1000),
		LimitPerMint: uint128.From64(100),
		Decimals:     0,
	}
	reader.balances[sender] = map[string]uint128.Uint128{"ORDI": uint128.From64(balance)}
	return reader
}

func TestTransferProcessor(t *testing.T) {
	ctx := context.Background()
	processor := NewTransferProcessor(common.NetworkMainnet)
	sender := hex.EncodeToString(p2wpkhScript(0x01))

	t.Run("missing_amt_rejected", func(t *testing.T) {
		op := testOp(t, transferPayload("", nil), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeMissingField, outcome.Code)
	})

	t.Run("unknown_ticker_rejected", func(t *testing.T) {
		op := testOp(t, transferPayload("10", nil), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(newFakeReader()))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeTickerNotDeployed, outcome.Code)
	})

	t.Run("zero_amount_in_list_rejected", func(t *testing.T) {
		op := testOp(t, transferPayload("", []string{"10", "0"}), standardTx(p2wpkhScript(0x02), p2wpkhScript(0x03)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeInvalidAmount, outcome.Code)
	})

	t.Run("amount_sum_overflow_rejected", func(t *testing.T) {
		reader := newFakeReader()
		reader.deploys["WRAP"] = &entity.DeployEntry{
			Tick:         "WRAP",
			MaxSupply:    uint128.Max,
			LimitPerMint: uint128.Max,
			Decimals:     18,
		}
		payload := &protocol.Payload{OpTag: "transfer", Tick: "WRAP", OriginalTick: "wrap"}
		for i := 0; i < 19; i++ {
			payload.AmountsRaw = append(payload.AmountsRaw, "18446744073709551615")
		}
		op := testOp(t, payload, standardTx(p2wpkhScript(0x02)), sender)
		outcome, updates, err := processor.Process(ctx, op, testView(reader))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeInvalidAmount, outcome.Code)
		assert.Empty(t, updates)
	})

	t.Run("unresolvable_sender_rejected", func(t *testing.T) {
		op := testOp(t, transferPayload("10", nil), standardTx(p2wpkhScript(0x02)), "")
		outcome, _, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeUnresolvableSender, outcome.Code)
	})

	t.Run("insufficient_balance_rejected", func(t *testing.T) {
		op := testOp(t, transferPayload("", []string{"100", "30"}), standardTx(p2wpkhScript(0x02), p2wpkhScript(0x03)), sender)
		outcome, _, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeInsufficientBalance, outcome.Code)
	})

	t.Run("single_amt_takes_precedence_over_list", func(t *testing.T) {
		op := testOp(t, transferPayload("10", []string{"20", "30"}), standardTx(p2wpkhScript(0x02)), sender)
		outcome, updates, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess())
		require.Len(t, updates, 2)
		assert.Equal(t, uint128.From64(10), updates[0].(state.BalanceSub).Amount)
	})

	t.Run("fewer_outputs_than_amounts_rejected", func(t *testing.T) {
		op := testOp(t, transferPayload("", []string{"10", "20", "30"}), standardTx(p2wpkhScript(0x02), p2wpkhScript(0x03)), sender)
		outcome, updates, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.Equal(t, protocol.CodeNoStandardOutput, outcome.Code)
		assert.Empty(t, updates)
	})

	t.Run("multi_receiver_pays_outputs_in_order", func(t *testing.T) {
		first := p2wpkhScript(0x02)
		second := p2wpkhScript(0x03)
		op := testOp(t, transferPayload("", []string{"10", "20"}), standardTx(first, second), sender)
		outcome, updates, err := processor.Process(ctx, op, testView(transferReader(sender, 100)))
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess())

		require.Len(t, updates, 3)
		sub, ok := updates[0].(state.BalanceSub)
		require.True(t, ok)
		assert.Equal(t, sender, sub.PkScript)
		assert.Equal(t, uint128.From64(30), sub.Amount)

		firstAdd := updates[1].(state.BalanceAdd)
		assert.Equal(t, hex.EncodeToString(first), firstAdd.PkScript)
		assert.Equal(t, uint128.From64(10), firstAdd.Amount)
		secondAdd := updates[2].(state.BalanceAdd)
		assert.Equal(t, hex.EncodeToString(second), secondAdd.PkScript)
		assert.Equal(t, uint128.From64(20), secondAdd.Amount)
	})

	t.Run("uncommitted_sends_within_block_are_spendable", func(t *testing.T) {
		reader := transferReader(sender, 0)
		intermediate := state.NewIntermediate()
		intermediate.Apply([]state.Update{
			state.BalanceAdd{PkScript: sender, Tick: "ORDI", Amount: uint128.From64(40)},
		})
		view := state.NewView(reader, intermediate, 900000)

		op := testOp(t, transferPayload("40", nil), standardTx(p2wpkhScript(0x02)), sender)
		outcome, _, err := processor.Process(ctx, op, view)
		require.NoError(t, err)
		assert.True(t, outcome.IsSuccess())
	})
}

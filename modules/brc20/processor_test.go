package brc20

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/modules/brc20/config"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/legacy"
)

// memDg is an in-memory datagateway for exercising full block processing.
type memDg struct {
	deploys  map[string]*entity.DeployEntry
	balances map[string]map[string]uint128.Uint128
	supplies map[string]*entity.Supply
	legacy   map[string]*entity.LegacyToken
	logs     []*entity.OperationLog
	blocks   map[uint64]*entity.IndexedBlock
	states   []entity.IndexerState
}

func newMemDg() *memDg {
	return &memDg{
		deploys:  make(map[string]*entity.DeployEntry),
		balances: make(map[string]map[string]uint128.Uint128),
		supplies: make(map[string]*entity.Supply),
		legacy:   make(map[string]*entity.LegacyToken),
		blocks:   make(map[uint64]*entity.IndexedBlock),
	}
}

type memDgTx struct {
	*memDg
}

func (dg *memDg) BeginBRC20Tx(_ context.Context) (datagateway.BRC20DataGatewayWithTx, error) {
	return &memDgTx{memDg: dg}, nil
}

func (tx *memDgTx) Commit(_ context.Context) error   { return nil }
func (tx *memDgTx) Rollback(_ context.Context) error { return nil }

func (dg *memDg) GetLatestIndexedBlock(_ context.Context) (*entity.IndexedBlock, error) {
	var latest *entity.IndexedBlock
	for _, block := range dg.blocks {
		if latest == nil || block.Height > latest.Height {
			latest = block
		}
	}
	if latest == nil {
		return nil, errors.WithStack(errs.NotFound)
	}
	return latest, nil
}

func (dg *memDg) GetIndexedBlockByHeight(_ context.Context, height uint64) (*entity.IndexedBlock, error) {
	block, ok := dg.blocks[height]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return block, nil
}

func (dg *memDg) GetDeployEntryByTick(_ context.Context, tick string) (*entity.DeployEntry, error) {
	entry, ok := dg.deploys[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return entry, nil
}

func (dg *memDg) GetBalance(_ context.Context, pkScript, tick string) (uint128.Uint128, error) {
	return dg.balances[pkScript][tick], nil
}

func (dg *memDg) GetSupply(_ context.Context, tick string) (*entity.Supply, error) {
	supply, ok := dg.supplies[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return supply, nil
}

func (dg *memDg) GetLegacyTokenByTick(_ context.Context, tick string) (*entity.LegacyToken, error) {
	token, ok := dg.legacy[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return token, nil
}

func (dg *memDg) GetBalancesByPkScript(_ context.Context, _ string) ([]*entity.Balance, error) {
	return nil, nil
}

func (dg *memDg) GetBalancesByTick(_ context.Context, _ string, _, _ int32) ([]*entity.Balance, error) {
	return nil, nil
}

func (dg *memDg) GetOperationLogs(_ context.Context, _ datagateway.OperationLogFilter, _, _ int32) ([]*entity.OperationLog, error) {
	return dg.logs, nil
}

func (dg *memDg) AddBalance(_ context.Context, pkScript, tick string, amount uint128.Uint128, _ uint64) error {
	if dg.balances[pkScript] == nil {
		dg.balances[pkScript] = make(map[string]uint128.Uint128)
	}
	dg.balances[pkScript][tick] = dg.balances[pkScript][tick].Add(amount)
	return nil
}

func (dg *memDg) SubBalance(_ context.Context, pkScript, tick string, amount uint128.Uint128, _ uint64) error {
	balance := dg.balances[pkScript][tick]
	if balance.Cmp(amount) < 0 {
		return errors.Wrap(errs.InvalidArgument, "balance underflow")
	}
	dg.balances[pkScript][tick] = balance.Sub(amount)
	return nil
}

func (dg *memDg) CreateDeployEntry(_ context.Context, entry *entity.DeployEntry) error {
	if _, exists := dg.deploys[entry.Tick]; exists {
		return errors.WithStack(errs.Duplicate)
	}
	dg.deploys[entry.Tick] = entry
	return nil
}

func (dg *memDg) DeleteDeployEntryByTick(_ context.Context, tick string) error {
	delete(dg.deploys, tick)
	return nil
}

func (dg *memDg) AddSupply(_ context.Context, tick string, field entity.SupplyField, amount uint128.Uint128, blockHeight uint64) error {
	supply, ok := dg.supplies[tick]
	if !ok {
		supply = &entity.Supply{Tick: tick}
		dg.supplies[tick] = supply
	}
	supply.BlockHeight = blockHeight
	switch field {
	case entity.SupplyFieldUniversal:
		supply.UniversalMinted = supply.UniversalMinted.Add(amount)
	case entity.SupplyFieldLegacy:
		supply.LegacyMinted = supply.LegacyMinted.Add(amount)
	case entity.SupplyFieldBurned:
		supply.Burned = supply.Burned.Add(amount)
	}
	return nil
}

func (dg *memDg) SubSupply(_ context.Context, tick string, field entity.SupplyField, amount uint128.Uint128, blockHeight uint64) error {
	supply, ok := dg.supplies[tick]
	if !ok || supply.Field(field).Cmp(amount) < 0 {
		return errors.Wrap(errs.InvalidArgument, "supply underflow")
	}
	supply.BlockHeight = blockHeight
	switch field {
	case entity.SupplyFieldUniversal:
		supply.UniversalMinted = supply.UniversalMinted.Sub(amount)
	case entity.SupplyFieldLegacy:
		supply.LegacyMinted = supply.LegacyMinted.Sub(amount)
	case entity.SupplyFieldBurned:
		supply.Burned = supply.Burned.Sub(amount)
	}
	return nil
}

func (dg *memDg) CreateLegacyToken(_ context.Context, token *entity.LegacyToken) error {
	dg.legacy[token.Tick] = token
	return nil
}

func (dg *memDg) DeleteLegacyTokenByTick(_ context.Context, tick string) error {
	delete(dg.legacy, tick)
	return nil
}

func (dg *memDg) CreateOperationLogs(_ context.Context, logs []*entity.OperationLog) error {
	dg.logs = append(dg.logs, logs...)
	return nil
}

func (dg *memDg) DeleteOperationLogsSinceHeight(_ context.Context, height uint64) error {
	kept := dg.logs[:0]
	for _, log := range dg.logs {
		if log.BlockHeight < height {
			kept = append(kept, log)
		}
	}
	dg.logs = kept
	return nil
}

func (dg *memDg) CreateIndexedBlock(_ context.Context, block *entity.IndexedBlock) error {
	dg.blocks[block.Height] = block
	return nil
}

func (dg *memDg) DeleteIndexedBlocksSinceHeight(_ context.Context, height uint64) error {
	for h := range dg.blocks {
		if h >= height {
			delete(dg.blocks, h)
		}
	}
	return nil
}

func (dg *memDg) GetLatestIndexerState(_ context.Context) (entity.IndexerState, error) {
	if len(dg.states) == 0 {
		return entity.IndexerState{}, errors.WithStack(errs.NotFound)
	}
	return dg.states[len(dg.states)-1], nil
}

func (dg *memDg) CreateIndexerState(_ context.Context, state entity.IndexerState) error {
	dg.states = append(dg.states, state)
	return nil
}

// memBtcClient serves previous outputs for sender resolution.
type memBtcClient struct {
	txs map[chainhash.Hash]*wire.MsgTx
}

func (c *memBtcClient) GetRawTransactionAndHeightByTxHash(_ context.Context, txHash chainhash.Hash) (*wire.MsgTx, int64, error) {
	tx, ok := c.txs[txHash]
	if !ok {
		return nil, 0, errors.New("transaction not found")
	}
	return tx, 900000, nil
}

// fund registers a transaction paying to pkScript and returns its hash, used
// as the previous output of an operation transaction.
func (c *memBtcClient) fund(pkScript []byte) chainhash.Hash {
	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(10000, pkScript))
	// distinct lock times keep funding tx hashes unique per call
	tx.LockTime = uint32(len(c.txs) + 1)
	hash := tx.TxHash()
	c.txs[hash] = tx
	return hash
}

func testP2wpkh(fill byte) []byte {
	script := make([]byte, 22)
	script[0] = txscript.OP_0
	script[1] = txscript.OP_DATA_20
	for i := 2; i < len(script); i++ {
		script[i] = fill
	}
	return script
}

type processorHarness struct {
	t         *testing.T
	processor *Processor
	dg        *memDg
	client    *memBtcClient
	prevHash  chainhash.Hash
}

func newProcessorHarness(t *testing.T) *processorHarness {
	t.Helper()
	dg := newMemDg()
	client := &memBtcClient{txs: make(map[chainhash.Hash]*wire.MsgTx)}
	registry, err := newRegistry(legacy.NewBridge(nil, false), common.NetworkMainnet, nil)
	require.NoError(t, err)
	processor, err := NewProcessor(dg, dg, client, common.NetworkMainnet, registry, config.RetryConfig{}, 900001, 0, nil)
	require.NoError(t, err)
	return &processorHarness{
		t:         t,
		processor: processor,
		dg:        dg,
		client:    client,
		prevHash:  common.ZeroHash,
	}
}

// opTx builds an operation transaction: one input spending a funding output
// owned by senderScript, the OP_RETURN payload, then the receiver outputs.
func (h *processorHarness) opTx(index uint32, senderScript []byte, payload string, receivers ...[]byte) *types.Transaction {
	h.t.Helper()
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData([]byte(payload))
	opReturn, err := builder.Script()
	require.NoError(h.t, err)

	tx := &types.Transaction{
		TxHash: chainhash.DoubleHashH([]byte(fmt.Sprintf("op-%d-%s", index, payload))),
		Index:  index,
		TxIn: []*types.TxIn{
			{PreviousOutTxHash: h.client.fund(senderScript), PreviousOutIndex: 0},
		},
		TxOut: []*types.TxOut{{PkScript: opReturn, Value: 0}},
	}
	for _, receiver := range receivers {
		tx.TxOut = append(tx.TxOut, &types.TxOut{PkScript: receiver, Value: 546})
	}
	return tx
}

// processBlock commits the given transactions as the next block in the chain.
func (h *processorHarness) processBlock(height int64, txs ...*types.Transaction) *types.Block {
	h.t.Helper()
	block := &types.Block{
		Header: types.BlockHeader{
			Hash:      chainhash.DoubleHashH([]byte(fmt.Sprintf("block-%d", height))),
			Height:    height,
			PrevBlock: h.prevHash,
			Timestamp: time.Unix(1700000000+height, 0),
		},
		Transactions: txs,
	}
	require.NoError(h.t, h.processor.Process(context.Background(), []*types.Block{block}))
	h.prevHash = block.Header.Hash
	return block
}

func TestProcessorProcess(t *testing.T) {
	ctx := context.Background()
	sender := testP2wpkh(0x01)
	alice := testP2wpkh(0x02)
	bob := testP2wpkh(0x03)

	t.Run("deploy_mint_transfer_lifecycle", func(t *testing.T) {
		h := newProcessorHarness(t)

		h.processBlock(900001, h.opTx(1, sender, `{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":"0"}`, alice))
		h.processBlock(900002, h.opTx(1, sender, `{"p":"brc-20","op":"mint","tick":"ordi","amt":"100"}`, alice))
		h.processBlock(900003, h.opTx(1, alice, `{"p":"brc-20","op":"transfer","tick":"ordi","amt":"40"}`, bob))

		entry, err := h.dg.GetDeployEntryByTick(ctx, "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(1000), entry.MaxSupply)
		assert.Equal(t, hex.EncodeToString(sender), entry.DeployerPkScript)

		aliceBalance, err := h.dg.GetBalance(ctx, hex.EncodeToString(alice), "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(60), aliceBalance)
		bobBalance, err := h.dg.GetBalance(ctx, hex.EncodeToString(bob), "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(40), bobBalance)

		supply, err := h.dg.GetSupply(ctx, "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(100), supply.UniversalMinted)

		require.Len(t, h.dg.logs, 3)
		for _, log := range h.dg.logs {
			assert.True(t, log.Valid, "op %s", log.OpTag)
		}
		assert.Empty(t, h.dg.logs[0].ToPkScript)
		assert.Equal(t, hex.EncodeToString(alice), h.dg.logs[1].ToPkScript)
		assert.Equal(t, hex.EncodeToString(bob), h.dg.logs[2].ToPkScript)

		header, err := h.processor.CurrentBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(900003), header.Height)
	})

	t.Run("mint_over_limit_rejected_and_logged", func(t *testing.T) {
		h := newProcessorHarness(t)

		h.processBlock(900001, h.opTx(1, sender, `{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":"0"}`, alice))
		h.processBlock(900002, h.opTx(1, sender, `{"p":"brc-20","op":"mint","tick":"ordi","amt":"200"}`, alice))

		balance, err := h.dg.GetBalance(ctx, hex.EncodeToString(alice), "ORDI")
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
		_, err = h.dg.GetSupply(ctx, "ORDI")
		assert.ErrorIs(t, err, errs.NotFound)

		require.Len(t, h.dg.logs, 2)
		mintLog := h.dg.logs[1]
		assert.False(t, mintLog.Valid)
		assert.Equal(t, "MINT_EXCEEDS_LIMIT", mintLog.ErrorCode)
	})

	t.Run("array_operations_see_earlier_effects_in_same_block", func(t *testing.T) {
		h := newProcessorHarness(t)

		payload := `[{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":"0"},{"p":"brc-20","op":"mint","tick":"ordi","amt":"50"}]`
		h.processBlock(900001, h.opTx(1, sender, payload, alice))

		balance, err := h.dg.GetBalance(ctx, hex.EncodeToString(alice), "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(50), balance)

		require.Len(t, h.dg.logs, 2)
		assert.True(t, h.dg.logs[0].Valid)
		assert.Equal(t, int32(0), h.dg.logs[0].SubIndex)
		assert.True(t, h.dg.logs[1].Valid)
		assert.Equal(t, int32(1), h.dg.logs[1].SubIndex)
	})

	t.Run("transfer_without_enough_outputs_is_all_or_nothing", func(t *testing.T) {
		h := newProcessorHarness(t)

		h.processBlock(900001, h.opTx(1, sender, `{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":"0"}`, alice))
		h.processBlock(900002, h.opTx(1, sender, `{"p":"brc-20","op":"mint","tick":"ordi","amt":"100"}`, alice))
		// two amounts, one standard output
		h.processBlock(900003, h.opTx(1, alice, `{"p":"brc-20","op":"transfer","tick":"ordi","amt":["40","30"]}`, bob))

		aliceBalance, err := h.dg.GetBalance(ctx, hex.EncodeToString(alice), "ORDI")
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(100), aliceBalance)
		bobBalance, err := h.dg.GetBalance(ctx, hex.EncodeToString(bob), "ORDI")
		require.NoError(t, err)
		assert.True(t, bobBalance.IsZero())

		transferLog := h.dg.logs[2]
		assert.False(t, transferLog.Valid)
		assert.Equal(t, "NO_STANDARD_OUTPUT", transferLog.ErrorCode)
	})

	t.Run("revert_applies_inverse_plans", func(t *testing.T) {
		h := newProcessorHarness(t)

		h.processBlock(900001, h.opTx(1, sender, `{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":"0"}`, alice))
		h.processBlock(900002, h.opTx(1, sender, `{"p":"brc-20","op":"mint","tick":"ordi","amt":"100"}`, alice))
		h.processBlock(900003, h.opTx(1, alice, `{"p":"brc-20","op":"transfer","tick":"ordi","amt":"40"}`, bob))

		require.NoError(t, h.processor.RevertData(ctx, 900002))

		// deploy from block 900001 survives, later effects are undone
		_, err := h.dg.GetDeployEntryByTick(ctx, "ORDI")
		require.NoError(t, err)
		aliceBalance, err := h.dg.GetBalance(ctx, hex.EncodeToString(alice), "ORDI")
		require.NoError(t, err)
		assert.True(t, aliceBalance.IsZero())
		bobBalance, err := h.dg.GetBalance(ctx, hex.EncodeToString(bob), "ORDI")
		require.NoError(t, err)
		assert.True(t, bobBalance.IsZero())
		supply, err := h.dg.GetSupply(ctx, "ORDI")
		require.NoError(t, err)
		assert.True(t, supply.UniversalMinted.IsZero())

		header, err := h.processor.CurrentBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(900001), header.Height)
		require.Len(t, h.dg.logs, 1)
		assert.Equal(t, "deploy", h.dg.logs[0].OpTag)
	})

	t.Run("revert_everything_falls_back_to_starting_block", func(t *testing.T) {
		h := newProcessorHarness(t)

		h.processBlock(900001, h.opTx(1, sender, `{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100","dec":"0"}`, alice))
		require.NoError(t, h.processor.RevertData(ctx, 900001))

		_, err := h.dg.GetDeployEntryByTick(ctx, "ORDI")
		assert.ErrorIs(t, err, errs.NotFound)
		header, err := h.processor.CurrentBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(900000), header.Height)
		assert.Equal(t, common.ZeroHash, header.Hash)
	})

	t.Run("verify_states_creates_and_checks_state", func(t *testing.T) {
		h := newProcessorHarness(t)
		require.NoError(t, h.processor.VerifyStates(ctx))
		require.Len(t, h.dg.states, 1)
		assert.Equal(t, common.NetworkMainnet, h.dg.states[0].Network)

		// second run validates the stored state
		require.NoError(t, h.processor.VerifyStates(ctx))
		require.Len(t, h.dg.states, 1)

		h.dg.states[0].DBVersion = DBVersion + 1
		assert.ErrorIs(t, h.processor.VerifyStates(ctx), errs.ConflictSetting)
	})
}

package opi

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/legacy"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

type fakeReader struct {
	deploys  map[string]*entity.DeployEntry
	balances map[string]map[string]uint128.Uint128
	supplies map[string]*entity.Supply
	legacy   map[string]*entity.LegacyToken
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		deploys:  make(map[string]*entity.DeployEntry),
		balances: make(map[string]map[string]uint128.Uint128),
		supplies: make(map[string]*entity.Supply),
		legacy:   make(map[string]*entity.LegacyToken),
	}
}

func (r *fakeReader) GetDeployEntryByTick(_ context.Context, tick string) (*entity.DeployEntry, error) {
	entry, ok := r.deploys[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return entry, nil
}

func (r *fakeReader) GetBalance(_ context.Context, pkScript, tick string) (uint128.Uint128, error) {
	return r.balances[pkScript][tick], nil
}

func (r *fakeReader) GetSupply(_ context.Context, tick string) (*entity.Supply, error) {
	supply, ok := r.supplies[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return supply, nil
}

func (r *fakeReader) GetLegacyTokenByTick(_ context.Context, tick string) (*entity.LegacyToken, error) {
	token, ok := r.legacy[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return token, nil
}

type fakeOracle struct {
	tokens    map[string]*legacy.TokenRecord
	events    []*legacy.TransferEvent
	lookupErr error
	eventsErr error
}

func (o *fakeOracle) LookupTicker(_ context.Context, tick string) (*legacy.TokenRecord, error) {
	if o.lookupErr != nil {
		return nil, o.lookupErr
	}
	record, ok := o.tokens[tick]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return record, nil
}

func (o *fakeOracle) TransferEventsForTx(_ context.Context, _ chainhash.Hash) ([]*legacy.TransferEvent, error) {
	if o.eventsErr != nil {
		return nil, o.eventsErr
	}
	return o.events, nil
}

// p2wpkhScript builds a standard v0 witness pubkey hash script with a
// recognizable filler byte.
func p2wpkhScript(fill byte) []byte {
	script := make([]byte, 22)
	script[0] = txscript.OP_0
	script[1] = txscript.OP_DATA_20
	for i := 2; i < len(script); i++ {
		script[i] = fill
	}
	return script
}

func opReturnOut() *types.TxOut {
	return &types.TxOut{PkScript: []byte{txscript.OP_RETURN}, Value: 0}
}

func standardTx(scripts ...[]byte) *types.Transaction {
	tx := &types.Transaction{
		TxHash: chainhash.DoubleHashH([]byte("test tx")),
		TxOut:  []*types.TxOut{opReturnOut()},
	}
	for _, script := range scripts {
		tx.TxOut = append(tx.TxOut, &types.TxOut{PkScript: script, Value: 546})
	}
	return tx
}

func testOp(t *testing.T, payload *protocol.Payload, tx *types.Transaction, senderPkScript string) *entity.Operation {
	t.Helper()
	return &entity.Operation{
		Payload:        payload,
		Tx:             tx,
		BlockHeight:    900000,
		BlockTime:      time.Unix(1700000000, 0),
		TxIndex:        1,
		SenderPkScript: senderPkScript,
	}
}

func testView(reader state.Reader) *state.View {
	return state.NewView(reader, state.NewIntermediate(), 900000)
}

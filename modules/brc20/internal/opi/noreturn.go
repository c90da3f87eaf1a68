package opi

import (
	"context"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/legacy"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

// NoReturnProcessor terminates an inscription-based transfer without a
// receiver: the claimed (tick, amount, sender) must match a legacy transfer
// event credited in the same transaction, and the matched amount is moved to
// the burn bucket.
type NoReturnProcessor struct {
	bridge  *legacy.Bridge
	network common.Network
}

func NewNoReturnProcessor(bridge *legacy.Bridge, network common.Network) *NoReturnProcessor {
	return &NoReturnProcessor{bridge: bridge, network: network}
}

func (p *NoReturnProcessor) OpTag() string {
	return "no_return"
}

func (p *NoReturnProcessor) Process(ctx context.Context, op *entity.Operation, view *state.View) (Outcome, []state.Update, error) {
	payload := op.Payload
	if payload.AmountRaw == "" {
		return Invalid(protocol.CodeMissingField, `no_return requires an "amt" field`), nil, nil
	}
	if op.SenderPkScript == "" {
		return Invalid(protocol.CodeUnresolvableSender, "no input with a resolvable address"), nil, nil
	}
	senderScript, err := hex.DecodeString(op.SenderPkScript)
	if err != nil {
		return Outcome{}, nil, errors.Wrapf(errs.InternalError, "malformed sender pkScript %q", op.SenderPkScript)
	}
	senderAddress, err := btcutils.PkScriptToAddress(senderScript, p.network)
	if err != nil {
		return Invalid(protocol.CodeUnresolvableSender, "sender script has no address form"), nil, nil
	}

	decimals, token, outcome, err := p.resolveDecimals(ctx, op, view)
	if err != nil {
		return Outcome{}, nil, errors.WithStack(err)
	}
	if outcome != nil {
		return *outcome, nil, nil
	}
	amount, err := protocol.ParseAmount(payload.AmountRaw, decimals)
	if err != nil {
		return Invalid(protocol.CodeInvalidAmount, err.Error()), nil, nil
	}
	if amount.IsZero() {
		return Invalid(protocol.CodeInvalidAmount, "no_return amount must be positive"), nil, nil
	}

	event, err := p.bridge.MatchNoReturn(ctx, op.Tx.TxHash, payload.Tick, amount, senderAddress)
	if err != nil {
		return Outcome{}, nil, errors.WithStack(err)
	}
	if event == nil {
		return Invalid(protocol.CodeNoReturnEventMismatch, "no matching legacy transfer event for this transaction"), nil, nil
	}

	updates := []state.Update{
		state.SupplyAdd{Tick: payload.Tick, Field: entity.SupplyFieldBurned, Amount: amount},
	}
	if token != nil {
		updates = append(updates, state.LegacyTokenCreate{Token: token})
	}
	return Success(), updates, nil
}

// resolveDecimals picks the precision for the claimed amount: the universal
// deploy when the ticker exists here, otherwise the legacy token record. A
// ticker in neither namespace cannot have a matching event.
//
// token is non-nil when a legacy record was fetched that is not yet cached.
func (p *NoReturnProcessor) resolveDecimals(ctx context.Context, op *entity.Operation, view *state.View) (uint16, *entity.LegacyToken, *Outcome, error) {
	entry, err := view.DeployOf(ctx, op.Payload.Tick)
	if err == nil {
		return entry.Decimals, nil, nil, nil
	}
	if !errors.Is(err, errs.NotFound) {
		return 0, nil, nil, errors.WithStack(err)
	}

	cached, err := view.LegacyTokenOf(ctx, op.Payload.Tick)
	if err == nil {
		return cached.Decimals, nil, nil, nil
	}
	if !errors.Is(err, errs.NotFound) {
		return 0, nil, nil, errors.WithStack(err)
	}

	record, err := p.bridge.LookupToken(ctx, op.Payload.Tick)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			outcome := Invalid(protocol.CodeTickerNotDeployed, "ticker unknown in both namespaces")
			return 0, nil, &outcome, nil
		}
		return 0, nil, nil, errors.WithStack(err)
	}
	token := &entity.LegacyToken{
		Tick:                record.Tick,
		OriginalTick:        record.OriginalTick,
		MaxSupply:           record.MaxSupply,
		Decimals:            record.Decimals,
		DeployInscriptionId: record.DeployInscriptionId,
		DeployedAtHeight:    record.DeployBlockHeight,
		BlockHeight:         op.BlockHeight,
		FetchedAt:           op.BlockTime,
	}
	return record.Decimals, token, nil, nil
}

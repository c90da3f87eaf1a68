package opi

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

// MintProcessor credits new supply to the first standard output of the
// minting transaction.
type MintProcessor struct {
	network common.Network
}

func NewMintProcessor(network common.Network) *MintProcessor {
	return &MintProcessor{network: network}
}

func (p *MintProcessor) OpTag() string {
	return "mint"
}

func (p *MintProcessor) Process(ctx context.Context, op *entity.Operation, view *state.View) (Outcome, []state.Update, error) {
	payload := op.Payload
	if payload.AmountRaw == "" {
		return Invalid(protocol.CodeMissingField, `mint requires an "amt" field`), nil, nil
	}

	entry, err := view.DeployOf(ctx, payload.Tick)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return Invalid(protocol.CodeTickerNotDeployed, "ticker not deployed"), nil, nil
		}
		return Outcome{}, nil, errors.WithStack(err)
	}

	amount, err := protocol.ParseAmount(payload.AmountRaw, entry.Decimals)
	if err != nil {
		return Invalid(protocol.CodeInvalidAmount, err.Error()), nil, nil
	}
	if amount.IsZero() {
		return Invalid(protocol.CodeInvalidAmount, "mint amount must be positive"), nil, nil
	}
	if amount.Cmp(entry.EffectiveLimitPerMint()) > 0 {
		return Invalid(protocol.CodeMintExceedsLimit, "mint amount exceeds per-mint limit"), nil, nil
	}

	supply, err := view.SupplyOf(ctx, payload.Tick)
	if err != nil {
		return Outcome{}, nil, errors.WithStack(err)
	}
	if supply.Allocated().Add(amount).Cmp(entry.MaxSupply) > 0 {
		return Invalid(protocol.CodeMintExceedsSupply, "mint amount exceeds remaining supply"), nil, nil
	}

	receiver := firstReceiverPkScript(op.Tx, p.network)
	if receiver == "" {
		return Invalid(protocol.CodeNoStandardOutput, "transaction has no standard output to receive the mint"), nil, nil
	}

	updates := []state.Update{
		state.BalanceAdd{PkScript: receiver, Tick: payload.Tick, Amount: amount},
		state.SupplyAdd{Tick: payload.Tick, Field: entity.SupplyFieldUniversal, Amount: amount},
	}
	return Success(), updates, nil
}

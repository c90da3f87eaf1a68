package opi

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

// TransferProcessor moves balance from the resolved sender to the standard
// outputs of the transaction. A multi-receiver payload lists one amount per
// receiver and is applied all-or-nothing.
type TransferProcessor struct {
	network common.Network
}

func NewTransferProcessor(network common.Network) *TransferProcessor {
	return &TransferProcessor{network: network}
}

func (p *TransferProcessor) OpTag() string {
	return "transfer"
}

func (p *TransferProcessor) Process(ctx context.Context, op *entity.Operation, view *state.View) (Outcome, []state.Update, error) {
	payload := op.Payload
	amountsRaw := payload.AmountsRaw
	if payload.AmountRaw != "" {
		amountsRaw = []string{payload.AmountRaw}
	}
	if len(amountsRaw) == 0 {
		return Invalid(protocol.CodeMissingField, `transfer requires an "amt" field`), nil, nil
	}

	entry, err := view.DeployOf(ctx, payload.Tick)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return Invalid(protocol.CodeTickerNotDeployed, "ticker not deployed"), nil, nil
		}
		return Outcome{}, nil, errors.WithStack(err)
	}

	amounts := make([]uint128.Uint128, 0, len(amountsRaw))
	total := uint128.Zero
	for _, raw := range amountsRaw {
		amount, err := protocol.ParseAmount(raw, entry.Decimals)
		if err != nil {
			return Invalid(protocol.CodeInvalidAmount, err.Error()), nil, nil
		}
		if amount.IsZero() {
			return Invalid(protocol.CodeInvalidAmount, "transfer amount must be positive"), nil, nil
		}
		amounts = append(amounts, amount)
		sum, overflow := total.AddOverflow(amount)
		if overflow {
			return Invalid(protocol.CodeInvalidAmount, "transfer amounts overflow"), nil, nil
		}
		total = sum
	}

	sender := op.SenderPkScript
	if sender == "" {
		return Invalid(protocol.CodeUnresolvableSender, "no input with a resolvable address"), nil, nil
	}

	balance, err := view.BalanceOf(ctx, sender, payload.Tick)
	if err != nil {
		return Outcome{}, nil, errors.WithStack(err)
	}
	if balance.Cmp(total) < 0 {
		return Invalid(protocol.CodeInsufficientBalance, "sender balance below transfer amount"), nil, nil
	}

	receivers := receiverPkScripts(op.Tx, p.network, len(amounts))
	if len(receivers) < len(amounts) {
		return Invalid(protocol.CodeNoStandardOutput, "not enough standard outputs for the transfer receivers"), nil, nil
	}

	updates := make([]state.Update, 0, len(amounts)+1)
	updates = append(updates, state.BalanceSub{PkScript: sender, Tick: payload.Tick, Amount: total})
	for i, amount := range amounts {
		updates = append(updates, state.BalanceAdd{PkScript: receivers[i], Tick: payload.Tick, Amount: amount})
	}
	return Success(), updates, nil
}

package opi

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/legacy"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

// DeployProcessor creates new tickers in the universal namespace. A ticker
// that already exists in the legacy (inscription) namespace is rejected.
type DeployProcessor struct {
	bridge *legacy.Bridge
}

func NewDeployProcessor(bridge *legacy.Bridge) *DeployProcessor {
	return &DeployProcessor{bridge: bridge}
}

func (p *DeployProcessor) OpTag() string {
	return "deploy"
}

func (p *DeployProcessor) Process(ctx context.Context, op *entity.Operation, view *state.View) (Outcome, []state.Update, error) {
	payload := op.Payload
	if payload.MaxRaw == "" {
		return Invalid(protocol.CodeMissingField, `deploy requires a "max" field`), nil, nil
	}

	decimals, err := protocol.ParseDecimals(payload.DecRaw)
	if err != nil {
		return Invalid(protocol.CodeInvalidAmount, err.Error()), nil, nil
	}
	maxSupply, err := protocol.ParseAmount(payload.MaxRaw, decimals)
	if err != nil {
		return Invalid(protocol.CodeInvalidAmount, err.Error()), nil, nil
	}
	if maxSupply.IsZero() {
		return Invalid(protocol.CodeInvalidAmount, "max supply must be positive"), nil, nil
	}
	limitPerMint := maxSupply
	if payload.LimRaw != "" {
		limitPerMint, err = protocol.ParseAmount(payload.LimRaw, decimals)
		if err != nil {
			return Invalid(protocol.CodeInvalidAmount, err.Error()), nil, nil
		}
		if limitPerMint.Cmp(maxSupply) > 0 {
			return Invalid(protocol.CodeInvalidAmount, "mint limit exceeds max supply"), nil, nil
		}
		if limitPerMint.IsZero() {
			limitPerMint = maxSupply
		}
	}

	_, err = view.DeployOf(ctx, payload.Tick)
	if err == nil {
		return Invalid(protocol.CodeTickerAlreadyDeployed, "ticker already deployed"), nil, nil
	}
	if !errors.Is(err, errs.NotFound) {
		return Outcome{}, nil, errors.WithStack(err)
	}

	record, validated, err := p.bridge.CheckDeploy(ctx, payload.Tick)
	if err != nil {
		return Outcome{}, nil, errors.WithStack(err)
	}
	// A legacy record deployed above the current height does not exist yet
	// from this block's point of view. It must not affect the outcome, or
	// replaying the same block later would diverge.
	if record != nil && record.DeployBlockHeight <= op.BlockHeight {
		outcome := Invalid(protocol.CodeLegacyTokenExists, "ticker exists in the legacy namespace")
		if observations := p.legacyObservations(ctx, op, view, record); len(observations) > 0 {
			outcome = outcome.WithObservations(observations...)
		}
		return outcome, nil, nil
	}

	entry := &entity.DeployEntry{
		Tick:             payload.Tick,
		OriginalTick:     payload.OriginalTick,
		MaxSupply:        maxSupply,
		LimitPerMint:     limitPerMint,
		Decimals:         decimals,
		DeployerPkScript: op.SenderPkScript,
		DeployTxHash:     op.Tx.TxHash,
		BlockHeight:      op.BlockHeight,
		TxIndex:          op.TxIndex,
		Timestamp:        op.BlockTime,
		LegacyValidated:  validated,
	}
	return Success(), []state.Update{state.DeployCreate{Entry: entry}}, nil
}

// legacyObservations caches the conflicting legacy token and credits its max
// supply to the legacy bucket, once per ticker.
func (p *DeployProcessor) legacyObservations(ctx context.Context, op *entity.Operation, view *state.View, record *legacy.TokenRecord) []state.Update {
	if _, err := view.LegacyTokenOf(ctx, record.Tick); err == nil {
		return nil
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
	return []state.Update{
		state.LegacyTokenCreate{Token: token},
		state.SupplyAdd{Tick: record.Tick, Field: entity.SupplyFieldLegacy, Amount: record.MaxSupply},
	}
}

package brc20

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/protocol"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
	"github.com/universal-brc20/indexer/pkg/logger"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
)

// Process implements indexer.Processor. Each block is processed and committed
// atomically; transient failures retry the whole block with exponential
// backoff so a block is never half-applied.
func (p *Processor) Process(ctx context.Context, inputs []*types.Block) error {
	for _, block := range inputs {
		if err := p.processBlockWithRetry(ctx, block); err != nil {
			return errors.Wrapf(err, "failed to process block %d", block.Header.Height)
		}
	}
	return nil
}

func (p *Processor) processBlockWithRetry(ctx context.Context, block *types.Block) error {
	var (
		backoff    = time.Duration(p.retry.BackoffMsOrDefault()) * time.Millisecond
		maxBackoff = time.Duration(p.retry.BackoffMaxMsOrDefault()) * time.Millisecond
		maxRetries = p.retry.MaxRetriesOrDefault()
		lastErr    error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.WarnContext(ctx, "Transient failure while processing block, retrying",
				slogx.String("event", "process_block_retry"),
				slogx.Int64("height", block.Header.Height),
				slogx.Int("attempt", attempt),
				slogx.Duration("backoff", backoff),
				slogx.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := p.processBlock(ctx, block)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.Retryable) {
			return err
		}
		lastErr = err
	}
	return errors.Wrapf(lastErr, "retries exhausted after %d attempts", maxRetries)
}

func (p *Processor) processBlock(ctx context.Context, block *types.Block) error {
	height := uint64(block.Header.Height)
	intermediate := state.NewIntermediate()
	view := state.NewView(p.brc20Dg, intermediate, height)

	for _, tx := range block.Transactions {
		payloads := protocol.ExtractPayloads(tx, p.payloadMaxBytes)
		if len(payloads) == 0 {
			continue
		}

		senderPkScript, err := p.resolveSenderPkScript(ctx, tx)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve sender for tx %s", tx.TxHash)
		}

		for _, payload := range payloads {
			log := newOperationLog(block, tx, payload, senderPkScript)

			if payload.IsStructurallyInvalid() {
				log.ErrorCode = payload.Invalid.String()
				intermediate.AppendLog(log)
				continue
			}

			processor := p.registry.Route(payload.OpTag)
			if processor == nil {
				log.ErrorCode = protocol.CodeUnknownOp.String()
				intermediate.AppendLog(log)
				continue
			}

			op := &entity.Operation{
				Payload:        payload,
				Tx:             tx,
				BlockHeight:    height,
				BlockHash:      block.Header.Hash,
				BlockTime:      block.Header.Timestamp,
				TxIndex:        tx.Index,
				SenderPkScript: senderPkScript,
			}

			outcome, updates, err := processor.Process(ctx, op, view)
			if err != nil {
				return errors.Wrapf(err, "processor %q failed for tx %s", payload.OpTag, tx.TxHash)
			}

			// observations record external state and apply on any outcome
			intermediate.Apply(outcome.Observations)

			if outcome.IsSuccess() {
				intermediate.Apply(updates)
				log.Valid = true
				log.ToPkScript = firstReceiverPkScript(updates)
			} else {
				log.ErrorCode = outcome.Code.String()
				logger.DebugContext(ctx, "Rejected operation",
					slogx.String("event", "operation_rejected"),
					slogx.Stringer("tx_hash", tx.TxHash),
					slogx.String("op", payload.OpTag),
					slogx.String("code", outcome.Code.String()),
					slogx.String("reason", outcome.Reason),
				)
			}
			intermediate.AppendLog(log)
		}
	}

	plan := intermediate.Seal(height, block.Header.Hash.String(), block.Header.PrevBlock.String())
	if err := p.verifySupplyInvariant(ctx, view, plan); err != nil {
		return errors.Wrapf(err, "supply invariant violated at block %d", height)
	}
	checksum := calculateCommitChecksum(plan)

	brc20DgTx, err := p.brc20Dg.BeginBRC20Tx(ctx)
	if err != nil {
		return errors.Wrapf(errs.Retryable, "failed to begin transaction: %v", err)
	}
	defer func() {
		if err := brc20DgTx.Rollback(ctx); err != nil {
			logger.WarnContext(ctx, "failed to rollback transaction",
				slogx.Error(err),
				slogx.String("event", "rollback_brc20_insertion"),
			)
		}
	}()

	if err := applyCommitPlan(ctx, brc20DgTx, plan, height); err != nil {
		return errors.Wrap(err, "failed to apply commit plan")
	}
	if logs := intermediate.Logs(); len(logs) > 0 {
		if err := brc20DgTx.CreateOperationLogs(ctx, logs); err != nil {
			return errors.Wrap(err, "failed to create operation logs")
		}
	}
	if err := brc20DgTx.CreateIndexedBlock(ctx, &entity.IndexedBlock{
		Height:         height,
		Hash:           block.Header.Hash,
		PrevHash:       block.Header.PrevBlock,
		CommitChecksum: checksum,
		CommitPlan:     plan,
		CreatedAt:      time.Now(),
	}); err != nil {
		return errors.Wrap(err, "failed to create indexed block")
	}
	if err := brc20DgTx.Commit(ctx); err != nil {
		return errors.Wrapf(errs.Retryable, "failed to commit transaction: %v", err)
	}

	logger.InfoContext(ctx, "Indexed block",
		slogx.String("event", "indexed_block"),
		slogx.Uint64("height", height),
		slogx.Stringer("hash", block.Header.Hash),
		slogx.Int("operations", len(intermediate.Logs())),
		slogx.Stringer("checksum", checksum),
	)
	return nil
}

// resolveSenderPkScript returns the hex-encoded script of the first input's
// previous output. Coinbase transactions and unparseable scripts resolve to
// an empty sender; node failures are transient.
func (p *Processor) resolveSenderPkScript(ctx context.Context, tx *types.Transaction) (string, error) {
	if len(tx.TxIn) == 0 {
		return "", nil
	}
	txIn := tx.TxIn[0]
	if txIn.PreviousOutTxHash.IsEqual(&chainhash.Hash{}) {
		// coinbase
		return "", nil
	}

	outPoint := wire.OutPoint{Hash: txIn.PreviousOutTxHash, Index: txIn.PreviousOutIndex}
	if pkScript, ok := p.pkScriptCache.Get(outPoint); ok {
		return hex.EncodeToString(pkScript), nil
	}

	prevTx, _, err := p.btcClient.GetRawTransactionAndHeightByTxHash(ctx, txIn.PreviousOutTxHash)
	if err != nil {
		return "", errors.Wrapf(errs.Retryable, "failed to fetch previous transaction %s: %v", txIn.PreviousOutTxHash, err)
	}
	if int(txIn.PreviousOutIndex) >= len(prevTx.TxOut) {
		return "", nil
	}
	pkScript := prevTx.TxOut[txIn.PreviousOutIndex].PkScript
	p.pkScriptCache.Add(outPoint, pkScript)
	return hex.EncodeToString(pkScript), nil
}

// verifySupplyInvariant is a backstop over the per-operation checks: after all
// block effects are accumulated, no ticker with a universal deploy may exceed
// its max supply across all namespaces.
func (p *Processor) verifySupplyInvariant(ctx context.Context, view *state.View, plan *entity.CommitPlan) error {
	checked := make(map[string]struct{})
	for _, delta := range plan.SupplyAdds {
		if _, ok := checked[delta.Tick]; ok {
			continue
		}
		checked[delta.Tick] = struct{}{}

		entry, err := view.DeployOf(ctx, delta.Tick)
		if err != nil {
			if errors.Is(err, errs.NotFound) {
				// legacy-only ticker, capped by its own namespace
				continue
			}
			return errors.Wrapf(err, "failed to get deploy entry for tick %q", delta.Tick)
		}
		supply, err := view.SupplyOf(ctx, delta.Tick)
		if err != nil {
			return errors.Wrapf(err, "failed to get supply for tick %q", delta.Tick)
		}
		if supply.Allocated().Cmp(entry.MaxSupply) > 0 {
			return errors.Wrapf(errs.InternalError, "tick %q allocated supply %s exceeds max supply %s", delta.Tick, supply.Allocated(), entry.MaxSupply)
		}
	}
	return nil
}

func newOperationLog(block *types.Block, tx *types.Transaction, payload *protocol.Payload, senderPkScript string) *entity.OperationLog {
	amountRaw := payload.AmountRaw
	if amountRaw == "" && payload.MaxRaw != "" {
		amountRaw = payload.MaxRaw
	}
	return &entity.OperationLog{
		TxHash:       tx.TxHash,
		OpTag:        payload.OpTag,
		Tick:         payload.Tick,
		AmountRaw:    amountRaw,
		BlockHeight:  uint64(block.Header.Height),
		BlockHash:    block.Header.Hash,
		TxIndex:      tx.Index,
		SubIndex:     payload.SubIndex,
		FromPkScript: senderPkScript,
		RawPayload:   payload.Raw,
		Timestamp:    block.Header.Timestamp,
	}
}

// firstReceiverPkScript extracts the first credited script of a successful
// operation for its log row. Operations without balance credits have no
// receiver.
func firstReceiverPkScript(updates []state.Update) string {
	for _, update := range updates {
		if add, ok := update.(state.BalanceAdd); ok {
			return add.PkScript
		}
	}
	return ""
}

// applyCommitPlan writes every effect of a sealed plan through the writer
// datagateway. Used for both forward commits and reorg reverts (with the
// inverse plan).
func applyCommitPlan(ctx context.Context, dg datagateway.BRC20WriterDataGateway, plan *entity.CommitPlan, blockHeight uint64) error {
	for _, snapshot := range plan.NewDeploys {
		entry, err := snapshot.DeployEntry()
		if err != nil {
			return errors.WithStack(err)
		}
		if err := dg.CreateDeployEntry(ctx, entry); err != nil {
			return errors.Wrapf(err, "failed to create deploy entry %q", entry.Tick)
		}
	}
	for _, tick := range plan.DeletedDeploys {
		if err := dg.DeleteDeployEntryByTick(ctx, tick); err != nil {
			return errors.Wrapf(err, "failed to delete deploy entry %q", tick)
		}
	}
	for _, snapshot := range plan.NewLegacyTokens {
		token, err := snapshot.LegacyToken()
		if err != nil {
			return errors.WithStack(err)
		}
		if err := dg.CreateLegacyToken(ctx, token); err != nil {
			return errors.Wrapf(err, "failed to create legacy token %q", token.Tick)
		}
	}
	for _, tick := range plan.DeletedLegacyTokens {
		if err := dg.DeleteLegacyTokenByTick(ctx, tick); err != nil {
			return errors.Wrapf(err, "failed to delete legacy token %q", tick)
		}
	}
	for _, delta := range plan.BalanceAdds {
		amount, err := uint128.FromString(delta.Amount)
		if err != nil {
			return errors.Wrapf(errs.InternalError, "invalid balance delta amount %q", delta.Amount)
		}
		if err := dg.AddBalance(ctx, delta.PkScript, delta.Tick, amount, blockHeight); err != nil {
			return errors.Wrapf(err, "failed to add balance for tick %q", delta.Tick)
		}
	}
	for _, delta := range plan.BalanceSubs {
		amount, err := uint128.FromString(delta.Amount)
		if err != nil {
			return errors.Wrapf(errs.InternalError, "invalid balance delta amount %q", delta.Amount)
		}
		if err := dg.SubBalance(ctx, delta.PkScript, delta.Tick, amount, blockHeight); err != nil {
			return errors.Wrapf(err, "failed to sub balance for tick %q", delta.Tick)
		}
	}
	for _, delta := range plan.SupplyAdds {
		amount, err := uint128.FromString(delta.Amount)
		if err != nil {
			return errors.Wrapf(errs.InternalError, "invalid supply delta amount %q", delta.Amount)
		}
		if err := dg.AddSupply(ctx, delta.Tick, delta.Field, amount, blockHeight); err != nil {
			return errors.Wrapf(err, "failed to add supply for tick %q", delta.Tick)
		}
	}
	for _, delta := range plan.SupplySubs {
		amount, err := uint128.FromString(delta.Amount)
		if err != nil {
			return errors.Wrapf(errs.InternalError, "invalid supply delta amount %q", delta.Amount)
		}
		if err := dg.SubSupply(ctx, delta.Tick, delta.Field, amount, blockHeight); err != nil {
			return errors.Wrapf(err, "failed to sub supply for tick %q", delta.Tick)
		}
	}
	return nil
}

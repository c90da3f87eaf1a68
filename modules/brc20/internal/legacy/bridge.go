package legacy

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/pkg/logger"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
)

// Bridge applies the cross-namespace policy on top of the oracle. A nil
// oracle disables all legacy checks.
type Bridge struct {
	oracle        Oracle
	requireLegacy bool
}

func NewBridge(oracle Oracle, requireLegacy bool) *Bridge {
	return &Bridge{
		oracle:        oracle,
		requireLegacy: requireLegacy,
	}
}

// Enabled reports whether cross-namespace checks are configured.
func (b *Bridge) Enabled() bool {
	return b.oracle != nil
}

// CheckDeploy looks the ticker up in the legacy namespace. A non-nil record
// means the ticker already exists there and the deploy must be rejected.
// validated is false when the check could not be performed; with
// require_legacy set, an unreachable oracle is returned as a transient error
// instead so the block is retried.
func (b *Bridge) CheckDeploy(ctx context.Context, tick string) (record *TokenRecord, validated bool, err error) {
	if b.oracle == nil {
		return nil, false, nil
	}
	record, err = b.oracle.LookupTicker(ctx, tick)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, true, nil
		}
		if b.requireLegacy {
			return nil, false, errors.Wrapf(err, "legacy lookup required but unavailable, tick: %s", tick)
		}
		logger.WarnContext(ctx, "legacy lookup failed, deploy proceeds unvalidated",
			slogx.String("tick", tick),
			slogx.Error(err),
		)
		return nil, false, nil
	}
	return record, true, nil
}

// LookupToken fetches the legacy token record for a ticker. Returns
// errs.NotFound when the ticker does not exist in the legacy namespace, or a
// transient error when the oracle is unreachable.
func (b *Bridge) LookupToken(ctx context.Context, tick string) (*TokenRecord, error) {
	if b.oracle == nil {
		return nil, errors.WithStack(errs.NotFound)
	}
	record, err := b.oracle.LookupTicker(ctx, tick)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return record, nil
}

// MatchNoReturn finds the legacy transfer event credited in the transaction
// that exactly matches the claimed (tick, amount, sender). Returns nil when
// no event matches. Oracle failures are transient: a no-return cannot be
// decided without the event feed.
func (b *Bridge) MatchNoReturn(ctx context.Context, txHash chainhash.Hash, tick string, amount uint128.Uint128, senderAddress string) (*TransferEvent, error) {
	if b.oracle == nil {
		return nil, nil
	}
	events, err := b.oracle.TransferEventsForTx(ctx, txHash)
	if err != nil {
		return nil, errors.Wrapf(err, "can't fetch legacy transfer events, tx: %s", txHash)
	}
	for _, event := range events {
		if event.Tick == tick && event.Amount.Cmp(amount) == 0 && event.SenderAddress == senderAddress {
			return event, nil
		}
	}
	return nil, nil
}

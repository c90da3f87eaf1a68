package entity

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common/errs"
)

// CommitPlan is the complete, ordered effect of one block on the token state.
// It is applied atomically at commit and persisted alongside the indexed
// block; a reorg reverts the block by applying Inverse().
//
// Amounts are serialized as base-unit integer strings to keep the stored plan
// and its checksum independent of in-memory integer representations.
type CommitPlan struct {
	Height   uint64 `json:"height"`
	Hash     string `json:"hash"`
	PrevHash string `json:"prevHash"`

	BalanceAdds []BalanceDelta `json:"balanceAdds,omitempty"`
	BalanceSubs []BalanceDelta `json:"balanceSubs,omitempty"`

	NewDeploys     []DeploySnapshot `json:"newDeploys,omitempty"`
	DeletedDeploys []string         `json:"deletedDeploys,omitempty"`

	SupplyAdds []SupplyDelta `json:"supplyAdds,omitempty"`
	SupplySubs []SupplyDelta `json:"supplySubs,omitempty"`

	NewLegacyTokens     []LegacyTokenSnapshot `json:"newLegacyTokens,omitempty"`
	DeletedLegacyTokens []string              `json:"deletedLegacyTokens,omitempty"`

	LogEntries []LogEntrySnapshot `json:"logEntries,omitempty"`
}

type BalanceDelta struct {
	PkScript string `json:"pkScript"`
	Tick     string `json:"tick"`
	Amount   string `json:"amount"`
}

type SupplyDelta struct {
	Tick   string      `json:"tick"`
	Field  SupplyField `json:"field"`
	Amount string      `json:"amount"`
}

type DeploySnapshot struct {
	Tick             string `json:"tick"`
	OriginalTick     string `json:"originalTick"`
	MaxSupply        string `json:"maxSupply"`
	LimitPerMint     string `json:"limitPerMint"`
	Decimals         uint16 `json:"decimals"`
	DeployerPkScript string `json:"deployerPkScript"`
	DeployTxHash     string `json:"deployTxHash"`
	BlockHeight      uint64 `json:"blockHeight"`
	TxIndex          uint32 `json:"txIndex"`
	Timestamp        int64  `json:"timestamp"`
	LegacyValidated  bool   `json:"legacyValidated"`
}

type LegacyTokenSnapshot struct {
	Tick                string `json:"tick"`
	OriginalTick        string `json:"originalTick"`
	MaxSupply           string `json:"maxSupply"`
	Decimals            uint16 `json:"decimals"`
	DeployInscriptionId string `json:"deployInscriptionId"`
	DeployedAtHeight    uint64 `json:"deployedAtHeight"`
	BlockHeight         uint64 `json:"blockHeight"`
	FetchedAt           int64  `json:"fetchedAt"`
}

type LogEntrySnapshot struct {
	TxHash       string `json:"txHash"`
	OpTag        string `json:"op"`
	Tick         string `json:"tick,omitempty"`
	AmountRaw    string `json:"amt,omitempty"`
	BlockHeight  uint64 `json:"blockHeight"`
	BlockHash    string `json:"blockHash"`
	TxIndex      uint32 `json:"txIndex"`
	SubIndex     int32  `json:"subIndex"`
	FromPkScript string `json:"from,omitempty"`
	ToPkScript   string `json:"to,omitempty"`
	Valid        bool   `json:"valid"`
	ErrorCode    string `json:"errorCode,omitempty"`
	RawPayload   []byte `json:"rawPayload,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Inverse returns the plan that undoes this plan. Balance and supply deltas
// swap direction, created rows become deletions, and log entries are dropped
// (they are removed by block height during revert).
func (p *CommitPlan) Inverse() *CommitPlan {
	inverse := &CommitPlan{
		Height:   p.Height,
		Hash:     p.Hash,
		PrevHash: p.PrevHash,

		BalanceAdds: p.BalanceSubs,
		BalanceSubs: p.BalanceAdds,

		SupplyAdds: p.SupplySubs,
		SupplySubs: p.SupplyAdds,
	}
	for _, deploy := range p.NewDeploys {
		inverse.DeletedDeploys = append(inverse.DeletedDeploys, deploy.Tick)
	}
	for _, token := range p.NewLegacyTokens {
		inverse.DeletedLegacyTokens = append(inverse.DeletedLegacyTokens, token.Tick)
	}
	return inverse
}

// IsEmpty reports whether the plan carries no state changes and no log
// entries.
func (p *CommitPlan) IsEmpty() bool {
	return len(p.BalanceAdds) == 0 && len(p.BalanceSubs) == 0 &&
		len(p.NewDeploys) == 0 && len(p.DeletedDeploys) == 0 &&
		len(p.SupplyAdds) == 0 && len(p.SupplySubs) == 0 &&
		len(p.NewLegacyTokens) == 0 && len(p.DeletedLegacyTokens) == 0 &&
		len(p.LogEntries) == 0
}

// DeployEntry reconstructs the entity from its snapshot.
func (s DeploySnapshot) DeployEntry() (*DeployEntry, error) {
	maxSupply, err := uint128.FromString(s.MaxSupply)
	if err != nil {
		return nil, errors.Wrapf(errs.InternalError, "invalid max supply in deploy snapshot: %s", s.MaxSupply)
	}
	limitPerMint, err := uint128.FromString(s.LimitPerMint)
	if err != nil {
		return nil, errors.Wrapf(errs.InternalError, "invalid mint limit in deploy snapshot: %s", s.LimitPerMint)
	}
	txHash, err := chainhash.NewHashFromStr(s.DeployTxHash)
	if err != nil {
		return nil, errors.Wrapf(errs.InternalError, "invalid tx hash in deploy snapshot: %s", s.DeployTxHash)
	}
	return &DeployEntry{
		Tick:             s.Tick,
		OriginalTick:     s.OriginalTick,
		MaxSupply:        maxSupply,
		LimitPerMint:     limitPerMint,
		Decimals:         s.Decimals,
		DeployerPkScript: s.DeployerPkScript,
		DeployTxHash:     *txHash,
		BlockHeight:      s.BlockHeight,
		TxIndex:          s.TxIndex,
		Timestamp:        time.Unix(s.Timestamp, 0).UTC(),
		LegacyValidated:  s.LegacyValidated,
	}, nil
}

// NewDeploySnapshot converts the entity into its plan snapshot.
func NewDeploySnapshot(entry *DeployEntry) DeploySnapshot {
	return DeploySnapshot{
		Tick:             entry.Tick,
		OriginalTick:     entry.OriginalTick,
		MaxSupply:        entry.MaxSupply.String(),
		LimitPerMint:     entry.LimitPerMint.String(),
		Decimals:         entry.Decimals,
		DeployerPkScript: entry.DeployerPkScript,
		DeployTxHash:     entry.DeployTxHash.String(),
		BlockHeight:      entry.BlockHeight,
		TxIndex:          entry.TxIndex,
		Timestamp:        entry.Timestamp.Unix(),
		LegacyValidated:  entry.LegacyValidated,
	}
}

// NewLegacyTokenSnapshot converts the entity into its plan snapshot.
func NewLegacyTokenSnapshot(token *LegacyToken) LegacyTokenSnapshot {
	return LegacyTokenSnapshot{
		Tick:                token.Tick,
		OriginalTick:        token.OriginalTick,
		MaxSupply:           token.MaxSupply.String(),
		Decimals:            token.Decimals,
		DeployInscriptionId: token.DeployInscriptionId,
		DeployedAtHeight:    token.DeployedAtHeight,
		BlockHeight:         token.BlockHeight,
		FetchedAt:           token.FetchedAt.Unix(),
	}
}

// LegacyToken reconstructs the entity from its snapshot.
func (s LegacyTokenSnapshot) LegacyToken() (*LegacyToken, error) {
	maxSupply, err := uint128.FromString(s.MaxSupply)
	if err != nil {
		return nil, errors.Wrapf(errs.InternalError, "invalid max supply in legacy token snapshot: %s", s.MaxSupply)
	}
	return &LegacyToken{
		Tick:                s.Tick,
		OriginalTick:        s.OriginalTick,
		MaxSupply:           maxSupply,
		Decimals:            s.Decimals,
		DeployInscriptionId: s.DeployInscriptionId,
		DeployedAtHeight:    s.DeployedAtHeight,
		BlockHeight:         s.BlockHeight,
		FetchedAt:           time.Unix(s.FetchedAt, 0).UTC(),
	}, nil
}

// NewLogEntrySnapshot converts the audit record into its plan snapshot.
func NewLogEntrySnapshot(log *OperationLog) LogEntrySnapshot {
	return LogEntrySnapshot{
		TxHash:       log.TxHash.String(),
		OpTag:        log.OpTag,
		Tick:         log.Tick,
		AmountRaw:    log.AmountRaw,
		BlockHeight:  log.BlockHeight,
		BlockHash:    log.BlockHash.String(),
		TxIndex:      log.TxIndex,
		SubIndex:     log.SubIndex,
		FromPkScript: log.FromPkScript,
		ToPkScript:   log.ToPkScript,
		Valid:        log.Valid,
		ErrorCode:    log.ErrorCode,
		RawPayload:   log.RawPayload,
		Timestamp:    log.Timestamp.Unix(),
	}
}

// OperationLog reconstructs the audit record from its snapshot.
func (s LogEntrySnapshot) OperationLog() (*OperationLog, error) {
	txHash, err := chainhash.NewHashFromStr(s.TxHash)
	if err != nil {
		return nil, errors.Wrapf(errs.InternalError, "invalid tx hash in log snapshot: %s", s.TxHash)
	}
	blockHash, err := chainhash.NewHashFromStr(s.BlockHash)
	if err != nil {
		return nil, errors.Wrapf(errs.InternalError, "invalid block hash in log snapshot: %s", s.BlockHash)
	}
	return &OperationLog{
		TxHash:       *txHash,
		OpTag:        s.OpTag,
		Tick:         s.Tick,
		AmountRaw:    s.AmountRaw,
		BlockHeight:  s.BlockHeight,
		BlockHash:    *blockHash,
		TxIndex:      s.TxIndex,
		SubIndex:     s.SubIndex,
		FromPkScript: s.FromPkScript,
		ToPkScript:   s.ToPkScript,
		Valid:        s.Valid,
		ErrorCode:    s.ErrorCode,
		RawPayload:   s.RawPayload,
		Timestamp:    time.Unix(s.Timestamp, 0).UTC(),
	}, nil
}

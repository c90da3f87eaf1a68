package brc20

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

// calculateCommitChecksum hashes the canonical serialization of a sealed
// commit plan. Plan sections are already deterministically ordered by Seal, so
// two indexers committing the same block always produce the same checksum.
func calculateCommitChecksum(plan *entity.CommitPlan) chainhash.Hash {
	var payload strings.Builder
	payload.WriteString(fmt.Sprintf("payload:v%d:%d:%s:%s", EventHashVersion, plan.Height, plan.Hash, plan.PrevHash))
	for _, delta := range plan.BalanceAdds {
		payload.WriteString("|balance_add:" + serializeBalanceDelta(delta))
	}
	for _, delta := range plan.BalanceSubs {
		payload.WriteString("|balance_sub:" + serializeBalanceDelta(delta))
	}
	for _, deploy := range plan.NewDeploys {
		payload.WriteString("|deploy:" + serializeDeploySnapshot(deploy))
	}
	for _, tick := range plan.DeletedDeploys {
		payload.WriteString("|deploy_del:" + tick)
	}
	for _, delta := range plan.SupplyAdds {
		payload.WriteString("|supply_add:" + serializeSupplyDelta(delta))
	}
	for _, delta := range plan.SupplySubs {
		payload.WriteString("|supply_sub:" + serializeSupplyDelta(delta))
	}
	for _, token := range plan.NewLegacyTokens {
		payload.WriteString("|legacy:" + serializeLegacyTokenSnapshot(token))
	}
	for _, tick := range plan.DeletedLegacyTokens {
		payload.WriteString("|legacy_del:" + tick)
	}
	for _, log := range plan.LogEntries {
		payload.WriteString("|log:" + serializeLogEntrySnapshot(log))
	}
	return chainhash.DoubleHashH([]byte(payload.String()))
}

func serializeBalanceDelta(delta entity.BalanceDelta) string {
	return strings.Join([]string{delta.PkScript, delta.Tick, delta.Amount}, ":")
}

func serializeSupplyDelta(delta entity.SupplyDelta) string {
	return strings.Join([]string{delta.Tick, string(delta.Field), delta.Amount}, ":")
}

func serializeDeploySnapshot(deploy entity.DeploySnapshot) string {
	return strings.Join([]string{
		deploy.Tick,
		deploy.OriginalTick,
		deploy.MaxSupply,
		deploy.LimitPerMint,
		fmt.Sprint(deploy.Decimals),
		deploy.DeployerPkScript,
		deploy.DeployTxHash,
		fmt.Sprint(deploy.TxIndex),
		fmt.Sprint(deploy.LegacyValidated),
	}, ":")
}

func serializeLegacyTokenSnapshot(token entity.LegacyTokenSnapshot) string {
	return strings.Join([]string{
		token.Tick,
		token.OriginalTick,
		token.MaxSupply,
		fmt.Sprint(token.Decimals),
		token.DeployInscriptionId,
		fmt.Sprint(token.DeployedAtHeight),
	}, ":")
}

func serializeLogEntrySnapshot(log entity.LogEntrySnapshot) string {
	return strings.Join([]string{
		log.TxHash,
		log.OpTag,
		log.Tick,
		log.AmountRaw,
		fmt.Sprint(log.TxIndex),
		fmt.Sprint(log.SubIndex),
		log.FromPkScript,
		log.ToPkScript,
		fmt.Sprint(log.Valid),
		log.ErrorCode,
	}, ":")
}

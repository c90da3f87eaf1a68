package brc20

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

func testCommitPlan() *entity.CommitPlan {
	return &entity.CommitPlan{
		Height:   900000,
		Hash:     "000000000000000000012f2c07501b32d07c04fba0f6a3fa7b9e9f1b4f0c1ecb",
		PrevHash: "00000000000000000000f4dd7b9a68c9e6ae46e368a65a0a8eebfbcbc1f63c98",
		BalanceAdds: []entity.BalanceDelta{
			{PkScript: "0014aa", Tick: "ORDI", Amount: "100"},
		},
		BalanceSubs: []entity.BalanceDelta{
			{PkScript: "0014bb", Tick: "ORDI", Amount: "100"},
		},
		NewDeploys: []entity.DeploySnapshot{
			{Tick: "ORDI", OriginalTick: "ordi", MaxSupply: "21000000", LimitPerMint: "1000", DeployerPkScript: "0014aa", DeployTxHash: "aa", TxIndex: 3},
		},
		SupplyAdds: []entity.SupplyDelta{
			{Tick: "ORDI", Field: entity.SupplyFieldUniversal, Amount: "100"},
		},
		NewLegacyTokens: []entity.LegacyTokenSnapshot{
			{Tick: "SATS", OriginalTick: "sats", MaxSupply: "21000000", DeployInscriptionId: "abcdi0", DeployedAtHeight: 779832},
		},
		LogEntries: []entity.LogEntrySnapshot{
			{TxHash: "aa", OpTag: "mint", Tick: "ORDI", AmountRaw: "100", TxIndex: 3, Valid: true},
		},
	}
}

func TestCalculateCommitChecksum(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, calculateCommitChecksum(testCommitPlan()), calculateCommitChecksum(testCommitPlan()))
	})

	t.Run("sensitive_to_every_section", func(t *testing.T) {
		base := calculateCommitChecksum(testCommitPlan())
		mutations := map[string]func(plan *entity.CommitPlan){
			"height":        func(p *entity.CommitPlan) { p.Height++ },
			"hash":          func(p *entity.CommitPlan) { p.Hash = "other" },
			"prev_hash":     func(p *entity.CommitPlan) { p.PrevHash = "other" },
			"balance_add":   func(p *entity.CommitPlan) { p.BalanceAdds[0].Amount = "101" },
			"balance_sub":   func(p *entity.CommitPlan) { p.BalanceSubs[0].PkScript = "0014cc" },
			"deploy":        func(p *entity.CommitPlan) { p.NewDeploys[0].LegacyValidated = true },
			"deploy_del":    func(p *entity.CommitPlan) { p.DeletedDeploys = []string{"ORDI"} },
			"supply_add":    func(p *entity.CommitPlan) { p.SupplyAdds[0].Field = entity.SupplyFieldBurned },
			"supply_sub":    func(p *entity.CommitPlan) { p.SupplySubs = p.SupplyAdds },
			"legacy_token":  func(p *entity.CommitPlan) { p.NewLegacyTokens[0].Decimals = 8 },
			"legacy_del":    func(p *entity.CommitPlan) { p.DeletedLegacyTokens = []string{"SATS"} },
			"log_valid":     func(p *entity.CommitPlan) { p.LogEntries[0].Valid = false },
			"log_err_code":  func(p *entity.CommitPlan) { p.LogEntries[0].ErrorCode = "INVALID_AMOUNT" },
			"log_sub_index": func(p *entity.CommitPlan) { p.LogEntries[0].SubIndex = 1 },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				plan := testCommitPlan()
				mutate(plan)
				assert.NotEqual(t, base, calculateCommitChecksum(plan))
			})
		}
	})
}

func TestCommitPlanInverse(t *testing.T) {
	plan := testCommitPlan()
	inverse := plan.Inverse()

	assert.Equal(t, plan.Height, inverse.Height)
	assert.Equal(t, plan.Hash, inverse.Hash)

	require.Len(t, inverse.BalanceAdds, 1)
	assert.Equal(t, "0014bb", inverse.BalanceAdds[0].PkScript)
	require.Len(t, inverse.BalanceSubs, 1)
	assert.Equal(t, "0014aa", inverse.BalanceSubs[0].PkScript)

	assert.Empty(t, inverse.NewDeploys)
	assert.Equal(t, []string{"ORDI"}, inverse.DeletedDeploys)
	assert.Empty(t, inverse.NewLegacyTokens)
	assert.Equal(t, []string{"SATS"}, inverse.DeletedLegacyTokens)

	assert.Empty(t, inverse.SupplyAdds)
	require.Len(t, inverse.SupplySubs, 1)
	assert.Equal(t, entity.SupplyFieldUniversal, inverse.SupplySubs[0].Field)

	assert.Empty(t, inverse.LogEntries)
}

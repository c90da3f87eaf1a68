package state

import (
	"slices"
	"strings"

	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

type balanceKey struct {
	PkScript string
	Tick     string
}

type supplyKey struct {
	Tick  string
	Field entity.SupplyField
}

// Intermediate accumulates the uncommitted effects of the current block.
// Operations within a block observe earlier effects through the View.
type Intermediate struct {
	balanceAdds  map[balanceKey]uint128.Uint128
	balanceSubs  map[balanceKey]uint128.Uint128
	deploys      map[string]*entity.DeployEntry
	supplyAdds   map[supplyKey]uint128.Uint128
	legacyTokens map[string]*entity.LegacyToken
	logs         []*entity.OperationLog
}

func NewIntermediate() *Intermediate {
	return &Intermediate{
		balanceAdds:  make(map[balanceKey]uint128.Uint128),
		balanceSubs:  make(map[balanceKey]uint128.Uint128),
		deploys:      make(map[string]*entity.DeployEntry),
		supplyAdds:   make(map[supplyKey]uint128.Uint128),
		legacyTokens: make(map[string]*entity.LegacyToken),
		logs:         make([]*entity.OperationLog, 0),
	}
}

// Apply folds a batch of update commands into the intermediate state.
func (s *Intermediate) Apply(updates []Update) {
	for _, update := range updates {
		switch u := update.(type) {
		case BalanceAdd:
			key := balanceKey{PkScript: u.PkScript, Tick: u.Tick}
			s.balanceAdds[key] = s.balanceAdds[key].Add(u.Amount)
		case BalanceSub:
			key := balanceKey{PkScript: u.PkScript, Tick: u.Tick}
			s.balanceSubs[key] = s.balanceSubs[key].Add(u.Amount)
		case DeployCreate:
			s.deploys[u.Entry.Tick] = u.Entry
		case SupplyAdd:
			key := supplyKey{Tick: u.Tick, Field: u.Field}
			s.supplyAdds[key] = s.supplyAdds[key].Add(u.Amount)
		case LegacyTokenCreate:
			s.legacyTokens[u.Token.Tick] = u.Token
		}
	}
}

// AppendLog records the outcome of one operation, valid or rejected.
func (s *Intermediate) AppendLog(log *entity.OperationLog) {
	s.logs = append(s.logs, log)
}

// Logs returns the accumulated operation log in processing order.
func (s *Intermediate) Logs() []*entity.OperationLog {
	return s.logs
}

// Seal converts the accumulated state into a deterministic commit plan.
// Map iteration order is erased by sorting every section.
func (s *Intermediate) Seal(height uint64, hash, prevHash string) *entity.CommitPlan {
	plan := &entity.CommitPlan{
		Height:   height,
		Hash:     hash,
		PrevHash: prevHash,
	}

	plan.BalanceAdds = sealBalances(s.balanceAdds)
	plan.BalanceSubs = sealBalances(s.balanceSubs)

	ticks := lo.Keys(s.deploys)
	slices.Sort(ticks)
	for _, tick := range ticks {
		plan.NewDeploys = append(plan.NewDeploys, entity.NewDeploySnapshot(s.deploys[tick]))
	}

	supplyKeys := lo.Keys(s.supplyAdds)
	slices.SortFunc(supplyKeys, func(a, b supplyKey) int {
		if a.Tick != b.Tick {
			return strings.Compare(a.Tick, b.Tick)
		}
		return strings.Compare(string(a.Field), string(b.Field))
	})
	for _, key := range supplyKeys {
		plan.SupplyAdds = append(plan.SupplyAdds, entity.SupplyDelta{
			Tick:   key.Tick,
			Field:  key.Field,
			Amount: s.supplyAdds[key].String(),
		})
	}

	legacyTicks := lo.Keys(s.legacyTokens)
	slices.Sort(legacyTicks)
	for _, tick := range legacyTicks {
		plan.NewLegacyTokens = append(plan.NewLegacyTokens, entity.NewLegacyTokenSnapshot(s.legacyTokens[tick]))
	}

	for _, log := range s.logs {
		plan.LogEntries = append(plan.LogEntries, entity.NewLogEntrySnapshot(log))
	}
	return plan
}

func sealBalances(deltas map[balanceKey]uint128.Uint128) []entity.BalanceDelta {
	keys := lo.Keys(deltas)
	slices.SortFunc(keys, func(a, b balanceKey) int {
		if a.PkScript != b.PkScript {
			return strings.Compare(a.PkScript, b.PkScript)
		}
		return strings.Compare(a.Tick, b.Tick)
	})
	sealed := make([]entity.BalanceDelta, 0, len(keys))
	for _, key := range keys {
		if deltas[key].IsZero() {
			continue
		}
		sealed = append(sealed, entity.BalanceDelta{
			PkScript: key.PkScript,
			Tick:     key.Tick,
			Amount:   deltas[key].String(),
		})
	}
	return sealed
}

package opi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/modules/brc20/internal/legacy"
	"github.com/universal-brc20/indexer/modules/brc20/internal/state"
)

type taggedProcessor struct {
	tag string
}

func (p *taggedProcessor) OpTag() string {
	return p.tag
}

func (p *taggedProcessor) Process(_ context.Context, _ *entity.Operation, _ *state.View) (Outcome, []state.Update, error) {
	return Success(), nil, nil
}

func TestRegistry(t *testing.T) {
	t.Run("routes_case_insensitively", func(t *testing.T) {
		registry := NewRegistry()
		mint := NewMintProcessor(common.NetworkMainnet)
		require.NoError(t, registry.Register(mint))

		assert.Equal(t, Processor(mint), registry.Route("mint"))
		assert.Equal(t, Processor(mint), registry.Route("MINT"))
	})

	t.Run("unknown_tag_routes_nil", func(t *testing.T) {
		registry := NewRegistry()
		assert.Nil(t, registry.Route("deploy"))
	})

	t.Run("duplicate_tag_rejected", func(t *testing.T) {
		registry := NewRegistry()
		require.NoError(t, registry.Register(&taggedProcessor{tag: "mint"}))
		err := registry.Register(&taggedProcessor{tag: "MINT"})
		assert.ErrorIs(t, err, errs.Duplicate)
	})

	t.Run("empty_tag_rejected", func(t *testing.T) {
		registry := NewRegistry()
		err := registry.Register(&taggedProcessor{tag: ""})
		assert.ErrorIs(t, err, errs.InvalidArgument)
	})

	t.Run("tags_sorted", func(t *testing.T) {
		registry := NewRegistry()
		bridge := legacy.NewBridge(nil, false)
		require.NoError(t, registry.Register(NewTransferProcessor(common.NetworkMainnet)))
		require.NoError(t, registry.Register(NewDeployProcessor(bridge)))
		require.NoError(t, registry.Register(NewNoReturnProcessor(bridge, common.NetworkMainnet)))
		require.NoError(t, registry.Register(NewMintProcessor(common.NetworkMainnet)))

		assert.Equal(t, []string{"deploy", "mint", "no_return", "transfer"}, registry.Tags())
	})
}

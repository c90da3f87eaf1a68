package btcutils_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

func TestToPkScript(t *testing.T) {
	pkScript := append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0x01}, 20)...)

	t.Run("empty_input_rejected", func(t *testing.T) {
		_, err := btcutils.ToPkScript(common.NetworkMainnet, "")
		assert.True(t, errors.Is(err, errs.InvalidArgument))
	})

	t.Run("invalid_network_rejected", func(t *testing.T) {
		_, err := btcutils.ToPkScript(common.Network("bogus"), "anything")
		assert.True(t, errors.Is(err, errs.InvalidArgument))
	})

	t.Run("hex_pkscript_decoded", func(t *testing.T) {
		got, err := btcutils.ToPkScript(common.NetworkMainnet, hex.EncodeToString(pkScript))
		require.NoError(t, err)
		assert.Equal(t, pkScript, got)
	})

	t.Run("address_round_trip", func(t *testing.T) {
		address, err := btcutils.PkScriptToAddress(pkScript, common.NetworkMainnet)
		require.NoError(t, err)
		require.NotEmpty(t, address)

		got, err := btcutils.ToPkScript(common.NetworkMainnet, address)
		require.NoError(t, err)
		assert.Equal(t, pkScript, got)
	})
}

func TestPkScriptToAddress(t *testing.T) {
	t.Run("op_return_has_no_address", func(t *testing.T) {
		_, err := btcutils.PkScriptToAddress([]byte{0x6a}, common.NetworkMainnet)
		assert.Error(t, err)
	})
}

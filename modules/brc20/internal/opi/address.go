package opi

import (
	"encoding/hex"

	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

// receiverPkScripts returns the hex pkScripts of the first n standard outputs
// of a transaction in output order. Standard means not OP_RETURN and carrying
// a resolvable address; unparseable outputs are skipped.
func receiverPkScripts(tx *types.Transaction, network common.Network, n int) []string {
	receivers := make([]string, 0, n)
	for _, txOut := range tx.TxOut {
		if len(receivers) == n {
			break
		}
		if txOut.IsOpReturn() {
			continue
		}
		if _, err := btcutils.PkScriptToAddress(txOut.PkScript, network); err != nil {
			continue
		}
		receivers = append(receivers, hex.EncodeToString(txOut.PkScript))
	}
	return receivers
}

// firstReceiverPkScript returns the hex pkScript of the first standard output,
// or empty when the transaction has none.
func firstReceiverPkScript(tx *types.Transaction, network common.Network) string {
	receivers := receiverPkScripts(tx, network, 1)
	if len(receivers) == 0 {
		return ""
	}
	return receivers[0]
}

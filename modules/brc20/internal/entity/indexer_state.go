package entity

import (
	"time"

	"github.com/universal-brc20/indexer/common"
)

// IndexerState pins the versions and network this database was built with.
// A mismatch at startup is a fatal configuration conflict.
type IndexerState struct {
	Id               int64
	ClientVersion    string
	DBVersion        int32
	EventHashVersion int32
	Network          common.Network
	CreatedAt        time.Time
}

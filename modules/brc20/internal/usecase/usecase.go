package usecase

import (
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
)

type Usecase struct {
	dg datagateway.BRC20DataGateway
}

func New(dg datagateway.BRC20DataGateway) *Usecase {
	return &Usecase{
		dg: dg,
	}
}

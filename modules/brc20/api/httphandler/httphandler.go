package httphandler

import (
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/modules/brc20/internal/usecase"
)

type HttpHandler struct {
	usecase *usecase.Usecase
	network common.Network
}

func New(network common.Network, usecase *usecase.Usecase) *HttpHandler {
	return &HttpHandler{
		network: network,
		usecase: usecase,
	}
}

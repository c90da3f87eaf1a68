package httphandler

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

const (
	defaultHoldersLimit = 100
	maxHoldersLimit     = 1000
)

type getHoldersRequest struct {
	Tick   string `params:"tick"`
	Limit  int32  `query:"limit"`
	Offset int32  `query:"offset"`
}

type holderResult struct {
	Address  string `json:"address"`
	PkScript string `json:"pkScript"`
	Amount   string `json:"amount"`
}

type getHoldersResult struct {
	List []holderResult `json:"list"`
}

type getHoldersResponse = common.HttpResponse[getHoldersResult]

func (h *HttpHandler) GetHolders(ctx *fiber.Ctx) (err error) {
	var req getHoldersRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if req.Limit <= 0 {
		req.Limit = defaultHoldersLimit
	}
	if req.Limit > maxHoldersLimit {
		req.Limit = maxHoldersLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	balances, err := h.usecase.GetHoldersByTick(ctx.UserContext(), req.Tick, req.Limit, req.Offset)
	if err != nil {
		return errors.Wrap(err, "error during GetHoldersByTick")
	}

	resp := getHoldersResponse{
		Result: &getHoldersResult{
			List: lo.Map(balances, func(balance *entity.Balance, _ int) holderResult {
				address := ""
				if pkScript, err := hex.DecodeString(balance.PkScript); err == nil {
					if a, err := btcutils.PkScriptToAddress(pkScript, h.network); err == nil {
						address = a
					}
				}
				return holderResult{
					Address:  address,
					PkScript: balance.PkScript,
					Amount:   balance.Amount.String(),
				}
			}),
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}

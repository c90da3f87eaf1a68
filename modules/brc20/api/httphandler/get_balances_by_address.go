package httphandler

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

type getBalancesRequest struct {
	Wallet string `params:"wallet"`
}

func (r getBalancesRequest) Validate() error {
	var errList []error
	if r.Wallet == "" {
		errList = append(errList, errors.New("'wallet' is required"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type balanceResult struct {
	Tick        string `json:"tick"`
	Amount      string `json:"amount"`
	BlockHeight uint64 `json:"blockHeight"`
}

type getBalancesResult struct {
	List []balanceResult `json:"list"`
}

type getBalancesResponse = common.HttpResponse[getBalancesResult]

func (h *HttpHandler) GetBalances(ctx *fiber.Ctx) (err error) {
	var req getBalancesRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	pkScript, err := btcutils.ToPkScript(h.network, req.Wallet)
	if err != nil {
		return errs.WithPublicMessage(errors.Wrap(errs.InvalidArgument, err.Error()), "unable to resolve pkscript from wallet")
	}

	balances, err := h.usecase.GetBalancesByPkScript(ctx.UserContext(), hex.EncodeToString(pkScript))
	if err != nil {
		return errors.Wrap(err, "error during GetBalancesByPkScript")
	}

	resp := getBalancesResponse{
		Result: &getBalancesResult{
			List: lo.Map(balances, func(balance *entity.Balance, _ int) balanceResult {
				return balanceResult{
					Tick:        balance.Tick,
					Amount:      balance.Amount.String(),
					BlockHeight: balance.BlockHeight,
				}
			}),
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}

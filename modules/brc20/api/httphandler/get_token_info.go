package httphandler

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

type getTokenInfoRequest struct {
	Tick string `params:"tick"`
}

type tokenSupplyResult struct {
	MaxSupply       string `json:"maxSupply"`
	UniversalMinted string `json:"universalMinted"`
	LegacyMinted    string `json:"legacyMinted"`
	Burned          string `json:"burned"`
	Total           string `json:"total"`
	Remaining       string `json:"remaining"`
}

type getTokenInfoResult struct {
	Tick             string            `json:"tick"`
	OriginalTick     string            `json:"originalTick"`
	LimitPerMint     string            `json:"limitPerMint"`
	Decimals         uint16            `json:"decimals"`
	DeployedBy       string            `json:"deployedBy"`
	DeployTxHash     string            `json:"deployTxHash"`
	DeployedAtHeight uint64            `json:"deployedAtHeight"`
	DeployedAt       int64             `json:"deployedAt"`
	LegacyValidated  bool              `json:"legacyValidated"`
	Supply           tokenSupplyResult `json:"supply"`
}

type getTokenInfoResponse = common.HttpResponse[getTokenInfoResult]

func (h *HttpHandler) GetTokenInfo(ctx *fiber.Ctx) (err error) {
	var req getTokenInfoRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}

	info, err := h.usecase.GetTokenInfo(ctx.UserContext(), req.Tick)
	if err != nil {
		return errors.Wrap(err, "error during GetTokenInfo")
	}
	entry, supply := info.Entry, info.Supply

	deployedBy := ""
	if entry.DeployerPkScript != "" {
		pkScript, err := hex.DecodeString(entry.DeployerPkScript)
		if err == nil {
			if address, err := btcutils.PkScriptToAddress(pkScript, h.network); err == nil {
				deployedBy = address
			}
		}
	}

	remaining := entry.MaxSupply
	if allocated := supply.Allocated(); allocated.Cmp(remaining) < 0 {
		remaining = remaining.Sub(allocated)
	} else {
		remaining = remaining.Sub(remaining)
	}

	resp := getTokenInfoResponse{
		Result: &getTokenInfoResult{
			Tick:             entry.Tick,
			OriginalTick:     entry.OriginalTick,
			LimitPerMint:     entry.EffectiveLimitPerMint().String(),
			Decimals:         entry.Decimals,
			DeployedBy:       deployedBy,
			DeployTxHash:     entry.DeployTxHash.String(),
			DeployedAtHeight: entry.BlockHeight,
			DeployedAt:       entry.Timestamp.Unix(),
			LegacyValidated:  entry.LegacyValidated,
			Supply: tokenSupplyResult{
				MaxSupply:       entry.MaxSupply.String(),
				UniversalMinted: supply.UniversalMinted.String(),
				LegacyMinted:    supply.LegacyMinted.String(),
				Burned:          supply.Burned.String(),
				Total:           supply.Total().String(),
				Remaining:       remaining.String(),
			},
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}

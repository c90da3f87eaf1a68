package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/universal-brc20/indexer/common"
)

type getCurrentBlockResult struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

type getCurrentBlockResponse = common.HttpResponse[getCurrentBlockResult]

func (h *HttpHandler) GetCurrentBlock(ctx *fiber.Ctx) (err error) {
	block, err := h.usecase.GetLatestIndexedBlock(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetLatestIndexedBlock")
	}

	resp := getCurrentBlockResponse{
		Result: &getCurrentBlockResult{
			Hash:   block.Hash.String(),
			Height: block.Height,
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}

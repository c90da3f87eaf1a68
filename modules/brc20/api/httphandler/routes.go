package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1/brc20")

	r.Get("/block", h.GetCurrentBlock)
	r.Get("/info/:tick", h.GetTokenInfo)
	r.Get("/holders/:tick", h.GetHolders)
	r.Get("/balances/wallet/:wallet", h.GetBalances)
	r.Get("/operations", h.GetOperations)
	return nil
}

package httphandler

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
	"github.com/universal-brc20/indexer/pkg/btcutils"
)

const (
	defaultOperationsLimit = 100
	maxOperationsLimit     = 1000
)

type getOperationsRequest struct {
	Tick       string `query:"tick"`
	TxHash     string `query:"txHash"`
	FromHeight uint64 `query:"fromHeight"`
	ToHeight   uint64 `query:"toHeight"`
	Valid      string `query:"valid"` // "true", "false", or empty for both
	Limit      int32  `query:"limit"`
	Offset     int32  `query:"offset"`
}

type operationResult struct {
	Id          int64  `json:"id"`
	TxHash      string `json:"txHash"`
	Op          string `json:"op"`
	Tick        string `json:"tick,omitempty"`
	Amount      string `json:"amount,omitempty"`
	BlockHeight uint64 `json:"blockHeight"`
	BlockHash   string `json:"blockHash"`
	TxIndex     uint32 `json:"txIndex"`
	SubIndex    int32  `json:"subIndex"`
	FromAddress string `json:"fromAddress,omitempty"`
	ToAddress   string `json:"toAddress,omitempty"`
	Valid       bool   `json:"valid"`
	ErrorCode   string `json:"errorCode,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type getOperationsResult struct {
	List []operationResult `json:"list"`
}

type getOperationsResponse = common.HttpResponse[getOperationsResult]

func (h *HttpHandler) GetOperations(ctx *fiber.Ctx) (err error) {
	var req getOperationsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if req.Limit <= 0 {
		req.Limit = defaultOperationsLimit
	}
	if req.Limit > maxOperationsLimit {
		req.Limit = maxOperationsLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	filter := datagateway.OperationLogFilter{
		Tick:       req.Tick,
		FromHeight: req.FromHeight,
		ToHeight:   req.ToHeight,
	}
	if req.TxHash != "" {
		txHash, err := chainhash.NewHashFromStr(req.TxHash)
		if err != nil {
			return errs.WithPublicMessage(errors.Wrap(errs.InvalidArgument, err.Error()), "invalid transaction hash")
		}
		filter.TxHash = txHash
	}
	switch req.Valid {
	case "true":
		filter.OnlyValid = true
	case "false":
		filter.OnlyInvalid = true
	case "":
	default:
		return errs.WithPublicMessage(errors.WithStack(errs.InvalidArgument), "'valid' must be true or false")
	}

	logs, err := h.usecase.GetOperationLogs(ctx.UserContext(), filter, req.Limit, req.Offset)
	if err != nil {
		return errors.Wrap(err, "error during GetOperationLogs")
	}

	resp := getOperationsResponse{
		Result: &getOperationsResult{
			List: lo.Map(logs, func(log *entity.OperationLog, _ int) operationResult {
				return operationResult{
					Id:          log.Id,
					TxHash:      log.TxHash.String(),
					Op:          log.OpTag,
					Tick:        log.Tick,
					Amount:      log.AmountRaw,
					BlockHeight: log.BlockHeight,
					BlockHash:   log.BlockHash.String(),
					TxIndex:     log.TxIndex,
					SubIndex:    log.SubIndex,
					FromAddress: h.addressFromHexPkScript(log.FromPkScript),
					ToAddress:   h.addressFromHexPkScript(log.ToPkScript),
					Valid:       log.Valid,
					ErrorCode:   log.ErrorCode,
					Timestamp:   log.Timestamp.Unix(),
				}
			}),
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}

func (h *HttpHandler) addressFromHexPkScript(pkScriptHex string) string {
	if pkScriptHex == "" {
		return ""
	}
	pkScript, err := hex.DecodeString(pkScriptHex)
	if err != nil {
		return ""
	}
	address, err := btcutils.PkScriptToAddress(pkScript, h.network)
	if err != nil {
		return ""
	}
	return address
}

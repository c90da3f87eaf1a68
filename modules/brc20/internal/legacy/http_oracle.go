package legacy

import (
	"context"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/pkg/httpclient"
)

// HTTPOracle queries an OPI-LC style API for legacy namespace state.
type HTTPOracle struct {
	client *httpclient.Client
}

func NewHTTPOracle(baseURL string) (*HTTPOracle, error) {
	client, err := httpclient.New(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid legacy oracle url")
	}
	return &HTTPOracle{client: client}, nil
}

type oracleEnvelope[T any] struct {
	Error  *string `json:"error"`
	Result T       `json:"result"`
}

type tickerInfoResult struct {
	Tick                string `json:"tick"`
	OriginalTick        string `json:"original_tick"`
	MaxSupply           string `json:"max_supply"`
	LimitPerMint        string `json:"limit_per_mint"`
	Decimals            uint16 `json:"decimals"`
	DeployInscriptionId string `json:"deploy_inscription_id"`
	BlockHeight         uint64 `json:"block_height"`
	DeployerAddress     string `json:"deployer_address"`
}

type transferEventResult struct {
	EventType     int    `json:"event_type"`
	Tick          string `json:"tick"`
	Amount        string `json:"amount"`
	SourceWallet  string `json:"source_wallet"`
	InscriptionId string `json:"inscription_id"`
}

// transfer-spend events; other event types in the feed are ignored
const eventTypeTransferSpend = 3

func (o *HTTPOracle) LookupTicker(ctx context.Context, tick string) (*TokenRecord, error) {
	resp, err := o.client.Get(ctx, "/v1/brc20/ticker/"+tick, httpclient.RequestOptions{})
	if err != nil {
		return nil, errors.Wrapf(errs.Retryable, "legacy oracle unreachable: %v", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.WithStack(errs.NotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Wrapf(errs.Retryable, "legacy oracle returned status %d", resp.StatusCode())
	}
	var envelope oracleEnvelope[*tickerInfoResult]
	if err := resp.UnmarshalBody(&envelope); err != nil {
		return nil, errors.Wrap(err, "can't unmarshal ticker info response")
	}
	if envelope.Error != nil {
		return nil, errors.Wrapf(errs.Retryable, "legacy oracle error: %s", *envelope.Error)
	}
	if envelope.Result == nil {
		return nil, errors.WithStack(errs.NotFound)
	}
	return envelope.Result.tokenRecord()
}

func (o *HTTPOracle) TransferEventsForTx(ctx context.Context, txHash chainhash.Hash) ([]*TransferEvent, error) {
	resp, err := o.client.Get(ctx, "/v1/brc20/event/by-spending-tx/"+txHash.String(), httpclient.RequestOptions{})
	if err != nil {
		return nil, errors.Wrapf(errs.Retryable, "legacy oracle unreachable: %v", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, errors.Wrapf(errs.Retryable, "legacy oracle returned status %d", resp.StatusCode())
	}
	var envelope oracleEnvelope[[]transferEventResult]
	if err := resp.UnmarshalBody(&envelope); err != nil {
		return nil, errors.Wrap(err, "can't unmarshal transfer events response")
	}
	if envelope.Error != nil {
		return nil, errors.Wrapf(errs.Retryable, "legacy oracle error: %s", *envelope.Error)
	}
	events := make([]*TransferEvent, 0, len(envelope.Result))
	for _, result := range envelope.Result {
		if result.EventType != eventTypeTransferSpend {
			continue
		}
		amount, err := uint128.FromString(result.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid amount in transfer event: %s", result.Amount)
		}
		events = append(events, &TransferEvent{
			Tick:          result.Tick,
			Amount:        amount,
			SenderAddress: result.SourceWallet,
			InscriptionId: result.InscriptionId,
		})
	}
	return events, nil
}

func (r *tickerInfoResult) tokenRecord() (*TokenRecord, error) {
	maxSupply, err := uint128.FromString(r.MaxSupply)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid max supply in ticker info: %s", r.MaxSupply)
	}
	limitPerMint := uint128.Zero
	if r.LimitPerMint != "" {
		limitPerMint, err = uint128.FromString(r.LimitPerMint)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid mint limit in ticker info: %s", r.LimitPerMint)
		}
	}
	return &TokenRecord{
		Tick:                r.Tick,
		OriginalTick:        r.OriginalTick,
		MaxSupply:           maxSupply,
		LimitPerMint:        limitPerMint,
		Decimals:            r.Decimals,
		DeployInscriptionId: r.DeployInscriptionId,
		DeployBlockHeight:   r.BlockHeight,
		DeployerAddress:     r.DeployerAddress,
	}, nil
}

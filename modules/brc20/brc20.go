package brc20

import (
	"context"
	"strings"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/core/datasources"
	"github.com/universal-brc20/indexer/core/indexer"
	"github.com/universal-brc20/indexer/core/types"
	"github.com/universal-brc20/indexer/internal/config"
	"github.com/universal-brc20/indexer/internal/postgres"
	"github.com/universal-brc20/indexer/modules/brc20/api/httphandler"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/legacy"
	"github.com/universal-brc20/indexer/modules/brc20/internal/opi"
	brc20postgres "github.com/universal-brc20/indexer/modules/brc20/internal/repository/postgres"
	"github.com/universal-brc20/indexer/modules/brc20/internal/usecase"
	"github.com/universal-brc20/indexer/pkg/btcclient"
	"github.com/universal-brc20/indexer/pkg/logger"
)

func New(injector do.Injector) (indexer.IndexerWorker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	moduleConf := conf.Modules.BRC20

	cleanupFuncs := make([]func(context.Context) error, 0)
	var brc20Dg datagateway.BRC20DataGateway
	var indexerInfoDg datagateway.IndexerInfoDataGateway
	switch strings.ToLower(moduleConf.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, moduleConf.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for indexer")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		brc20Repo := brc20postgres.NewRepository(pg)
		brc20Dg = brc20Repo
		indexerInfoDg = brc20Repo
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for indexer is not supported", moduleConf.Database)
	}

	var bitcoinDatasource datasources.Datasource[*types.Block]
	var bitcoinClient btcclient.Contract
	switch strings.ToLower(moduleConf.Datasource) {
	case "bitcoin-node":
		btcClient := do.MustInvoke[*rpcclient.Client](injector)
		datasourceOptions := make([]datasources.BitcoinNodeOption, 0)
		if moduleConf.PrefetchDepth > 0 {
			datasourceOptions = append(datasourceOptions, datasources.WithFetchConcurrency(moduleConf.PrefetchDepth))
		}
		bitcoinNodeDatasource := datasources.NewBitcoinNode(btcClient, datasourceOptions...)
		bitcoinDatasource = bitcoinNodeDatasource
		bitcoinClient = bitcoinNodeDatasource
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q datasource is not supported", moduleConf.Datasource)
	}

	var bridge *legacy.Bridge
	if moduleConf.LegacyOracle.URL != "" {
		oracle, err := legacy.NewHTTPOracle(moduleConf.LegacyOracle.URL)
		if err != nil {
			return nil, errors.Wrap(err, "can't create legacy oracle client")
		}
		bridge = legacy.NewBridge(oracle, moduleConf.LegacyOracle.RequireLegacy)
		logger.InfoContext(ctx, "Legacy oracle enabled")
	} else {
		bridge = legacy.NewBridge(nil, false)
	}

	registry, err := newRegistry(bridge, conf.Network, moduleConf.EnabledOps)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	processor, err := NewProcessor(brc20Dg, indexerInfoDg, bitcoinClient, conf.Network, registry, moduleConf.Retry, moduleConf.StartHeight, moduleConf.PayloadMaxBytes, cleanupFuncs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := processor.VerifyStates(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	// Mount API
	apiHandlers := lo.Uniq(moduleConf.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler { // TODO: support more handlers (e.g. gRPC)
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			uc := usecase.New(brc20Dg)
			httpHandler := httphandler.New(conf.Network, uc)
			if err := httpHandler.Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	indexerOptions := make([]indexer.Option[*types.Block], 0)
	if moduleConf.ReorgDepthLimit > 0 {
		indexerOptions = append(indexerOptions, indexer.WithReorgDepthLimit[*types.Block](int64(moduleConf.ReorgDepthLimit)))
	}
	worker := indexer.New(processor, bitcoinDatasource, indexerOptions...)
	return worker, nil
}

// newRegistry registers the built-in operation processors, filtered by the
// enabled_ops config when non-empty.
func newRegistry(bridge *legacy.Bridge, network common.Network, enabledOps []string) (*opi.Registry, error) {
	processors := []opi.Processor{
		opi.NewDeployProcessor(bridge),
		opi.NewMintProcessor(network),
		opi.NewTransferProcessor(network),
		opi.NewNoReturnProcessor(bridge, network),
	}

	enabled := make(map[string]struct{})
	for _, op := range enabledOps {
		enabled[strings.ToLower(op)] = struct{}{}
	}

	registry := opi.NewRegistry()
	for _, processor := range processors {
		if len(enabled) > 0 {
			if _, ok := enabled[strings.ToLower(processor.OpTag())]; !ok {
				continue
			}
		}
		if err := registry.Register(processor); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return registry, nil
}

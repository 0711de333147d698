package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "hyperflow/config"
	"hyperflow/exchange"
	"hyperflow/logger"
	"hyperflow/meta"
	"hyperflow/models"
	"hyperflow/signer"
	"hyperflow/transport"
	"hyperflow/ws"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yml", "path to configuration file")
	demoOrders := flag.Bool("demo-orders", false, "submit a small resting order batch on startup and cancel it")
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Fatal("failed to configure logger")
	}

	log.WithComponent("main").WithFields(logger.Fields{
		"name":    cfg.Hyperflow.Name,
		"version": cfg.Hyperflow.Version,
		"network": cfg.Venue.Network,
	}).Info("starting hyperflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Logging.DashboardName)
		interval := time.Duration(cfg.Metrics.ReportIntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = time.Minute
		}
		logger.StartReport(ctx, log, interval)
	}

	cred, err := signer.NewCredential(cfg.Account.PrivateKey())
	if err != nil {
		log.WithError(err).Fatal("invalid signing credential")
	}

	client := transport.NewClient(cfg)

	resolver := meta.NewResolver(client)
	if err := resolver.Refresh(ctx); err != nil {
		log.WithError(err).Fatal("failed to load asset metadata")
	}

	if rates, err := resolver.FundingRates(ctx); err != nil {
		log.WithComponent("main").WithError(err).Warn("failed to fetch funding rates")
	} else {
		for _, rate := range rates {
			if rate.Coin != "BTC" && rate.Coin != "ETH" {
				continue
			}
			log.WithComponent("main").WithFields(logger.Fields{
				"coin":          rate.Coin,
				"rate":          rate.Rate,
				"rate_estimate": rate.RateEstimate,
				"next_apply_ts": rate.NextApplyTs,
			}).Info("funding rate")
		}
	}

	ex := exchange.New(cred, client, client, resolver)

	stream := ws.NewStream(cfg)
	if err := stream.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start stream")
	}

	orderEvents := make(chan models.WsMessage, 256)
	accountEvents := make(chan models.WsMessage, 256)
	if _, err := stream.Subscribe(models.OrderUpdatesSubscription(cfg.Account.Address), orderEvents); err != nil {
		log.WithError(err).Fatal("failed to subscribe to order updates")
	}
	if _, err := stream.Subscribe(models.WebData2Subscription(cfg.Account.Address), accountEvents); err != nil {
		log.WithError(err).Fatal("failed to subscribe to account state")
	}
	go consumeEvents(ctx, orderEvents, accountEvents)

	if *demoOrders {
		runDemoOrders(ctx, ex, cfg.Account.Address)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithComponent("main").WithField("signal", sig.String()).Info("shutting down")

	cancel()
	stream.Stop()
	log.WithComponent("main").Info("hyperflow stopped")
}

func consumeEvents(ctx context.Context, orderEvents, accountEvents <-chan models.WsMessage) {
	log := logger.GetLogger().WithComponent("events")
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-orderEvents:
			var orders []models.WsOrder
			if err := json.Unmarshal(msg.Data, &orders); err != nil {
				log.WithError(err).Warn("undecodable order update")
				continue
			}
			for _, order := range orders {
				log.WithFields(logger.Fields{
					"coin":   order.Order.Coin,
					"oid":    order.Order.Oid,
					"status": order.Status,
				}).Info("order update")
			}
		case msg := <-accountEvents:
			log.WithFields(logger.Fields{"bytes": len(msg.Data)}).Debug("account state update")
		}
	}
}

// runDemoOrders places a small batch of deep resting buys, queries the first
// one, and cancels the whole batch. Meant for testnet smoke runs.
func runDemoOrders(ctx context.Context, ex *exchange.Exchange, address string) {
	log := logger.GetLogger().WithComponent("demo")

	reqs := make([]models.OrderRequest, 3)
	for i := range reqs {
		cloid := uuid.New()
		reqs[i] = models.OrderRequest{
			Coin:      "ETH",
			IsBuy:     true,
			LimitPx:   100 + float64(i)*10,
			Sz:        0.1,
			Cloid:     &cloid,
			OrderType: models.OrderType{Limit: &models.LimitOrderType{Tif: models.TifGtc}},
		}
	}

	outcomes, err := ex.BulkOrders(ctx, reqs)
	if err != nil {
		log.WithError(err).Error("demo order batch failed")
		return
	}

	var cancels []models.CancelRequest
	for i, outcome := range outcomes {
		log.WithFields(logger.Fields{
			"index":  i,
			"status": outcome.Status,
			"oid":    outcome.Oid,
			"cloid":  outcome.Cloid,
			"error":  outcome.Err,
		}).Info("demo order outcome")
		if outcome.Status == models.OutcomeResting {
			cancels = append(cancels, models.CancelRequest{Coin: "ETH", Oid: outcome.Oid})
		}
	}
	if len(cancels) == 0 {
		return
	}

	if state, err := ex.QueryOrder(ctx, address, cancels[0].Oid); err == nil && state.Order != nil {
		log.WithFields(logger.Fields{
			"oid":    cancels[0].Oid,
			"status": state.Order.Status,
		}).Info("demo order state")
	}

	cancelOutcomes, err := ex.BulkCancels(ctx, cancels)
	if err != nil {
		log.WithError(err).Error("demo cancel batch failed")
		return
	}
	for i, outcome := range cancelOutcomes {
		log.WithFields(logger.Fields{
			"oid":    cancels[i].Oid,
			"status": outcome.Status,
			"error":  outcome.Err,
		}).Info("demo cancel outcome")
	}
}

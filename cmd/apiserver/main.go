package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/baitlabs/phishflow/backend/internal/api"
	"github.com/baitlabs/phishflow/backend/internal/attackservice"
	"github.com/baitlabs/phishflow/backend/internal/campaigns"
	"github.com/baitlabs/phishflow/backend/internal/campaigns/lifecycle"
	"github.com/baitlabs/phishflow/backend/internal/config"
	"github.com/baitlabs/phishflow/backend/internal/delegation"
	"github.com/baitlabs/phishflow/backend/internal/emailprovider"
	"github.com/baitlabs/phishflow/backend/internal/logx"
	"github.com/baitlabs/phishflow/backend/internal/memorystore"
	"github.com/baitlabs/phishflow/backend/internal/profileservice"
	"github.com/baitlabs/phishflow/backend/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logx.L().Fatalw("Main: failed to load configuration", "path", *configPath, "error", err)
	}

	logx.Init(cfg.Logging.Level)
	defer logx.Sync()

	if cfg.Server.APIKey == config.DefaultAPIKeyPlaceholder {
		logx.L().Warn("Main: API key is the default placeholder, set server.apiKey or PHISHFLOW_API_KEY")
	}

	var store campaigns.Store
	if cfg.Database.DSN != "" {
		pgStore, err := postgres.Open(cfg.Database.DSN)
		if err != nil {
			logx.L().Fatalw("Main: failed to open postgres store", "error", err)
		}
		defer pgStore.Close()
		store = pgStore
		logx.L().Info("Main: using postgres store")
	} else {
		store = memorystore.New()
		logx.L().Info("Main: using in-memory store, campaign state will not survive restarts")
	}

	attackClient := attackservice.NewClient(cfg.AttackService.BaseURL, cfg.AttackService.APIKey, cfg.AttackService.Timeout())
	profileClient := profileservice.NewClient(cfg.ProfileService.BaseURL, cfg.ProfileService.APIKey, cfg.ProfileService.Timeout())

	providerResolver, err := emailprovider.New(emailprovider.Options{
		Resolvers:     cfg.DNS.Resolvers,
		QueryTimeout:  cfg.DNS.QueryTimeout(),
		RatePerSecond: cfg.DNS.RateLimitQPS,
	})
	if err != nil {
		logx.L().Fatalw("Main: failed to build email provider resolver", "error", err)
	}

	lifecycleService := lifecycle.New(store, attackClient)
	delegationService := delegation.New(store, attackClient)

	handler := api.NewAPIHandler(cfg, store, lifecycleService, delegationService, providerResolver, profileClient)
	router := api.NewRouter(handler)

	serverAddr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Handler:      router,
		Addr:         serverAddr,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logx.L().Infow("Main: starting API server", "addr", serverAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.L().Fatalw("Main: HTTP server failed", "error", err)
	}
}

package main

import (
	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/events"
	"github.com/driftline/driftline/routes"
	"github.com/driftline/driftline/store"
	"github.com/driftline/driftline/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	var sc store.Client
	switch cfg.StoreDriver {
	case "memory":
		utils.Sugar.Warn("using the in-memory store driver; documents do not survive restarts")
		sc = store.NewMemStore()
	case "mysql":
		db := config.InitDatabase()
		var err error
		sc, err = store.NewSQLStore(db)
		if err != nil {
			utils.Sugar.Fatalf("mysql store init failed: %v", err)
		}
	default:
		sc = store.NewSanityClient(store.SanityConfig{
			ProjectID: cfg.SanityProjectID,
			Dataset:   cfg.SanityDataset,
			Token:     cfg.SanityToken,
			BaseURL:   cfg.SanityAPIHost,
		})
	}

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, utils.Sugar)
	defer producer.Close()

	r := routes.SetupRouter(sc, producer)

	utils.Sugar.Infof("starting server on port %s (driver=%s, graceful)", cfg.AppPort, cfg.StoreDriver)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

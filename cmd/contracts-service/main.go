package main

import (
	"fmt"
	"os"

	"github.com/obrasplan/contracts-service/internal/auth"
	"github.com/obrasplan/contracts-service/internal/config"
	"github.com/obrasplan/contracts-service/internal/db"
	"github.com/obrasplan/contracts-service/internal/excel"
	httphandler "github.com/obrasplan/contracts-service/internal/http"
	"github.com/obrasplan/contracts-service/internal/http/middleware"
	"github.com/obrasplan/contracts-service/internal/logger"
	"github.com/obrasplan/contracts-service/internal/pdf"
	"github.com/obrasplan/contracts-service/internal/repository"
	"github.com/obrasplan/contracts-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	purchaseRepo := repository.NewPurchaseRepository(database)
	importer := excel.NewBudgetImporter(cfg.Import.SheetName, contractRepo)

	contractService := service.NewContractService(contractRepo, purchaseRepo, importer, cfg, log)
	purchaseService := service.NewPurchaseService(purchaseRepo, contractRepo, log)
	dashboardService := service.NewDashboardService(contractRepo, purchaseRepo, excel.NewGenerator(), pdf.NewGenerator(), log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, purchaseService, dashboardService, cfg.Import.MaxUploadBytes, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// File: cmd/codegen/main.go
//
// Mints redemption codes straight into the database, for support staff
// and for wiring into fulfillment scripts:
//
//	codegen -config config.yaml -months 3 -count 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"business-suite-billing/internal/config"
	"business-suite-billing/internal/domain/model"
	pg "business-suite-billing/internal/infra/db/postgres"
	"business-suite-billing/internal/infra/logging"
	"business-suite-billing/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	days := flag.Int("days", 0, "days of entitlement the code grants")
	months := flag.Int("months", 0, "months of entitlement the code grants")
	years := flag.Int("years", 0, "years of entitlement the code grants")
	count := flag.Int("count", 1, "how many codes to mint")
	flag.Parse()

	duration := model.PlanDuration{Days: *days, Months: *months, Years: *years}
	if duration.IsZero() {
		log.Fatal("give the code a duration: -days, -months and/or -years")
	}
	if *count < 1 {
		log.Fatal("-count must be at least 1")
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	codeRepo := pg.NewRedemptionCodeRepo(pool)
	entRepo := pg.NewEntitlementRepo(pool)
	uc := usecase.NewRedemptionUseCase(codeRepo, entRepo, pg.NewTxManager(pool), logger)

	for i := 0; i < *count; i++ {
		code, err := uc.GenerateCode(ctx, duration)
		if err != nil {
			log.Fatalf("minting code %d/%d: %v", i+1, *count, err)
		}
		fmt.Println(code.Code)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	webAdapter "github.com/hodoxnet/kuryemburada-sub001/internal/adapters/web"
	"github.com/hodoxnet/kuryemburada-sub001/internal/app"
	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
	"github.com/hodoxnet/kuryemburada-sub001/internal/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	companies := core.NewCompanyService(pool)
	rules := core.NewRuleService(pool)
	ledger := core.NewOrderLedgerService(pool, rules)
	recons := core.NewReconciliationService(pool, companies)
	payments := core.NewPaymentService(pool)
	reporting := core.NewReportingService(pool)
	export := core.NewExportService(companies, recons, payments)

	svc := app.NewAppService(pool, companies, rules, ledger, recons, payments, reporting, export)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}

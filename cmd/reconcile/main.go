package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hodoxnet/kuryemburada-sub001/internal/core"
	"github.com/hodoxnet/kuryemburada-sub001/internal/db"
)

// reconcile runs the daily reconciliation batch over every active company.
// Meant to be invoked from cron shortly after each company's midnight;
// regenerating an existing day is safe.
func main() {
	_ = godotenv.Load()

	date := flag.String("date", "", "reconciliation date YYYY-MM-DD (default: yesterday UTC)")
	company := flag.String("company", "", "reconcile a single company code instead of all active")
	flag.Parse()

	day := *date
	if day == "" {
		day = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	companies := core.NewCompanyService(pool)
	recons := core.NewReconciliationService(pool, companies)

	if *company != "" {
		recon, err := recons.GenerateDaily(ctx, *company, day)
		if err != nil {
			log.Fatalf("%s %s: %v", *company, day, err)
		}
		fmt.Printf("%s %s: %d orders, net %s, status %s\n",
			*company, day, recon.TotalOrders, recon.NetAmount, recon.Status)
		return
	}

	results, err := recons.GenerateForAllActive(ctx, day)
	if err != nil {
		log.Fatalf("batch %s: %v", day, err)
	}

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
			fmt.Printf("%s %s: FAILED: %s\n", res.CompanyCode, day, res.Error)
			continue
		}
		fmt.Printf("%s %s: %d orders, net %s, status %s\n",
			res.CompanyCode, day, res.Reconciliation.TotalOrders,
			res.Reconciliation.NetAmount, res.Reconciliation.Status)
	}

	fmt.Printf("done: %d companies, %d failed\n", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

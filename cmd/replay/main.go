// Package main audits a ledger database: it rebuilds balances from the
// event journal and verifies them against the live balance store,
// checking the conservation law along the way.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dlebee/erc20/internal/replay"
	"github.com/dlebee/erc20/internal/storage/migrations"
	pgstore "github.com/dlebee/erc20/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Migrate postgres: %v", err)
	}

	meta, err := pgstore.NewMetaStore(pool).Get(ctx)
	if err != nil {
		logger.Fatalf("Read ledger meta (has genesis run?): %v", err)
	}

	report, err := replay.Verify(ctx,
		pgstore.NewEventJournal(pool),
		pgstore.NewBalanceStore(pool),
		meta.Deployer,
		meta.TotalSupply,
	)
	if err != nil {
		logger.Fatalf("Replay failed: %v", err)
	}

	logger.Printf("Total supply:  %d", report.TotalSupply)
	logger.Printf("Stored sum:    %d", report.StoredSum)
	logger.Printf("Replayed sum:  %d", report.ReplayedSum)

	if report.Conserved {
		logger.Println("Audit passed: balances conserved")
		return
	}

	for _, d := range report.Divergences {
		logger.Printf("Divergence: account=%s stored=%d replayed=%d", d.Account, d.Stored, d.Replayed)
	}
	logger.Fatalf("Audit failed: %d divergences", len(report.Divergences))
}

// Package main runs the token-ledger service: JSON API for the ledger
// operations, websocket event stream, and Prometheus metrics.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dlebee/erc20/internal/api"
	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/ledger"
	"github.com/dlebee/erc20/internal/observability"
	"github.com/dlebee/erc20/internal/replay"
	"github.com/dlebee/erc20/internal/storage"
	chstore "github.com/dlebee/erc20/internal/storage/clickhouse"
	"github.com/dlebee/erc20/internal/storage/memory"
	"github.com/dlebee/erc20/internal/storage/migrations"
	pgstore "github.com/dlebee/erc20/internal/storage/postgres"
)

// ledgerStores holds the storage implementations behind the ledger.
type ledgerStores struct {
	balances   storage.BalanceStore
	allowances storage.AllowanceStore
	journal    storage.EventJournal
	meta       storage.MetaStore
	archive    *chstore.EventArchive // nil without ClickHouse
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "API listen address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional event archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	deployerStr := flag.String("deployer", os.Getenv("LEDGER_DEPLOYER"), "Deployer account (base58), required at genesis")
	initialSupply := flag.Uint64("initial-supply", 0, "Initial token supply, credited to the deployer at genesis")
	auditInterval := flag.Duration("audit-interval", 1*time.Hour, "Conservation audit interval (0 disables)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("token_ledger")
	hub := api.NewHub(log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lshortfile))

	// Journal first so sequences are assigned before fan-out.
	sink := ledger.MultiSink{stores.journal}
	if stores.archive != nil {
		sink = append(sink, stores.archive)
	}
	sink = append(sink, metrics.EventCounter(), hub)

	ldg, meta, err := openLedger(ctx, stores, sink, *deployerStr, *initialSupply, logger)
	if err != nil {
		logger.Fatalf("Failed to open ledger: %v", err)
	}

	if *auditInterval > 0 {
		go runAuditor(ctx, stores, meta, metrics, *auditInterval, logger)
	}

	server := api.NewServer(ldg, stores.journal, hub, metrics, log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile))

	apiSrv := &http.Server{Addr: *listenAddr, Handler: server.Routes()}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() {
		logger.Printf("API listening on %s", *listenAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Printf("Metrics listening on %s", *metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, shutting down...", sig)
	case err := <-errCh:
		logger.Printf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("API shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Metrics shutdown: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*ledgerStores, func(), error) {
	if useMemory {
		stores := &ledgerStores{
			balances:   memory.NewBalanceStore(),
			allowances: memory.NewAllowanceStore(),
			journal:    memory.NewEventJournal(),
			meta:       memory.NewMetaStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := &ledgerStores{
		balances:   pgstore.NewBalanceStore(pool),
		allowances: pgstore.NewAllowanceStore(pool),
		journal:    pgstore.NewEventJournal(pool),
		meta:       pgstore.NewMetaStore(pool),
	}

	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		stores.archive = chstore.NewEventArchive(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// openLedger attaches to existing ledger state, or runs genesis when the
// meta record is absent.
func openLedger(ctx context.Context, stores *ledgerStores, sink ledger.EventSink, deployerStr string, initialSupply uint64, logger *log.Logger) (*ledger.Ledger, *domain.LedgerMeta, error) {
	meta, err := stores.meta.Get(ctx)
	switch {
	case err == nil:
		logger.Printf("Attached to ledger: supply=%d deployer=%s", meta.TotalSupply, meta.Deployer)
		return ledger.Open(meta.TotalSupply, stores.balances, stores.allowances, sink), meta, nil

	case errors.Is(err, storage.ErrNotFound):
		if deployerStr == "" {
			return nil, nil, fmt.Errorf("genesis requires --deployer")
		}
		deployer, err := domain.ParseAccountID(deployerStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parse deployer: %w", err)
		}

		ldg, err := ledger.New(ctx, deployer, initialSupply, stores.balances, stores.allowances, sink)
		if err != nil {
			return nil, nil, err
		}
		meta := &domain.LedgerMeta{
			Deployer:    deployer,
			TotalSupply: initialSupply,
			CreatedAt:   time.Now().UnixMilli(),
		}
		if err := stores.meta.Put(ctx, meta); err != nil {
			return nil, nil, fmt.Errorf("record genesis: %w", err)
		}
		logger.Printf("Genesis: supply=%d credited to %s", initialSupply, deployer)
		return ldg, meta, nil

	default:
		return nil, nil, fmt.Errorf("read ledger meta: %w", err)
	}
}

// runAuditor periodically rebuilds balances from the journal and checks
// the conservation law against the live balance store.
func runAuditor(ctx context.Context, stores *ledgerStores, meta *domain.LedgerMeta, metrics *observability.Metrics, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		report, err := replay.Verify(ctx, stores.journal, stores.balances, meta.Deployer, meta.TotalSupply)
		if err != nil {
			logger.Printf("Audit error: %v", err)
			metrics.AuditRunsTotal.WithLabelValues("error").Inc()
			continue
		}

		metrics.AuditDivergences.Set(float64(len(report.Divergences)))
		if report.Conserved {
			metrics.AuditRunsTotal.WithLabelValues("ok").Inc()
			continue
		}

		metrics.AuditRunsTotal.WithLabelValues("divergent").Inc()
		logger.Printf("Audit FAILED: stored=%d replayed=%d supply=%d divergences=%d",
			report.StoredSum, report.ReplayedSum, report.TotalSupply, len(report.Divergences))
	}
}

// envOr returns the env value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads KEY=VALUE pairs from .env if present. Existing
// environment variables win.
func loadEnvFile() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

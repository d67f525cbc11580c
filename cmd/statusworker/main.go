// One-shot reconciliation run: poll the portal's settlement reports and the
// gateway's payment-status call, advance pending ledger entries, and archive
// the scraped rows. Invocation cadence belongs to cron or an equivalent
// external scheduler.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mftransact/internal/calendar"
	"mftransact/internal/config"
	"mftransact/internal/gateway"
	"mftransact/internal/portal"
	"mftransact/internal/reconcile"
	"mftransact/internal/store"
	"mftransact/internal/util"
)

func main() {
	cfgPath := "config/mftransact.yaml"
	if p := os.Getenv("MFTRANSACT_CONFIG"); p != "" {
		cfgPath = p
	}

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer db.Close()

	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		log.Fatalf("bad market timezone %q: %v", cfg.Market.Timezone, err)
	}
	cal, err := calendar.LoadCSV(cfg.Market.CalendarPath, loc)
	if err != nil {
		log.Fatalf("failed to load market calendar: %v", err)
	}

	creds := gateway.Credentials{
		UserID:   cfg.Vendor.UserID,
		MemberID: cfg.Vendor.MemberID,
		Password: cfg.Vendor.Password,
		PassKey:  cfg.Vendor.PassKey,
		EUIN:     cfg.Vendor.EUIN,
	}
	var gw gateway.Gateway
	if cfg.Vendor.OrderURL == "" {
		logger.Warn("no vendor endpoints configured, using simulator")
		gw = gateway.NewSimulator()
	} else {
		transport := gateway.NewSOAPTransport(time.Duration(cfg.Transport.TimeoutSec) * time.Second)
		gw = gateway.NewClient(creds, gateway.Endpoints{
			OrderURL:  cfg.Vendor.OrderURL,
			UploadURL: cfg.Vendor.UploadURL,
		}, transport, logger)
	}

	limiter := util.NewRateLimiter(cfg.Portal.RateLimitPerMin)
	reports := portal.NewCSVSource(cfg.Portal.ReportDir, limiter)
	archive := store.NewReportArchive(cfg.Storage.DataDir)

	engine := reconcile.NewEngine(db, db, gw, reports, cal, archive, logger)
	res, err := engine.Run(context.Background())
	if err != nil {
		log.Fatalf("reconciliation failed: %v", err)
	}
	if len(res.Errors) > 0 {
		for _, fe := range res.Errors {
			logger.Error("entry failed", "transaction", fe.TransactionID, "err", fe.Err)
		}
		os.Exit(1)
	}
}

// Command-line entry point for placing and cancelling fund orders.
//
// Usage:
//
//	transact -client 1234 -plan "02-DP" -kind P -amount 5000
//	transact -client 1234 -plan "02-DP" -kind P -recurring -amount 2000 -instalments 12 -start 15/10/2026
//	transact -cancel 42
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mftransact/internal/config"
	"mftransact/internal/domain"
	"mftransact/internal/gateway"
	"mftransact/internal/mandate"
	"mftransact/internal/order"
	"mftransact/internal/refgen"
	"mftransact/internal/store"
	"mftransact/internal/util"
)

func main() {
	var (
		cfgPath     = flag.String("config", "config/mftransact.yaml", "configuration file")
		clientID    = flag.Int64("client", 0, "client id")
		planCode    = flag.String("plan", "", "vendor scheme plan code")
		kind        = flag.String("kind", "P", "transaction kind: P, A, or R")
		amount      = flag.Float64("amount", 0, "order amount (instalment amount for recurring)")
		allRedeem   = flag.Bool("all-redeem", false, "redeem the full holding")
		recurring   = flag.Bool("recurring", false, "place a recurring plan")
		instalments = flag.Int("instalments", 0, "number of recurring instalments")
		startDate   = flag.String("start", "", "recurring start date, DD/MM/YYYY")
		cancelID    = flag.Int64("cancel", 0, "cancel the transaction with this ledger id")
	)
	flag.Parse()

	_ = godotenv.Load()

	if p := os.Getenv("MFTRANSACT_CONFIG"); p != "" {
		*cfgPath = p
	}
	cfg, err := config.Load(*cfgPath)
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

	creds := gateway.Credentials{
		UserID:   cfg.Vendor.UserID,
		MemberID: cfg.Vendor.MemberID,
		Password: cfg.Vendor.Password,
		PassKey:  cfg.Vendor.PassKey,
		EUIN:     cfg.Vendor.EUIN,
	}
	gw := newGateway(cfg, creds, logger)

	ctx := context.Background()

	if *cancelID != 0 {
		refs := refgen.New(db, cfg.Vendor.Live)
		engine := order.NewEngine(gw, db, db, refs, creds,
			cfg.Transport.MaxAttempts, time.Duration(cfg.Transport.BackoffMS)*time.Millisecond, logger)

		t, err := db.GetTransaction(ctx, *cancelID)
		if err != nil {
			log.Fatalf("failed to load transaction %d: %v", *cancelID, err)
		}
		vendorRef, err := engine.Cancel(ctx, t)
		if err != nil {
			log.Fatalf("cancellation failed: %v", err)
		}
		fmt.Printf("cancelled transaction %d (vendor ref %s)\n", t.ID, vendorRef)
		return
	}

	if *clientID == 0 || *planCode == "" {
		log.Fatal("-client and -plan are required")
	}

	t := &domain.Transaction{
		ClientID: *clientID,
		PlanCode: *planCode,
		Kind:     domain.TransactionKind(*kind),
		Mode:     domain.ModeLumpsum,
		Status:   domain.StatusRequested,
		Amount:   *amount,
		Created:  time.Now(),
	}
	if *recurring {
		t.Mode = domain.ModeRecurring
		t.InstalmentCount = *instalments
		start, err := time.Parse("02/01/2006", *startDate)
		if err != nil {
			log.Fatalf("bad -start date: %v", err)
		}
		t.StartDate = start
	}
	if t.Kind == domain.KindRedemption {
		t.AllRedeem = allRedeem
	}
	if err := db.SaveTransaction(ctx, t); err != nil {
		log.Fatalf("failed to record transaction: %v", err)
	}

	banks, err := order.LoadBankDirectory(cfg.Clients.BankFile)
	if err != nil {
		log.Fatalf("failed to load bank directory: %v", err)
	}
	refs := refgen.New(db, cfg.Vendor.Live)
	mandates := mandate.NewManager(db, db, gw, cfg.Vendor.MemberID, logger)
	builder := order.NewBuilder(refs, db, mandates, banks, creds)
	engine := order.NewEngine(gw, db, db, refs, creds,
		cfg.Transport.MaxAttempts, time.Duration(cfg.Transport.BackoffMS)*time.Millisecond, logger)

	req, err := builder.Build(ctx, t)
	if err != nil {
		log.Fatalf("failed to build order: %v", err)
	}
	vendorRef, err := engine.Submit(ctx, req)
	if err != nil {
		log.Fatalf("order submission failed: %v", err)
	}
	fmt.Printf("placed transaction %d ref %s (vendor ref %s)\n", t.ID, req.Ref(), vendorRef)
}

// newGateway returns the SOAP-backed gateway when endpoints are configured,
// or the in-memory simulator for local runs.
func newGateway(cfg *config.Config, creds gateway.Credentials, logger *slog.Logger) gateway.Gateway {
	if cfg.Vendor.OrderURL == "" {
		logger.Warn("no vendor endpoints configured, using simulator")
		return gateway.NewSimulator()
	}
	transport := gateway.NewSOAPTransport(time.Duration(cfg.Transport.TimeoutSec) * time.Second)
	endpoints := gateway.Endpoints{
		OrderURL:  cfg.Vendor.OrderURL,
		UploadURL: cfg.Vendor.UploadURL,
	}
	return gateway.NewClient(creds, endpoints, transport, logger)
}

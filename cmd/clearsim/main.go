package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/efreitasn/clearsim/internal/agent"
	"github.com/efreitasn/clearsim/internal/clearing"
	"github.com/efreitasn/clearsim/internal/config"
	"github.com/efreitasn/clearsim/internal/distribution"
	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/handler"
	"github.com/efreitasn/clearsim/internal/market"
	"github.com/efreitasn/clearsim/internal/matching"
)

func main() {
	// Optional .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// The single shared random stream: identical seeds reproduce
	// identical trade sequences.
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Participants. Households work, consume and hold shares; firms
	// produce, employ, borrow and issue shares; banks lend.
	households := make([]*agent.Agent, 4)
	for i := range households {
		households[i] = agent.New(fmt.Sprintf("household-%d", i), 1000)
		households[i].SetLabour(10)
	}
	firms := []*agent.Agent{agent.New("firm-0", 5000), agent.New("firm-1", 5000)}
	for _, f := range firms {
		f.AddGoods("bread", 500)
		f.SetGoodsSellingPrice("bread", 2)
	}
	banks := []*agent.Agent{agent.New("bank-0", 20000), agent.New("bank-1", 20000)}

	// Stock registry: each firm issues one ticker, initially held
	// evenly by the households.
	registry := domain.NewStockRegistry()
	for _, f := range firms {
		ticker := f.ID()
		if err := registry.AddStock(ticker, f.ID(), 10, 100); err != nil {
			logger.Fatal("listing failed", zap.Error(err))
		}
		for _, h := range households {
			h.OpenStockAccount(ticker, 100/float64(len(households)))
		}
	}

	// Markets.
	goods := market.NewGoodsMarket("goods", matching.NewCallAuction(), cfg.HistoryWindow, cfg.MatchEpsilon, logger)
	labour := market.NewLabourMarket("labour", matching.NewCallAuction(), cfg.HistoryWindow, cfg.MatchEpsilon, logger)
	loans := market.NewLoanMarket("loans", matching.NewCallAuction(),
		distribution.NewLoanIncremental(domain.NewLoan, cfg.LoanAggregationCeiling, logger),
		cfg.HistoryWindow, cfg.MatchEpsilon, logger)
	stocks := market.NewStockMarket("stocks", registry,
		distribution.NewCentralPayment(registry, logger), logger)

	ch := clearing.New(logger)
	ch.AddMarket(goods)
	ch.AddMarket(labour)
	ch.AddMarket(loans)
	ch.AddMarket(stocks)

	for _, h := range households {
		goods.RegisterBuyer(h)
		labour.RegisterWorker(h)
		stocks.RegisterStockHolder(h)
		ch.AddStockholder(h)
	}
	for _, f := range firms {
		goods.RegisterSeller(f)
		labour.RegisterEmployer(f)
		loans.RegisterBorrower(f)
		stocks.RegisterIssuer(f.ID(), f)
		ch.AddFirm(f)
		ch.AddBorrower(f)
	}
	for _, b := range banks {
		loans.RegisterLender(b)
		ch.AddBank(b)
		ch.AddLender(b)
	}

	// Phase schedule: submission, processing, cancellation — once
	// per cycle, in that order.
	schedule := clearing.NewSchedule(logger)
	mustRegister(logger, schedule, clearing.PhaseSubmitOrders, func() error {
		submitDemoOrders(rng, logger, households, firms, goods, labour, loans, stocks, registry)
		return nil
	})
	mustRegister(logger, schedule, clearing.PhaseProcessMarkets, ch.ProcessAllInstruments)
	mustRegister(logger, schedule, clearing.PhaseCancelOrders, func() error {
		ch.CancelAllOrders()
		return nil
	})

	logger.Info("simulation starting",
		zap.Int64("seed", cfg.Seed),
		zap.Int("cycles", cfg.Cycles))

	for cycle := 0; cycle < cfg.Cycles; cycle++ {
		if err := schedule.RunCycle(); err != nil {
			logger.Error("cycle finished with failures",
				zap.Int("cycle", cycle),
				zap.Error(err))
		}
	}

	logger.Info("simulation finished",
		zap.Int("goods_trades", len(goods.Trades())),
		zap.Int("labour_contracts", len(labour.Contracts())))

	if !cfg.Inspect {
		return
	}

	// Read-only inspection server over the finished simulation state.
	router := handler.NewRouter(ch, registry, logger)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("inspection server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("inspection server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	_ = srv.Close()
}

// submitDemoOrders generates one cycle of simple order flow from the
// shared random stream. The real behavioral layer lives outside this
// engine; these orders just exercise every market.
func submitDemoOrders(
	rng *rand.Rand,
	logger *zap.Logger,
	households, firms []*agent.Agent,
	goods *market.GoodsMarket,
	labour *market.LabourMarket,
	loans *market.LoanMarket,
	stocks *market.StockMarket,
	registry *domain.StockRegistry,
) {
	for _, f := range firms {
		price := f.GoodsSellingPrice("bread") * (0.9 + 0.2*rng.Float64())
		submit(logger, goods.AddOrder(f.ID(), "bread", 20+10*rng.Float64(), price))
		submit(logger, labour.AddOrder(f.ID(), 1, -(2 + 2*rng.Float64()), 8+2*rng.Float64()))
		submit(logger, loans.AddOrder(f.ID(), 1, -(100 + 100*rng.Float64()), 0.02+0.02*rng.Float64()))
	}
	for _, h := range households {
		submit(logger, goods.AddOrder(h.ID(), "bread", -(5 + 5*rng.Float64()), 2.5))
		submit(logger, labour.AddOrder(h.ID(), 1, 1+rng.Float64(), 7+2*rng.Float64()))
		ticker := firms[rng.Intn(len(firms))].ID()
		if rng.Float64() < 0.5 {
			submit(logger, stocks.SubmitBuyOrder(h.ID(), ticker, 10+10*rng.Float64()))
		} else {
			submit(logger, stocks.SubmitSellOrder(h.ID(), ticker, 1+rng.Float64()))
		}
	}
	for _, b := range []string{"bank-0", "bank-1"} {
		submit(logger, loans.AddOrder(b, 1, 150+50*rng.Float64(), 0.01+0.02*rng.Float64()))
	}
}

// submit logs rejected demo orders; rejections are expected order
// flow, not failures.
func submit(logger *zap.Logger, err error) {
	if err != nil {
		logger.Debug("order rejected", zap.Error(err))
	}
}

func mustRegister(logger *zap.Logger, s *clearing.Schedule, phase clearing.Phase, fn func() error) {
	if err := s.Register(phase, fn); err != nil {
		logger.Fatal("phase registration failed", zap.Error(err))
	}
}

// newLogger builds a production JSON logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/cart"
	"github.com/ariefcatur/go-shop-consistency/internal/catalog"
	"github.com/ariefcatur/go-shop-consistency/internal/config"
	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/ariefcatur/go-shop-consistency/internal/events"
	"github.com/ariefcatur/go-shop-consistency/internal/httpx"
	"github.com/ariefcatur/go-shop-consistency/internal/images"
	kafkax "github.com/ariefcatur/go-shop-consistency/internal/kafka"
	"github.com/ariefcatur/go-shop-consistency/internal/logging"
	"github.com/ariefcatur/go-shop-consistency/internal/memstore"
	"github.com/ariefcatur/go-shop-consistency/internal/metrics"
	"github.com/ariefcatur/go-shop-consistency/internal/orders"
	"github.com/ariefcatur/go-shop-consistency/internal/postgres"
	"github.com/ariefcatur/go-shop-consistency/internal/redisx"
	"github.com/ariefcatur/go-shop-consistency/internal/stock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if _, err := logging.Init(cfg.Log); err != nil {
		slog.Error("logging init", "err", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("api exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store domain.Store
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using in-memory store, data is lost on exit")
		store = memstore.New()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
		store = &postgres.Store{DB: db, TxTimeout: cfg.TxTimeout}
	}

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, caches degrade to misses", "addr", cfg.RedisAddr, "err", err)
		}
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)
	emitter := &events.Emitter{Producer: prod, Service: cfg.ServiceName}

	// Services & handlers
	m := metrics.New("shop")
	catalogSvc := &catalog.Service{
		Store:   store,
		Images:  images.NewDiskStore(cfg.UploadPath, cfg.FrontendURL),
		Events:  emitter,
		Metrics: m,
	}
	ledger := &stock.Ledger{Store: store, Metrics: m}
	cartSvc := &cart.Service{Store: store, Metrics: m}
	orderSvc := &orders.Service{Store: store, Events: emitter, Metrics: m}

	router := httpx.NewRouter(m)
	(&httpx.CatalogHandler{Catalog: catalogSvc, Stock: ledger}).Register(router)
	(&httpx.CartHandler{Cart: cartSvc}).Register(router)
	(&httpx.OrdersHandler{Orders: orderSvc, Redis: rdb}).Register(router)
	(&httpx.ReportsHandler{Orders: orderSvc, Catalog: catalogSvc, Redis: rdb, TTL: cfg.BestSellerTTL}).Register(router)

	servers := []*http.Server{{Addr: cfg.HTTPAddr, Handler: router}}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler()})
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			slog.Info("http listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutCtx)
		}
		return nil
	})
	err := g.Wait()

	prod.Close()      // close inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
	return err
}

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/config"
	"github.com/stroymarket/backend/internal/events"
	"github.com/stroymarket/backend/internal/feed"
	"github.com/stroymarket/backend/internal/geo"
	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/notify"
	"github.com/stroymarket/backend/internal/search"
	httpserver "github.com/stroymarket/backend/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LOG_LEVEL).With("service", "storefront")
	slog.SetDefault(logger)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	cache, err := cart.NewSQLiteCache(cfg.CART_CACHE)
	if err != nil {
		log.Fatalf("cart cache: %v", err)
	}
	carts := cart.NewManager(cache, &cart.GormRemote{DB: db}, logger)
	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for range t.C {
			carts.EvictIdle(time.Hour)
		}
	}()

	var producer *events.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{cfg.KAFKA_ADDRESS})
		defer producer.Close()
	}

	var esClient *elasticsearch.Client
	if cfg.ES_URL != "" {
		esClient, err = search.NewClient(cfg.ES_URL, cfg.ES_USER, cfg.ES_PASSWORD)
		if err != nil {
			// Search is optional; the storefront works without it.
			logger.Warn("elasticsearch_unavailable", "error", err)
			esClient = nil
		}
	}

	feedClient := feed.NewClient(cfg.SHEETS_API_KEY, cfg.SPREADSHEET_ID, cfg.SHEET_NAME)

	var email, telegram notify.Sender
	if cfg.RESEND_API_KEY != "" && cfg.TO_EMAIL != "" {
		email = notify.NewEmailSender(cfg.RESEND_API_KEY, cfg.FROM_EMAIL, cfg.TO_EMAIL)
	}
	if cfg.TELEGRAM_BOT_TOKEN != "" && cfg.TELEGRAM_CHAT_ID != "" {
		telegram = notify.NewTelegramSender(cfg.TELEGRAM_BOT_TOKEN, cfg.TELEGRAM_CHAT_ID)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		DB:            db,
		Carts:         carts,
		CartCache:     cache,
		Feed:          feedClient,
		Suggest:       geo.NewSuggestClient(cfg.DADATA_KEY),
		Delivery:      &geo.DeliveryCalculator{WarehouseLat: cfg.WAREHOUSE_LAT, WarehouseLon: cfg.WAREHOUSE_LON, RatePerKm: cfg.DELIVERY_RATE},
		Email:         email,
		Telegram:      telegram,
		Producer:      producer,
		ES:            esClient,
		ESIndex:       cfg.ES_INDEX,
		JWTSecret:     []byte(cfg.JWT_SECRET),
		RefreshSecret: []byte(cfg.REFRESH_SECRET),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP_ADDR,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("storefront listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("storefront stopped")
}

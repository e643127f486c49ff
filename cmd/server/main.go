package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/velmart/storefront/internal/config"
	"github.com/velmart/storefront/internal/es"
	"github.com/velmart/storefront/internal/eventbus"
	"github.com/velmart/storefront/internal/handlers"
	"github.com/velmart/storefront/internal/logging"
	"github.com/velmart/storefront/internal/razorpay"
	"github.com/velmart/storefront/internal/service"
	httpserver "github.com/velmart/storefront/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	var producer *eventbus.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer = eventbus.NewProducer([]string{cfg.KAFKA_ADDRESS})
	}

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Printf("elasticsearch unavailable, product search disabled: %v", err)
		esClient = nil
	}

	jwtSecret := []byte(cfg.JWT_SECRET)
	gateway := razorpay.New(cfg.RAZORPAY_KEY_ID, cfg.RAZORPAY_KEY_SECRET)
	orderSvc := &service.OrderService{DB: db}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		DB:        db,
		JWTSecret: jwtSecret,
		UploadDir: cfg.UPLOAD_DIR,
		AuthHandler: &handlers.AuthHandler{
			DB: db, JWTSecret: jwtSecret, Producer: producer,
		},
		ProductHandler: &handlers.ProductHandler{
			DB: db, ES: esClient, ESIndex: "products", Producer: producer, Production: cfg.IsProduction(),
		},
		CategoryHandler: &handlers.CategoryHandler{DB: db, Production: cfg.IsProduction()},
		CartHandler:     &handlers.CartHandler{DB: db, Producer: producer, Production: cfg.IsProduction()},
		UserHandler:     &handlers.UserHandler{DB: db, Production: cfg.IsProduction()},
		AdminHandler:    &handlers.AdminHandler{DB: db, Production: cfg.IsProduction()},
		OrderHandler: &handlers.OrderHandler{
			Svc: orderSvc, Producer: producer, Production: cfg.IsProduction(),
		},
		PaymentHandler: &handlers.PaymentHandler{
			Svc:        orderSvc,
			Gateway:    gateway,
			KeySecret:  cfg.RAZORPAY_KEY_SECRET,
			Producer:   producer,
			Production: cfg.IsProduction(),
		},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + cfg.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}

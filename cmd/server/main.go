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
	"github.com/labstack/echo/v4/middleware"

	"github.com/davidkovac996/Digistore24Task/internal/config"
	"github.com/davidkovac996/Digistore24Task/internal/es"
	"github.com/davidkovac996/Digistore24Task/internal/handlers"
	"github.com/davidkovac996/Digistore24Task/internal/logging"
	mwauth "github.com/davidkovac996/Digistore24Task/internal/middleware/auth"
	"github.com/davidkovac996/Digistore24Task/internal/mykafka"
	"github.com/davidkovac996/Digistore24Task/internal/seed"
	orderengine "github.com/davidkovac996/Digistore24Task/internal/service/order"
	"github.com/davidkovac996/Digistore24Task/internal/service/token"
	httpserver "github.com/davidkovac996/Digistore24Task/internal/transport/http"
)

const productIndex = "products"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(logging.New(configuration.LOG_LEVEL))

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	if err := seed.Run(db, configuration); err != nil {
		log.Fatalf("seed error: %v", err)
	}

	var producer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		// Search degrades, catalog and checkout keep working.
		log.Printf("elasticsearch unavailable: %v", err)
	}

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB:             db,
		Guard:          &mwauth.Guard{Tokens: tokens},
		AuthHandler:    &handlers.AuthHandler{DB: db, Tokens: tokens, Producer: producer},
		ProductHandler: &handlers.ProductHandler{DB: db, Producer: producer, ES: esClient, Index: productIndex},
		OrderHandler:   &handlers.OrderHandler{DB: db, Engine: &orderengine.Engine{DB: db}, Producer: producer},
		ReviewHandler:  &handlers.ReviewHandler{DB: db},
		ContactHandler: &handlers.ContactHandler{DB: db},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: productIndex},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
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

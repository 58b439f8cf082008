package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/pttech/commerce/internal"
	"github.com/pttech/commerce/internal/domain"
	"github.com/pttech/commerce/internal/events"
	"github.com/pttech/commerce/internal/handler"
	"github.com/pttech/commerce/internal/middleware"
	"github.com/pttech/commerce/internal/notify"
	"github.com/pttech/commerce/internal/payment"
	"github.com/pttech/commerce/internal/router"
	"github.com/pttech/commerce/internal/service"
	"github.com/pttech/commerce/internal/store/mongo"
	"github.com/pttech/commerce/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	logger.Info().Str("uri", cfg.Mongo.URI).Msg("connecting to mongodb")
	client, db, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("mongodb connection failed: %w", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	// Stores
	orderStore := mongo.NewOrderStore(db)
	catalogStore := mongo.NewCatalogStore(db)
	discountStore := mongo.NewDiscountStore(db)
	reconStore := mongo.NewReconciliationStore(db)

	// Event publisher
	var publisher domain.EventPublisher = events.Nop{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	// Notifier
	var sender notify.Sender = notify.NopSender{}
	if cfg.SMTP.Host != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	notifier := notify.NewOrderNotifier(sender, userEmailResolver(db), cfg.SMTP.From)

	// Services
	orderService := service.NewOrderService(
		orderStore, catalogStore, discountStore, reconStore,
		notifier, publisher, logger,
	)

	gateway := payment.NewGateway(payment.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
	})

	// Maintenance sweep
	sweeper := worker.NewSweeper(orderService, worker.Config{Interval: cfg.Sweep.Interval}, logger)
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("sweeper stopped")
		}
	}()

	// HTTP
	e := router.New(router.Deps{
		Orders:  handler.NewOrderHandler(orderService, gateway, logger),
		Catalog: handler.NewCatalogHandler(catalogStore),
		Metrics: middleware.NewMetrics("commerce"),
		Logger:  logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// userEmailResolver looks up a user's address in the users collection. Only
// the email field is read; the users collection is otherwise owned by the
// account system.
func userEmailResolver(db *mongodriver.Database) notify.EmailResolver {
	users := db.Collection("users")
	return func(ctx context.Context, userID primitive.ObjectID) (string, error) {
		var doc struct {
			Email string `bson:"email"`
		}
		if err := users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
			return "", fmt.Errorf("failed to look up user %s: %w", userID.Hex(), err)
		}
		return doc.Email, nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sajid-hossain/apptsched/libs/config"
	"github.com/sajid-hossain/apptsched/libs/db"
	"github.com/sajid-hossain/apptsched/libs/httpx"
	"github.com/sajid-hossain/apptsched/libs/kafkax"
	otelx "github.com/sajid-hossain/apptsched/libs/otel"
	"github.com/sajid-hossain/apptsched/libs/runtime"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/handlers"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/outbox"
	"github.com/sajid-hossain/apptsched/services/directory-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "directory-service")
	port, err := config.Port("PORT", "8092")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	publisher := outbox.NewPublisher(pool, logger, config.String("KAFKA_BROKERS", ""))
	go publisher.Run(ctx)

	if err := startGrpcServer(ctx, logger, pool, repo); err != nil {
		logger.Error("grpc server start failed", "err", err)
	}

	handler := handlers.New(repo, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/services", handler.Services)
	mux.HandleFunc("/api/v1/staff", handler.Staff)
	mux.HandleFunc("/api/v1/staff/update", handler.UpdateStaff)

	httpHandler := httpx.Chain(mux,
		httpx.WithTimeout(30*time.Second),
		httpx.WithBodyLimit(1<<20),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "directory")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

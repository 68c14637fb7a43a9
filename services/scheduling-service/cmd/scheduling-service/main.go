package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sajid-hossain/apptsched/libs/auth"
	"github.com/sajid-hossain/apptsched/libs/config"
	"github.com/sajid-hossain/apptsched/libs/db"
	"github.com/sajid-hossain/apptsched/libs/httpx"
	"github.com/sajid-hossain/apptsched/libs/kafkax"
	otelx "github.com/sajid-hossain/apptsched/libs/otel"
	"github.com/sajid-hossain/apptsched/libs/runtime"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/appointments"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/audit"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/consumer"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/handlers"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/inbox"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/outbox"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8091")
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
	recorder := audit.NewRecorder(pool, outboxRepo, logger)
	svc := appointments.NewService(repo, recorder, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if strings.TrimSpace(config.String("KAFKA_BROKERS", "")) != "" {
		staffConsumer := consumer.New(logger, inbox.NewRepository(pool), svc, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
		})
		go staffConsumer.Run(ctx)
	}

	apptHandler := handlers.NewAppointmentHandler(svc, logger)
	activityHandler := handlers.NewActivityHandler(recorder, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/appointments", apptHandler.Appointments)
	mux.HandleFunc("/api/v1/appointments/get", apptHandler.Get)
	mux.HandleFunc("/api/v1/appointments/update", apptHandler.Update)
	mux.HandleFunc("/api/v1/appointments/cancel", apptHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/complete", apptHandler.Complete)
	mux.HandleFunc("/api/v1/appointments/no-show", apptHandler.NoShow)
	mux.HandleFunc("/api/v1/queue", apptHandler.Waiting)
	mux.HandleFunc("/api/v1/queue/assign", apptHandler.Assign)
	mux.HandleFunc("/api/v1/staff/load", apptHandler.StaffLoad)
	mux.HandleFunc("/api/v1/activity", activityHandler.List)

	limitPerMinute := 60
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "60")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer func() { _ = rdb.Close() }()
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "sched"))
		rateLimitMW = rl.Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	var httpHandler http.Handler = mux
	if secret := strings.TrimSpace(config.String("JWT_SECRET", "")); secret != "" {
		httpHandler = requireAuth(httpHandler, secret)
	} else {
		logger.Warn("JWT_SECRET unset; trusting upstream " + handlers.OwnerHeader + " header")
	}
	httpHandler = httpx.Chain(httpHandler,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			MaxAge:         10 * time.Minute,
		}),
		rateLimitMW,
		httpx.WithTimeout(30*time.Second),
		httpx.WithBodyLimit(1<<20),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

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

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// requireAuth verifies the bearer token and injects the owner identity
// header, replacing whatever the client sent. Health endpoints stay
// open.
func requireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		r.Header.Del(handlers.OwnerHeader)
		if claims.OwnerID != "" {
			r.Header.Set(handlers.OwnerHeader, claims.OwnerID)
		}
		next.ServeHTTP(w, r)
	})
}

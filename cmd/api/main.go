package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"rollcall/internal/account"
	"rollcall/internal/attendance"
	"rollcall/internal/bootstrap"
	"rollcall/internal/classroom"
	"rollcall/internal/config"
	"rollcall/internal/httpapi"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/jobs"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", "api").Logger()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()
	log.Info().Stringer("backends", b).Msg("backends ready")

	faces, err := b.Faces(ctx)
	if err != nil {
		return err
	}
	images, err := b.Images(ctx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	accounts := account.NewService(b.Store, b.Queue, account.Options{
		Issuer:               cfg.JWTIssuer,
		SigningKey:           cfg.JWTSigningKey,
		AccessTTL:            cfg.AccessTTL,
		VerifyTTL:            cfg.VerifyTTL,
		RequireVerifiedEmail: cfg.RequireVerifiedEmail,
	}, log)
	classes := classroom.NewService(b.Store, b.Queue, m, log)
	att := attendance.NewService(b.Store, faces, images, b.Locks, m, attendance.Options{
		MatchThreshold:    cfg.FaceMatchThreshold,
		MaxImageDimension: cfg.ImageMaxDimension,
		LockTTL:           cfg.SubmitLockTTL,
	}, log)

	// an in-memory queue has no other consumer, so jobs run in this process
	if cfg.QueueBackend == "memory" {
		mailer, err := b.Mailer(ctx)
		if err != nil {
			return err
		}
		proc := jobs.NewProcessor(b.Store, att, mailer, cfg.PublicBaseURL, log.With().Str("component", "jobs").Logger())
		go func() {
			if err := proc.Run(ctx, b.Queue); err != nil {
				log.Error().Err(err).Msg("in-process worker stopped")
			}
		}()
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if b.Redis != nil {
		limiter = httpmiddleware.NewRedisWindow(b.Redis.Client, cfg.RateLimitPerMin)
	}

	checks := []httpapi.HealthCheck{
		{Name: "store", Check: b.Store.Ping},
		{Name: "face", Check: faces.Health},
	}
	if b.Redis != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return b.Redis.Client.Ping(ctx).Err()
		}})
	}

	r := httpapi.NewRouter(httpapi.Config{
		Accounts:      accounts,
		Classes:       classes,
		Attendance:    att,
		JWTSigningKey: cfg.JWTSigningKey,
		JWTIssuer:     cfg.JWTIssuer,
		SubmitLimiter: limiter,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		HealthChecks:  checks,
		Metrics:       m,
		Gatherer:      reg,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	// give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

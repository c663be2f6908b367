package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"rollcall/internal/attendance"
	"rollcall/internal/bootstrap"
	"rollcall/internal/config"
	"rollcall/internal/face"
	"rollcall/internal/jobs"
	"rollcall/internal/logging"
	"rollcall/internal/media"
)

// Worker consumes queued jobs and sends verification and session summary emails.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", "worker").Logger()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
}

func run(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Warn().Msg("QUEUE_BACKEND is not redis; the api processes jobs itself and this worker will stay idle")
	}

	b, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	mailer, err := b.Mailer(ctx)
	if err != nil {
		return err
	}

	// summaries only read the store; no face or image backend is needed
	summaries := attendance.NewService(b.Store, face.NewLocal(), media.Discard{}, b.Locks, nil, attendance.Options{}, log)
	proc := jobs.NewProcessor(b.Store, summaries, mailer, cfg.PublicBaseURL, log)

	log.Info().Stringer("backends", b).Msg("backends ready")
	return proc.Run(ctx, b.Queue)
}

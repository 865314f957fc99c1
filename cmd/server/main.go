package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	httpadapter "github.com/salza80/jitsi-meet/internal/adapters/http"
	"github.com/salza80/jitsi-meet/internal/adapters/rtc"
	wssignal "github.com/salza80/jitsi-meet/internal/adapters/signal"
	"github.com/salza80/jitsi-meet/internal/app"
	"github.com/salza80/jitsi-meet/internal/app/orch"
	"github.com/salza80/jitsi-meet/internal/config"
	"github.com/salza80/jitsi-meet/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	policy, err := app.PolicyFor(cfg.Layout.Eligibility)
	if err != nil {
		log.Fatal().Err(err).Msg("bad eligibility policy")
	}
	store := app.NewRegistry(app.RegistryOptions{
		LastN:    cfg.Layout.LastN,
		TileView: cfg.Layout.TileView,
	})
	hub := wssignal.NewHub(wssignal.DefaultAckTimeout)

	eventRouter := orch.New(orch.Options{
		Store:                    store,
		Reducer:                  store,
		Policy:                   policy,
		Render:                   hub,
		Large:                    hub,
		DominantSpeakerOrdering:  cfg.Layout.DominantSpeakerOrdering,
		DominantSpeakerIndicator: cfg.Layout.DominantSpeakerIndicator,
		Viewport:                 core.Viewport{Width: cfg.Layout.ViewportWidth, Height: cfg.Layout.ViewportHeight},
		QueueSize:                cfg.Events.QueueSize,
	})

	ctl := &wssignal.EventsWSController{
		Sink:       eventRouter,
		Hub:        hub,
		Limiter:    wssignal.NewClientRateLimiter(cfg.Events.RateLimit, cfg.Events.RateInterval),
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		RTC:        rtc.DefaultWebRTCConfig(cfg.RTC.STUNURLs),
	}

	r := httpadapter.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := eventRouter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event loop error")
		}
	})
	wg.Go(func() {
		log.Info().Str("addr", addr).Msg("layout server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
}

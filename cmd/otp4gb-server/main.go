// @title         OTP4GB status API
// @version       0.1.0
// @description   Status endpoints for a supervised routing engine

package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/modkit"
	"otp4gb/internal/modkit/httpkit"
	"otp4gb/internal/modkit/swaggerkit"
	"otp4gb/internal/platform/config"
	"otp4gb/internal/platform/logger"
	phttp "otp4gb/internal/platform/net/http"
	"otp4gb/internal/platform/paths"
	"otp4gb/internal/runconfig"

	monitorhttp "otp4gb/internal/services/monitor/http"
	monitormod "otp4gb/internal/services/monitor/module"
)

const shutdownWait = 10 * time.Second

func main() {
	fFolder := flag.String("folder", "", "run folder holding config.yml and a prepared graph")
	flag.Parse()

	root := config.New()
	cfg := root.Prefix("OTP4GB_")
	l := logger.Get()
	if *fFolder == "" {
		l.Fatal().Msg("must provide -folder")
	}

	layout := paths.FromConf(cfg)
	params, err := runconfig.Load(*fFolder)
	if err != nil {
		l.Fatal().Err(err).Msg("loading run config failed")
	}
	jar, err := layout.CheckBin(engine.JarName())
	if err != nil {
		l.Fatal().Err(err).Msg("engine jar missing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := engine.NewSupervisor(engine.SupervisorOptions{
		BaseDir: *fFolder,
		JarPath: jar,
		Port:    params.Port,
		Heap:    cfg.MayString("SERVER_MAX_HEAP", "25G"),
	})
	if err := sup.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("starting the engine failed")
	}

	// status server (reads OTP4GB_STATUS_ADDR)
	srv := phttp.NewServer(cfg)
	deps := modkit.Deps{Log: *l, Cfg: root, Paths: layout}
	mon := monitormod.New(deps, monitorhttp.Deps{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Port:      params.Port,
		Engine:    sup,
		Stop:      sup.Stop,
	}, modkit.WithMiddlewares(httpkit.CommonStack()...))
	mon.MountRoutes(srv.Router())
	swaggerkit.Mount(srv.Router(), cfg.MayBool("SWAGGER", true))
	phttp.MountProfiler(srv.Router(), "/debug", cfg.MayBool("PROFILER", false))

	go func() {
		<-ctx.Done()
		l.Info().Msg("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			l.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	runErr := srv.Run(ctx)

	// the engine outlives the http server until we are actually exiting
	stCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := sup.Stop(stCtx); err != nil {
		l.Error().Err(err).Msg("stopping the engine failed")
	}
	if runErr != nil {
		l.Fatal().Err(runErr).Msg("status server stopped")
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/modkit"
	"otp4gb/internal/modkit/module"
	"otp4gb/internal/platform/config"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"
	"otp4gb/internal/runconfig"

	matrixmod "otp4gb/internal/services/matrix/module"
	preparemod "otp4gb/internal/services/prepare/module"
)

func main() {
	var (
		fFolder  = flag.String("folder", "", "run folder holding config.yml")
		fBounds  = flag.String("bounds", "", "named bounds.yml extents overriding the config extents")
		fDate    = flag.String("date", "", "override the config date, YYYY-MM-DD")
		fForce   = flag.Bool("force", false, "rebuild the graph even when a finished one exists")
		fPrepare = flag.Bool("prepare", false, "prepare the graph before running")
		fSave    = flag.Bool("save-parameters", false, "write request parameter files and exit without dialling the engine")
		fFromRaw = flag.Bool("from-responses", false, "rebuild matrices from the raw response files given as arguments")
	)
	flag.Parse()

	root := config.New()
	l := logger.Get()
	if *fFolder == "" {
		l.Fatal().Msg("must provide -folder")
	}

	layout := paths.FromConf(root.Prefix("OTP4GB_"))
	params, err := runconfig.Load(*fFolder)
	if err != nil {
		l.Fatal().Err(err).Msg("loading run config failed")
	}
	applyOverrides(l, layout, params, *fBounds, *fDate)

	deps := modkit.Deps{Log: *l, Cfg: root, Paths: layout}
	mx := matrixmod.New(deps, *fFolder, params)
	module.Register(mx.Name(), mx.Ports())
	runner := mx.Ports().(matrixmod.Ports).Runner

	ctx := context.Background()

	switch {
	case *fFromRaw:
		if flag.NArg() == 0 {
			l.Fatal().Msg("-from-responses needs raw response files as arguments")
		}
		if err := runner.FromResponses(ctx, flag.Args()); err != nil {
			l.Fatal().Err(err).Msg("rebuilding from responses failed")
		}

	case *fSave:
		if err := runner.SaveParameters(ctx); err != nil {
			l.Fatal().Err(err).Msg("saving parameters failed")
		}

	default:
		if needsGraph(*fFolder, params, *fPrepare, *fForce) {
			pm := preparemod.New(deps, *fFolder, params, *fForce)
			module.Register(pm.Name(), pm.Ports())
			if err := pm.Ports().(preparemod.Ports).Preparer.Run(ctx); err != nil {
				l.Fatal().Err(err).Msg("preparing the graph failed")
			}
		}
		if *fPrepare {
			// asked only to prepare, the matrix run is a separate invocation
			return
		}
		if err := runner.Run(ctx); err != nil {
			l.Fatal().Err(err).Msg("matrix run failed")
		}
	}
}

// applyOverrides folds the command line overrides into the run config
func applyOverrides(l *logger.Logger, layout paths.Layout, params *runconfig.ProcessConfig, boundsName, dateStr string) {
	if boundsName != "" {
		bounds, err := runconfig.LoadBounds(layout.Config)
		if err != nil {
			l.Fatal().Err(err).Msg("loading bounds failed")
		}
		if err := params.OverrideExtents(bounds, boundsName); err != nil {
			l.Fatal().Err(err).Msg("bad -bounds")
		}
	}
	if dateStr != "" {
		d, err := runconfig.ParseDate(dateStr)
		if err != nil {
			l.Fatal().Err(err).Msg("bad -date")
		}
		l.Warn().
			Str("config", params.Date.String()).
			Str("override", d.String()).
			Msg("overriding run date from the command line")
		params.Date = d
	}
}

// needsGraph decides whether a prepare pass runs first: asked for
// explicitly, forced, or the run folder has no finished graph yet. A
// no_server run routes against someone else's engine and never prepares
func needsGraph(folder string, params *runconfig.ProcessConfig, prepare, force bool) bool {
	if params.NoServer {
		return false
	}
	if prepare || force {
		return true
	}
	_, err := os.Stat(filepath.Join(folder, engine.GraphSubdir(), engine.GraphFileName))
	return err != nil
}

package main

import (
	"context"
	"flag"

	"otp4gb/internal/modkit"
	"otp4gb/internal/modkit/module"
	"otp4gb/internal/platform/config"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"
	"otp4gb/internal/runconfig"

	preparemod "otp4gb/internal/services/prepare/module"
)

func main() {
	var (
		fFolder = flag.String("folder", "", "run folder holding config.yml")
		fBounds = flag.String("bounds", "", "named bounds.yml extents overriding the config extents")
		fDate   = flag.String("date", "", "override the config date, YYYY-MM-DD")
		fForce  = flag.Bool("force", false, "rebuild the graph even when a finished one exists")
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

	if *fBounds != "" {
		bounds, err := runconfig.LoadBounds(layout.Config)
		if err != nil {
			l.Fatal().Err(err).Msg("loading bounds failed")
		}
		if err := params.OverrideExtents(bounds, *fBounds); err != nil {
			l.Fatal().Err(err).Msg("bad -bounds")
		}
	}
	if *fDate != "" {
		d, err := runconfig.ParseDate(*fDate)
		if err != nil {
			l.Fatal().Err(err).Msg("bad -date")
		}
		l.Warn().
			Str("config", params.Date.String()).
			Str("override", d.String()).
			Msg("overriding run date from the command line")
		params.Date = d
	}

	deps := modkit.Deps{Log: *l, Cfg: root, Paths: layout}
	pm := preparemod.New(deps, *fFolder, params, *fForce)
	module.Register(pm.Name(), pm.Ports())

	if err := pm.Ports().(preparemod.Ports).Preparer.Run(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("preparing the graph failed")
	}
}

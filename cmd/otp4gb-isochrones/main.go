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

	isomod "otp4gb/internal/services/isochrone/module"
)

func main() {
	var (
		fFolder = flag.String("folder", "", "run folder holding config.yml")
		fSave   = flag.Bool("save-parameters", false, "write request parameter files and exit without dialling the engine")
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

	deps := modkit.Deps{Log: *l, Cfg: root, Paths: layout}
	iso := isomod.New(deps, *fFolder, params)
	module.Register(iso.Name(), iso.Ports())
	runner := iso.Ports().(isomod.Ports).Runner

	ctx := context.Background()
	if *fSave {
		if err := runner.SaveParameters(ctx); err != nil {
			l.Fatal().Err(err).Msg("saving parameters failed")
		}
		return
	}
	if err := runner.Run(ctx); err != nil {
		l.Fatal().Err(err).Msg("isochrone run failed")
	}
}

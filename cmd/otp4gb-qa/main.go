package main

import (
	"context"
	"flag"

	"otp4gb/internal/modkit"
	"otp4gb/internal/modkit/module"
	"otp4gb/internal/platform/config"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"

	qamod "otp4gb/internal/services/qa/module"
)

func main() {
	fOut := flag.String("out", "", "directory receiving the stats files, default next to each input")
	flag.Parse()

	root := config.New()
	l := logger.Get()
	if flag.NArg() == 0 {
		l.Fatal().Msg("must provide matrix csv files as arguments")
	}

	deps := modkit.Deps{
		Log:   *l,
		Cfg:   root,
		Paths: paths.FromConf(root.Prefix("OTP4GB_")),
	}
	qa := qamod.New(deps, *fOut)
	module.Register(qa.Name(), qa.Ports())

	if err := qa.Ports().(qamod.Ports).Analyser.Run(context.Background(), flag.Args()); err != nil {
		l.Fatal().Err(err).Msg("qa run failed")
	}
}

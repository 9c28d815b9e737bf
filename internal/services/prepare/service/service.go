// Package service implements the graph preparation pipeline: GTFS
// timetable filtering, OSM extract cropping, build config writing and
// the engine's graph build, all scoped to one run folder
package service

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"otp4gb/internal/adapters/engine"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"
	ptime "otp4gb/internal/platform/time"
	"otp4gb/internal/runconfig"
)

// External tool names expected under bin/
const (
	gtfsFilterJar = "gtfs-filter-0.1.jar"
	osmConvertBin = "osmconvert64"
)

// croppedOSMName is the filtered map extract written into the graph dir
const croppedOSMName = "gbfiltered.pbf"

// routerConfigFileName is copied from the config dir next to the graph
const routerConfigFileName = "router-config.json"

// Config holds the service knobs that come from the environment
type Config struct {
	// Heap is the graph builder -Xmx value
	Heap string

	// Force rebuilds even when a finished graph already exists
	Force bool
}

// Service prepares the engine graph for one run folder
type Service struct {
	Folder string
	Params *runconfig.ProcessConfig
	Layout paths.Layout
	Cfg    Config

	log logger.Logger

	// run is a seam so tests never spawn java or osmconvert
	run func(cmd *exec.Cmd) error
}

// New constructs the prepare service for a run folder
func New(folder string, params *runconfig.ProcessConfig, layout paths.Layout, cfg Config) *Service {
	if params == nil {
		panic("prepare.Service requires a non nil run config")
	}
	return &Service{
		Folder: folder,
		Params: params,
		Layout: layout,
		Cfg:    cfg,
		log:    *logger.Named("prepare"),
		run:    func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// Run implements domain.PreparerPort
func (s *Service) Run(ctx context.Context) error {
	graphDir := filepath.Join(s.Folder, engine.GraphSubdir())
	graphPath := filepath.Join(s.Folder, engine.GraphSubpath())

	switch ready, err := s.checkGraph(graphDir, graphPath); {
	case err != nil:
		return err
	case ready:
		return nil
	}
	if err := os.MkdirAll(graphDir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create graph dir %s", graphDir)
	}

	otpJar, err := s.Layout.CheckBin(engine.JarName())
	if err != nil {
		return err
	}
	gtfsJar, err := s.Layout.CheckBin(gtfsFilterJar)
	if err != nil {
		return err
	}
	osmTool, err := s.Layout.CheckBin(osmConvertBin)
	if err != nil {
		return err
	}

	logFile, err := s.openLog()
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	for _, name := range s.Params.GTFSFiles {
		if err := s.filterGTFS(ctx, gtfsJar, name, graphDir, logFile); err != nil {
			return err
		}
	}
	if err := s.cropOSM(ctx, osmTool, graphDir, logFile); err != nil {
		return err
	}

	if err := runconfig.WriteBuildConfig(s.Layout.Config, graphDir, s.Params.Date); err != nil {
		return err
	}
	if err := s.copyRouterConfig(graphDir); err != nil {
		return err
	}

	if err := s.buildGraph(ctx, otpJar, graphDir, logFile); err != nil {
		return err
	}
	if _, err := os.Stat(graphPath); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup,
			"graph build finished without producing %s", graphPath)
	}
	s.log.Info().Str("graph", graphPath).Msg("graph prepared")
	return nil
}

// checkGraph decides whether preparation can be skipped. A finished
// graph is reused unless forced; a graph dir without a finished graph
// is a half-done previous run and needs an explicit decision
func (s *Service) checkGraph(graphDir, graphPath string) (ready bool, err error) {
	if _, err := os.Stat(graphPath); err == nil {
		if !s.Cfg.Force {
			s.log.Info().Str("graph", graphPath).Msg("graph already built, reusing")
			return true, nil
		}
		s.log.Info().Str("graph", graphPath).Msg("forced rebuild, removing existing graph")
		if err := os.RemoveAll(graphDir); err != nil {
			return false, perr.Wrapf(err, perr.ErrorCodeStartup, "remove graph dir %s", graphDir)
		}
		return false, nil
	}
	if _, err := os.Stat(graphDir); err == nil {
		if !s.Cfg.Force {
			return false, perr.Startupf(
				"graph folder %s exists without %s, remove it or force a rebuild",
				graphDir, engine.GraphFileName)
		}
		if err := os.RemoveAll(graphDir); err != nil {
			return false, perr.Wrapf(err, perr.ErrorCodeStartup, "remove graph dir %s", graphDir)
		}
	}
	return false, nil
}

// filterGTFS runs the timetable filter over one zip and zips the
// filtered feed into the graph dir under the same name
func (s *Service) filterGTFS(ctx context.Context, jar, name, graphDir string, logFile *os.File) error {
	input := filepath.Join(s.Layout.Assets, name)
	if _, err := os.Stat(input); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "missing timetable %s", input)
	}

	tmpDir, err := os.MkdirTemp("", "gtfs_filter_")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create gtfs filter temp dir")
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	date := s.Params.Date
	window := date.String() + ":" + runconfig.Date{Time: date.AddDate(0, 0, 1)}.String()
	args := []string{
		"-Xmx" + s.Cfg.Heap,
		"-jar", jar,
		input,
		"-d", window,
		"-o", tmpDir,
		"-l", boundsArg(s.Params),
	}
	s.log.Info().Str("timetable", name).Str("window", window).Msg("filtering timetable")
	if err := s.exec(ctx, logFile, "java", args...); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "gtfs filter %s", name)
	}

	out := filepath.Join(graphDir, filepath.Base(name))
	if err := zipDir(tmpDir, out); err != nil {
		return err
	}
	s.log.Info().Str("path", out).Msg("filtered timetable written")
	return nil
}

// cropOSM crops the map extract to the run extents with complete ways
// so boundary-crossing roads survive the cut
func (s *Service) cropOSM(ctx context.Context, tool, graphDir string, logFile *os.File) error {
	input := filepath.Join(s.Layout.Assets, s.Params.OSMFile)
	if _, err := os.Stat(input); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "missing map extract %s", input)
	}
	out := filepath.Join(graphDir, croppedOSMName)

	b := s.Params.Extents
	args := []string{
		input,
		"-b=" + formatBox(b.MinLon, b.MinLat, b.MaxLon, b.MaxLat),
		"--complete-ways",
		"-o=" + out,
	}
	s.log.Info().Str("map", s.Params.OSMFile).Msg("cropping map extract")
	if err := s.exec(ctx, logFile, tool, args...); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "crop map extract %s", s.Params.OSMFile)
	}
	return nil
}

// buildGraph runs the engine's graph builder over the prepared inputs
func (s *Service) buildGraph(ctx context.Context, jar, graphDir string, logFile *os.File) error {
	args := append(engine.JavaCommand(s.Cfg.Heap, jar)[1:], "--build", graphDir, "--save")
	s.log.Info().Str("dir", graphDir).Str("heap", s.Cfg.Heap).Msg("building graph")
	if err := s.exec(ctx, logFile, "java", args...); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "graph build")
	}
	return nil
}

// copyRouterConfig carries the shared router settings next to the graph
// when the config dir provides them
func (s *Service) copyRouterConfig(graphDir string) error {
	src := filepath.Join(s.Layout.Config, routerConfigFileName)
	raw, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "read router config %s", src)
	}
	dst := filepath.Join(graphDir, routerConfigFileName)
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "write router config %s", dst)
	}
	s.log.Info().Str("path", dst).Msg("copied router config")
	return nil
}

// exec runs one external tool with output appended to the prepare log
func (s *Service) exec(ctx context.Context, logFile *os.File, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = s.Folder
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	s.log.Debug().Strs("command", append([]string{name}, args...)).Msg("prepare command")
	return s.run(cmd)
}

// openLog opens the dated prepare log the external tools write into
func (s *Service) openLog() (*os.File, error) {
	dir := filepath.Join(s.Folder, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create prepare log dir")
	}
	path := filepath.Join(dir, "otp_prepare-"+time.Now().Format(ptime.DateStamp)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "open prepare log %s", path)
	}
	s.log.Info().Str("log", path).Msg("tool output redirected")
	return f, nil
}

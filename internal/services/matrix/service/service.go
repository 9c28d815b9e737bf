package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"otp4gb/internal/adapters/centroids"
	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/adapters/lookups"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/paths"
	"otp4gb/internal/runconfig"
	"otp4gb/internal/services/matrix/domain"
)

// Config holds the service knobs that come from the environment rather
// than the run folder's config file
type Config struct {
	// Heap is the engine -Xmx value when this run supervises it
	Heap string

	// Request retry budget per job
	MaxAttempts int
	RetryDelay  time.Duration

	// SkipSelfPairs drops origin == destination jobs
	SkipSelfPairs bool

	// CompressRaw gzips the raw response archives
	CompressRaw bool
}

// Service runs the cost matrix pipeline for one run folder
type Service struct {
	Folder string
	Params *runconfig.ProcessConfig
	Layout paths.Layout
	Cfg    Config
}

// New constructs the matrix service for a run folder
func New(folder string, params *runconfig.ProcessConfig, layout paths.Layout, cfg Config) *Service {
	if params == nil {
		panic("matrix.Service requires a non nil run config")
	}
	return &Service{Folder: folder, Params: params, Layout: layout, Cfg: cfg}
}

// Run implements domain.RunnerPort: start the engine unless configured
// against it, expand jobs, dispatch them and aggregate into matrix
// files. The engine is stopped on the way out whatever happened
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithRun(ctx, uuid.NewString())
	log := logger.C(ctx)
	log.Info().Str("folder", s.Folder).Str("date", s.Params.Date.String()).Msg("starting matrix run")

	zones, err := s.loadZones()
	if err != nil {
		return err
	}
	builder, err := s.builder(zones)
	if err != nil {
		return err
	}

	planner, shutdown, err := s.engine(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	agg := Aggregator{Factors: s.Params.GeneralisedCostFactors, Method: s.Params.AggregationMethod}
	sink := NewMatrixSink(s.Folder, agg, MatrixSinkOptions{
		WriteRawResponses: s.Params.WriteRawResponses,
		CompressRaw:       s.Cfg.CompressRaw,
	})
	builder.OnReuse(sink.Reused)

	disp := &Dispatcher{
		Planner:     planner,
		Workers:     s.Params.NumberOfThreads,
		MaxAttempts: s.Cfg.MaxAttempts,
		RetryDelay:  s.Cfg.RetryDelay,
	}
	runErr := disp.Run(ctx, builder.Jobs(), sink)

	files := len(sink.Paths())
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}

	counts := builder.Counts()
	stats := sink.Stats()
	log.Info().
		Int("jobs_built", counts.Built).
		Int("skipped_self", counts.SelfPairs).
		Int("skipped_crowfly", counts.CrowFly).
		Int("skipped_irrelevant", counts.Irrelevant).
		Int("rows_valid", stats.Valid).
		Int("rows_zero", stats.Zero).
		Int("rows_errored", stats.Errored).
		Int("rows_reused", stats.Reused).
		Int("files", files).
		Msg("matrix run finished")
	return runErr
}

// SaveParameters implements domain.RunnerPort: write the request
// parameter files the run would dispatch, without starting or dialling
// an engine
func (s *Service) SaveParameters(ctx context.Context) error {
	ctx = logger.WithRun(ctx, uuid.NewString())
	log := logger.C(ctx)
	log.Info().Str("folder", s.Folder).Msg("saving request parameters without dialling the engine")

	zones, err := s.loadZones()
	if err != nil {
		return err
	}
	builder, err := s.builder(zones)
	if err != nil {
		return err
	}

	pw := NewParamsWriter(s.Folder)
	for job := range builder.Jobs() {
		if err := pw.Write(job); err != nil {
			pw.Abort()
			return err
		}
	}
	if err := pw.Close(); err != nil {
		return err
	}

	counts := builder.Counts()
	log.Info().
		Int("jobs", pw.Count()).
		Int("skipped_self", counts.SelfPairs).
		Int("skipped_crowfly", counts.CrowFly).
		Int("skipped_irrelevant", counts.Irrelevant).
		Int("reused", counts.Reused).
		Msg("request parameters saved")
	return nil
}

// FromResponses implements domain.RunnerPort: rebuild matrix files from
// persisted raw response archives. Output lands next to each input as
// <MODES>_costs_<stamp>_reaggregated.csv so run outputs are never
// clobbered
func (s *Service) FromResponses(ctx context.Context, rawPaths []string) error {
	ctx = logger.WithRun(ctx, uuid.NewString())
	log := logger.C(ctx)

	zones, err := s.loadZones()
	if err != nil {
		return err
	}
	re := &Reaggregator{
		Zones: zones,
		Agg:   Aggregator{Factors: s.Params.GeneralisedCostFactors, Method: s.Params.AggregationMethod},
	}

	for _, rawPath := range rawPaths {
		_, modes, stamp, ok := rawFileKey(rawPath)
		if !ok {
			return perr.Validationf(
				"raw responses %s: expected costs/<period>/<MODES>_responses_<ts>.jsonl[.gz]", rawPath)
		}
		outPath := filepath.Join(filepath.Dir(rawPath), modes+"_costs_"+stamp+"_reaggregated.csv")
		rows, err := re.File(rawPath, outPath)
		if err != nil {
			return err
		}
		log.Info().Str("path", outPath).Int("rows", rows).Msg("matrix rebuilt from raw responses")
	}
	return nil
}

// engine hands back the planner for this run: a supervised child
// process by default, or a plain client against an already running
// instance when no_server is set. Stopping runs on a fresh context so
// a cancelled run still shuts the engine down
func (s *Service) engine(ctx context.Context) (domain.Planner, func(), error) {
	if s.Params.NoServer {
		client := engine.NewClient(engine.Options{BaseURL: s.Params.EngineBaseURL()})
		return client, func() {}, nil
	}

	jar, err := s.Layout.CheckBin(engine.JarName())
	if err != nil {
		return nil, nil, err
	}
	sup := engine.NewSupervisor(engine.SupervisorOptions{
		BaseDir: s.Folder,
		JarPath: jar,
		Port:    s.Params.Port,
		Heap:    s.Cfg.Heap,
	})
	if err := sup.Start(ctx); err != nil {
		return nil, nil, err
	}
	shutdown := func() {
		if err := sup.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.C(ctx).Error().Err(err).Msg("stopping engine failed")
		}
	}
	return sup.Client(), shutdown, nil
}

func (s *Service) loadZones() (*centroids.Data, error) {
	originPath := filepath.Join(s.Layout.Assets, s.Params.Centroids)
	destPath := ""
	if s.Params.DestinationCentroids != "" {
		destPath = filepath.Join(s.Layout.Assets, s.Params.DestinationCentroids)
	}
	extents := s.Params.Extents
	return centroids.Load(originPath, destPath, centroids.DefaultColumns(), &extents)
}

// builder resolves periods onto the run date and loads whichever
// pre-filter lookups the config names
func (s *Service) builder(zones *centroids.Data) (*Builder, error) {
	periods := make([]Period, len(s.Params.TimePeriods))
	for i, tp := range s.Params.TimePeriods {
		travel, err := tp.At(s.Params.Date)
		if err != nil {
			return nil, err
		}
		periods[i] = Period{
			Name:                tp.Name,
			Travel:              travel,
			SearchWindowSeconds: int(tp.SearchWindow() / time.Second),
		}
	}

	opts := BuilderOptions{
		Periods:               periods,
		Modes:                 s.Params.Modes,
		ArriveBy:              s.Params.ArriveBy == nil || *s.Params.ArriveBy,
		MaxWalkDistanceMeters: float64(s.Params.MaxWalkDistance),
		SkipSelfPairs:         s.Cfg.SkipSelfPairs,
		CrowflyMaxKm:          s.Params.CrowflyMaxDistance,
	}

	log := logger.Named("matrix")
	if s.Params.RUCLookup != "" {
		ruc, err := lookups.LoadRUC(filepath.Join(s.Layout.Assets, s.Params.RUCLookup), nil)
		if err != nil {
			return nil, err
		}
		opts.RUC = ruc
	}
	if s.Params.IrrelevantDestinations != "" {
		irr, err := lookups.LoadIrrelevant(filepath.Join(s.Layout.Assets, s.Params.IrrelevantDestinations))
		if err != nil {
			return nil, err
		}
		log.Info().Int("pairs", irr.Len()).Msg("loaded irrelevant destinations")
		opts.Irrelevant = irr
	}
	if s.Params.PreviousTrips != "" {
		prev, err := lookups.LoadPrevious(filepath.Join(s.Folder, s.Params.PreviousTrips))
		if err != nil {
			return nil, err
		}
		log.Info().Int("rows", prev.Len()).Msg("loaded previous trips")
		opts.Previous = prev
	}
	return NewBuilder(zones, opts), nil
}

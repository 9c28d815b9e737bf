// Package service computes QA statistics over produced cost matrix
// files: how many OD pairs routed, how many had no path and how many
// requests errored, plus duration stats over the routable rows
package service

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/services/qa/domain"
)

// statsSuffix is appended to the input stem for the report file
const statsSuffix = "_qa_stats.csv"

// Service analyses matrix CSVs. OutDir receives the stats files; empty
// means next to each input
type Service struct {
	OutDir string
}

// New constructs the QA service
func New(outDir string) *Service { return &Service{OutDir: outDir} }

// Run implements domain.AnalyserPort over a list of matrix files
func (s *Service) Run(ctx context.Context, paths []string) error {
	log := logger.Named("qa")
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := s.File(ctx, p)
		if err != nil {
			return err
		}
		log.Info().
			Str("path", p).
			Int("rows", stats.Rows).
			Float64("valid_pct", stats.PercentValid()).
			Float64("not_possible_pct", stats.PercentNotPossible()).
			Float64("errored_pct", stats.PercentErrored()).
			Msg("matrix analysed")
	}
	return nil
}

// File implements domain.AnalyserPort for one matrix file
func (s *Service) File(_ context.Context, path string) (domain.Stats, error) {
	stats, err := analyse(path)
	if err != nil {
		return domain.Stats{}, err
	}
	if err := writeStats(statsPath(path, s.OutDir), stats); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// analyse classifies every row by its number_itineraries column:
// present and positive is valid, present zero is not-possible, absent
// means the request errored
func analyse(path string) (domain.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Stats{}, perr.Wrapf(err, perr.ErrorCodeNotFound, "open matrix %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return domain.Stats{}, perr.Wrapf(err, perr.ErrorCodeValidation, "read matrix header %s", path)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range []string{"number_itineraries", "duration"} {
		if _, ok := idx[col]; !ok {
			return domain.Stats{}, perr.Validationf(
				"matrix %s missing column %q, file has %s", path, col, strings.Join(header, ", "))
		}
	}

	stats := domain.Stats{Path: path}
	var durSum float64
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.Stats{}, perr.Wrapf(err, perr.ErrorCodeValidation, "read matrix %s line %d", path, line)
		}
		stats.Rows++

		countField := strings.TrimSpace(rec[idx["number_itineraries"]])
		if countField == "" {
			stats.Errored++
			continue
		}
		count, err := strconv.Atoi(countField)
		if err != nil {
			return domain.Stats{}, perr.Validationf(
				"matrix %s line %d: bad number_itineraries %q", path, line, countField)
		}
		if count == 0 {
			stats.NotPossible++
			continue
		}

		durField := strings.TrimSpace(rec[idx["duration"]])
		dur, err := strconv.ParseFloat(durField, 64)
		if err != nil {
			return domain.Stats{}, perr.Validationf(
				"matrix %s line %d: bad duration %q", path, line, durField)
		}
		mins := dur / 60
		if stats.Valid == 0 || mins < stats.DurationMinMinutes {
			stats.DurationMinMinutes = mins
		}
		if mins > stats.DurationMaxMinutes {
			stats.DurationMaxMinutes = mins
		}
		durSum += mins
		stats.Valid++
	}
	if stats.Valid > 0 {
		stats.DurationMeanMinutes = durSum / float64(stats.Valid)
	}
	return stats, nil
}

// statsPath derives <stem>_qa_stats.csv for an input matrix path
func statsPath(matrixPath, outDir string) string {
	stem := strings.TrimSuffix(filepath.Base(matrixPath), filepath.Ext(matrixPath))
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(matrixPath)
	}
	return filepath.Join(dir, stem+statsSuffix)
}

// writeStats persists the metric,value report atomically
func writeStats(path string, s domain.Stats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create stats dir %s", filepath.Dir(path))
	}
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create stats file %s", path)
	}
	defer func() { _ = f.Close() }()

	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	w := csv.NewWriter(f)
	records := [][]string{
		{"metric", "value"},
		{"rows", strconv.Itoa(s.Rows)},
		{"valid", strconv.Itoa(s.Valid)},
		{"not_possible", strconv.Itoa(s.NotPossible)},
		{"errored", strconv.Itoa(s.Errored)},
		{"valid_pct", num(s.PercentValid())},
		{"not_possible_pct", num(s.PercentNotPossible())},
		{"errored_pct", num(s.PercentErrored())},
		{"duration_mean_mins", num(s.DurationMeanMinutes)},
		{"duration_min_mins", num(s.DurationMinMinutes)},
		{"duration_max_mins", num(s.DurationMaxMinutes)},
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "write stats row %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "flush stats file %s", path)
	}
	if err := f.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "close stats file %s", path)
	}
	if err := os.Rename(part, path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "finalise stats file %s", path)
	}
	return nil
}

package service

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/klauspost/compress/gzip"

	perr "otp4gb/internal/platform/errors"
	ptime "otp4gb/internal/platform/time"
	"otp4gb/internal/services/matrix/domain"
)

// costsDirName is the matrix output tree relative to the run folder
const costsDirName = "costs"

var matrixHeader = []string{"origin", "destination", "number_itineraries", "cost", "duration"}

// MatrixSinkOptions toggle raw response persistence
type MatrixSinkOptions struct {
	WriteRawResponses bool
	CompressRaw       bool
}

// MatrixSink routes matrix rows, replayed rows and raw responses to per
// period and mode-combination files under costs/. Safe for concurrent
// use. Rows are flushed as written so an interrupted run leaves valid
// partial files a later run can reuse
type MatrixSink struct {
	agg  Aggregator
	dir  string
	opts MatrixSinkOptions

	mu    sync.Mutex
	files map[string]*matrixFile
	stats SinkStats
}

// SinkStats tallies written rows by kind
type SinkStats struct {
	Valid   int
	Zero    int
	Errored int
	Reused  int
}

// Rows returns the total row count across kinds
func (s SinkStats) Rows() int { return s.Valid + s.Zero + s.Errored + s.Reused }

type matrixFile struct {
	path  string
	costs *os.File
	w     *csv.Writer

	rawFile *os.File
	rawGz   *gzip.Writer
}

// NewMatrixSink creates a sink writing under runDir
func NewMatrixSink(runDir string, agg Aggregator, opts MatrixSinkOptions) *MatrixSink {
	return &MatrixSink{
		agg:   agg,
		dir:   runDir,
		opts:  opts,
		files: map[string]*matrixFile{},
	}
}

// Consume implements domain.ResultSink: aggregate the result to a row,
// append it to the right matrix file and, when enabled, persist the
// request URL and raw body
func (s *MatrixSink) Consume(res domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mf, err := s.ensure(res.Job)
	if err != nil {
		return err
	}
	row := s.agg.Row(res)
	if err := mf.writeRecord(formatRow(row)); err != nil {
		return err
	}
	switch {
	case row.ItineraryCount == nil:
		s.stats.Errored++
	case *row.ItineraryCount == 0:
		s.stats.Zero++
	default:
		s.stats.Valid++
	}

	if s.opts.WriteRawResponses && !res.Errored {
		if err := mf.writeRaw(res.URL, res.Raw); err != nil {
			return err
		}
	}
	return nil
}

// Reused appends a row carried over verbatim from a previous run
func (s *MatrixSink) Reused(job domain.Job, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mf, err := s.ensure(job)
	if err != nil {
		return err
	}
	rec := make([]string, len(matrixHeader))
	copy(rec, fields)
	if err := mf.writeRecord(rec); err != nil {
		return err
	}
	s.stats.Reused++
	return nil
}

// Stats reports the row tallies so far
func (s *MatrixSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Paths lists the matrix files written, sorted
func (s *MatrixSink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for _, mf := range s.files {
		paths = append(paths, mf.path)
	}
	slices.Sort(paths)
	return paths
}

// Close flushes and closes every open file, returning the first error
func (s *MatrixSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, mf := range s.files {
		mf.w.Flush()
		keep(mf.w.Error())
		keep(mf.costs.Close())
		if mf.rawGz != nil {
			keep(mf.rawGz.Close())
		}
		if mf.rawFile != nil {
			keep(mf.rawFile.Close())
		}
	}
	s.files = map[string]*matrixFile{}
	if first != nil {
		return perr.Wrapf(first, perr.ErrorCodeUnknown, "close matrix sink")
	}
	return nil
}

// ensure opens (or returns) the file pair for the job's period and mode
// combination, named by the period's travel datetime
func (s *MatrixSink) ensure(job domain.Job) (*matrixFile, error) {
	label := job.ModeLabel()
	key := job.Period + "/" + label
	if mf, ok := s.files[key]; ok {
		return mf, nil
	}

	dir := filepath.Join(s.dir, costsDirName, job.Period)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create matrix dir %s", dir)
	}
	stamp := job.Travel.Format(ptime.CompactStamp)

	path := filepath.Join(dir, label+"_costs_"+stamp+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create matrix file %s", path)
	}
	mf := &matrixFile{path: path, costs: f, w: csv.NewWriter(f)}
	if err := mf.writeRecord(matrixHeader); err != nil {
		_ = f.Close()
		return nil, err
	}

	if s.opts.WriteRawResponses {
		rawPath := filepath.Join(dir, label+"_responses_"+stamp+".jsonl")
		if s.opts.CompressRaw {
			rawPath += ".gz"
		}
		rf, err := os.Create(rawPath)
		if err != nil {
			_ = f.Close()
			return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create responses file %s", rawPath)
		}
		mf.rawFile = rf
		if s.opts.CompressRaw {
			mf.rawGz = gzip.NewWriter(rf)
		}
	}

	s.files[key] = mf
	return mf, nil
}

func (f *matrixFile) writeRecord(rec []string) error {
	if err := f.w.Write(rec); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write matrix row %s", f.path)
	}
	f.w.Flush()
	if err := f.w.Error(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "flush matrix row %s", f.path)
	}
	return nil
}

// writeRaw appends one "<url>, <body>" line, flushed through to disk so
// the archive survives an aborted run
func (f *matrixFile) writeRaw(url string, body []byte) error {
	line := make([]byte, 0, len(url)+2+len(body)+1)
	line = append(line, url...)
	line = append(line, ", "...)
	line = append(line, body...)
	line = append(line, '\n')

	if f.rawGz != nil {
		if _, err := f.rawGz.Write(line); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "write raw response")
		}
		if err := f.rawGz.Flush(); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "flush raw response")
		}
		return nil
	}
	if _, err := f.rawFile.Write(line); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write raw response")
	}
	return nil
}

// formatRow renders a matrix row for CSV. Errored rows keep all three
// numeric columns empty; zero-itinerary rows keep cost and duration
// empty
func formatRow(row domain.CostMatrixRow) []string {
	rec := []string{row.OriginID, row.DestinationID, "", "", ""}
	if row.ItineraryCount != nil {
		rec[2] = strconv.Itoa(*row.ItineraryCount)
	}
	if row.Cost != nil {
		rec[3] = strconv.FormatFloat(*row.Cost, 'f', -1, 64)
	}
	if row.DurationSeconds != nil {
		rec[4] = strconv.FormatFloat(*row.DurationSeconds, 'f', -1, 64)
	}
	return rec
}

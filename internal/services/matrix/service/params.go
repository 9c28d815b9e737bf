package service

import (
	"encoding/json"
	"os"
	"path/filepath"

	perr "otp4gb/internal/platform/errors"
	ptime "otp4gb/internal/platform/time"
	"otp4gb/internal/services/matrix/domain"
)

// paramsDirName is the dry-run output tree relative to the run folder
const paramsDirName = "parameters"

// ParamsWriter persists the requests a run would send without dialling
// the engine, one JSON line per job, split per period and mode
// combination. Files land as .part and move into place on Close so an
// aborted dry run leaves nothing half-written behind
type ParamsWriter struct {
	dir   string
	files map[string]*paramsFile
	count int
}

type paramsFile struct {
	path string
	f    *os.File
	enc  *json.Encoder
}

// NewParamsWriter writes under runDir/parameters
func NewParamsWriter(runDir string) *ParamsWriter {
	return &ParamsWriter{
		dir:   filepath.Join(runDir, paramsDirName),
		files: map[string]*paramsFile{},
	}
}

// Write appends one job line
func (w *ParamsWriter) Write(job domain.Job) error {
	pf, err := w.ensure(job)
	if err != nil {
		return err
	}
	if err := pf.enc.Encode(job); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "encode parameters line")
	}
	w.count++
	return nil
}

// Count returns the number of lines written so far
func (w *ParamsWriter) Count() int { return w.count }

// Close renames every .part file into place
func (w *ParamsWriter) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, pf := range w.files {
		keep(pf.f.Close())
		keep(os.Rename(pf.path+".part", pf.path))
	}
	w.files = map[string]*paramsFile{}
	if first != nil {
		return perr.Wrapf(first, perr.ErrorCodeUnknown, "close parameters writer")
	}
	return nil
}

// Abort discards the .part files after a failed dry run
func (w *ParamsWriter) Abort() {
	for _, pf := range w.files {
		_ = pf.f.Close()
		_ = os.Remove(pf.path + ".part")
	}
	w.files = map[string]*paramsFile{}
}

func (w *ParamsWriter) ensure(job domain.Job) (*paramsFile, error) {
	key := job.Period + "/" + job.ModeLabel()
	if pf, ok := w.files[key]; ok {
		return pf, nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create parameters dir %s", w.dir)
	}
	stamp := job.Travel.Format(ptime.CompactStamp)
	name := job.Period + "_" + job.ModeLabel() + "_parameters_" + stamp + ".jsonl"
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path + ".part")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create parameters file %s", path)
	}
	pf := &paramsFile{path: path, f: f, enc: json.NewEncoder(f)}
	w.files[key] = pf
	return pf, nil
}

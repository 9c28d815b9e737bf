package service

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/services/isochrone/domain"
)

// responsesDirName is the isochrone output tree relative to the run folder
const responsesDirName = "Responses"

// ResponseWriter appends one "<url>, <body>" line per answered request
// to Responses/<stamp>/<MODES>/isochrones.jsonl. Safe for concurrent
// use; lines are flushed as written so an interrupted batch leaves
// valid partial files
type ResponseWriter struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
	stats WriterStats
}

// WriterStats tallies consumed results by kind
type WriterStats struct {
	Answered int
	Errored  int
}

// NewResponseWriter creates a writer for one batch stamp under runDir
func NewResponseWriter(runDir, stamp string) *ResponseWriter {
	return &ResponseWriter{
		dir:   filepath.Join(runDir, responsesDirName, stamp),
		files: map[string]*os.File{},
	}
}

// Consume implements domain.ResponseSink. Errored requests are only
// counted; the attempt trail has already been logged by the worker
func (w *ResponseWriter) Consume(res domain.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if res.Errored {
		w.stats.Errored++
		return nil
	}
	f, err := w.ensure(res.Request.ModeLabel())
	if err != nil {
		return err
	}

	line := make([]byte, 0, len(res.URL)+2+len(res.Raw)+1)
	line = append(line, res.URL...)
	line = append(line, ", "...)
	line = append(line, res.Raw...)
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write isochrone response")
	}
	w.stats.Answered++
	return nil
}

// Stats reports the tallies so far
func (w *ResponseWriter) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Paths lists the response files written, sorted
func (w *ResponseWriter) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.files))
	for _, f := range w.files {
		paths = append(paths, f.Name())
	}
	slices.Sort(paths)
	return paths
}

// Close closes every open file, returning the first error
func (w *ResponseWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var first error
	for _, f := range w.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	w.files = map[string]*os.File{}
	if first != nil {
		return perr.Wrapf(first, perr.ErrorCodeUnknown, "close isochrone writer")
	}
	return nil
}

func (w *ResponseWriter) ensure(label string) (*os.File, error) {
	if f, ok := w.files[label]; ok {
		return f, nil
	}
	dir := filepath.Join(w.dir, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create isochrone dir %s", dir)
	}
	path := filepath.Join(dir, "isochrones.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeStartup, "create isochrone file %s", path)
	}
	w.files[label] = f
	return f, nil
}

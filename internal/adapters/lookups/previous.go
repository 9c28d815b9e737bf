package lookups

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	perr "otp4gb/internal/platform/errors"
)

// PreviousTrips indexes a prior run's cost matrix rows so finished
// (origin, destination, period, modes) combinations can be replayed
// instead of re-requested. Errored rows (empty itinerary count) are not
// considered successful and will be re-queried on resume
type PreviousTrips struct {
	rows map[string][]string
}

// LoadPrevious accepts either a single matrix CSV (costs/<period>/
// <MODES>_costs_<ts>.csv) or a costs directory tree and indexes every
// matrix file found
func LoadPrevious(path string) (*PreviousTrips, error) {
	p := &PreviousTrips{rows: map[string][]string{}}

	info, err := statPath(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if err := p.indexFile(path); err != nil {
			return nil, err
		}
		return p, nil
	}

	walkErr := filepath.WalkDir(path, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMatrixFile(fp) {
			return nil
		}
		return p.indexFile(fp)
	})
	if walkErr != nil {
		return nil, perr.Wrapf(walkErr, perr.ErrorCodeValidation, "walk previous trips %s", path)
	}
	return p, nil
}

// Len returns the number of indexed rows
func (p *PreviousTrips) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rows)
}

// Successful reports whether a prior run finished this combination,
// including legitimate zero-itinerary outcomes
func (p *PreviousTrips) Successful(origin, destination, period, modes string) bool {
	if p == nil {
		return false
	}
	rec, ok := p.rows[tripKey(origin, destination, period, modes)]
	if !ok {
		return false
	}
	// field 2 is number_itineraries; empty means the request errored
	return len(rec) > 2 && strings.TrimSpace(rec[2]) != ""
}

// Row returns the stored matrix fields for replay into a new sink
func (p *PreviousTrips) Row(origin, destination, period, modes string) ([]string, bool) {
	if p == nil {
		return nil, false
	}
	rec, ok := p.rows[tripKey(origin, destination, period, modes)]
	return rec, ok
}

func (p *PreviousTrips) indexFile(path string) error {
	period, modes, ok := matrixFileKey(path)
	if !ok {
		return perr.Validationf(
			"previous trips %s: expected costs/<period>/<MODES>_costs_<ts>.csv", path)
	}
	header, rows, err := readCSV(path)
	if err != nil {
		return err
	}
	oi, err := columnIndex(path, header, "origin")
	if err != nil {
		return err
	}
	di, err := columnIndex(path, header, "destination")
	if err != nil {
		return err
	}
	for _, rec := range rows {
		o := strings.TrimSpace(rec[oi])
		d := strings.TrimSpace(rec[di])
		if o == "" || d == "" {
			continue
		}
		p.rows[tripKey(o, d, period, modes)] = rec
	}
	return nil
}

// matrixFileKey recovers (period, modes) from a matrix file path:
// the period is the parent directory, the modes the part of the file
// name before _costs_
func matrixFileKey(path string) (period, modes string, ok bool) {
	if !isMatrixFile(path) {
		return "", "", false
	}
	base := filepath.Base(path)
	modes = base[:strings.Index(base, "_costs_")]
	period = filepath.Base(filepath.Dir(path))
	if modes == "" || period == "" || period == "." {
		return "", "", false
	}
	return period, modes, true
}

func isMatrixFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".csv") && strings.Contains(base, "_costs_")
}

func statPath(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "previous trips %s", path)
	}
	return info, nil
}

func tripKey(origin, destination, period, modes string) string {
	return origin + "|" + destination + "|" + period + "|" + modes
}

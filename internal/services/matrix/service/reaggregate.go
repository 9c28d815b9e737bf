package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"otp4gb/internal/adapters/centroids"
	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/core/geo"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/services/matrix/domain"
)

// Reaggregator rebuilds matrix rows from persisted raw response files
// without touching an engine. Row identity comes back out of the
// request URL: fromPlace and toPlace are matched against the loaded
// centroids, endpoints no centroid sits on keep their coordinate
// string as id. Raw archives only hold answered requests, so replayed
// matrices carry no errored rows
type Reaggregator struct {
	Zones *centroids.Data
	Agg   Aggregator
}

// File replays one raw responses file into outPath, written atomically.
// The output is deterministic for a given input file and centroid set
func (r *Reaggregator) File(rawPath, outPath string) (int, error) {
	in, closeIn, err := openRaw(rawPath)
	if err != nil {
		return 0, err
	}
	defer closeIn()

	part := outPath + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeStartup, "create matrix file %s", outPath)
	}
	defer func() { _ = out.Close() }()

	w := csv.NewWriter(out)
	if err := w.Write(matrixHeader); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnknown, "write matrix header %s", outPath)
	}

	rd := bufio.NewReader(in)
	rows, unmatched := 0, 0
	for lineNo := 1; ; lineNo++ {
		line, rerr := rd.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			row, miss, err := r.row(line)
			if err != nil {
				return rows, perr.Wrapf(err, perr.CodeOf(err), "%s line %d", rawPath, lineNo)
			}
			unmatched += miss
			if err := w.Write(formatRow(row)); err != nil {
				return rows, perr.Wrapf(err, perr.ErrorCodeUnknown, "write matrix row %s", outPath)
			}
			rows++
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rows, perr.Wrapf(rerr, perr.ErrorCodeUnknown, "read %s line %d", rawPath, lineNo)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, perr.Wrapf(err, perr.ErrorCodeUnknown, "flush matrix file %s", outPath)
	}
	if err := out.Close(); err != nil {
		return rows, perr.Wrapf(err, perr.ErrorCodeUnknown, "close matrix file %s", outPath)
	}
	if err := os.Rename(part, outPath); err != nil {
		return rows, perr.Wrapf(err, perr.ErrorCodeUnknown, "finalise matrix file %s", outPath)
	}

	if unmatched > 0 {
		logger.Named("matrix").Warn().
			Str("path", rawPath).
			Int("endpoints", unmatched).
			Msg("request endpoints not matching any centroid, kept as coordinates")
	}
	return rows, nil
}

// row parses one "<url>, <body>" line into a matrix row. miss counts
// endpoints that matched no centroid
func (r *Reaggregator) row(line []byte) (row domain.CostMatrixRow, miss int, err error) {
	line = bytes.TrimRight(line, "\r\n")
	sep := bytes.Index(line, []byte(", "))
	if sep < 0 {
		return row, 0, perr.Validationf("raw line missing the url separator")
	}
	rawURL := string(line[:sep])
	body := line[sep+2:]

	origin, dest, miss, err := r.endpoints(rawURL)
	if err != nil {
		return row, miss, err
	}
	var resp engine.PlanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return row, miss, perr.Wrapf(err, perr.ErrorCodeJSON, "decode raw response body")
	}

	res := domain.Result{
		Job:      domain.Job{OriginID: origin, DestinationID: dest},
		Response: resp,
	}
	return r.Agg.Row(res), miss, nil
}

func (r *Reaggregator) endpoints(rawURL string) (origin, dest string, miss int, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", 0, perr.Wrapf(err, perr.ErrorCodeValidation, "parse request url")
	}
	q := u.Query()

	origin, ok, err := r.zoneID(q.Get("fromPlace"))
	if err != nil {
		return "", "", 0, err
	}
	if !ok {
		miss++
	}
	dest, ok, err = r.zoneID(q.Get("toPlace"))
	if err != nil {
		return "", "", miss, err
	}
	if !ok {
		miss++
	}
	return origin, dest, miss, nil
}

// zoneID maps a "lat,lon" query value back onto a zone id
func (r *Reaggregator) zoneID(latLon string) (id string, matched bool, err error) {
	latStr, lonStr, found := strings.Cut(latLon, ",")
	if !found {
		return "", false, perr.Validationf("bad place %q in request url", latLon)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return "", false, perr.Validationf("bad latitude %q in request url", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return "", false, perr.Validationf("bad longitude %q in request url", lonStr)
	}
	if r.Zones != nil {
		if z, ok := r.Zones.ByPoint(geo.Point{Lat: lat, Lon: lon}); ok {
			return z.ID, true, nil
		}
	}
	return latLon, false, nil
}

// openRaw opens a raw responses file, transparently ungzipping .gz
func openRaw(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open raw responses %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, func() { _ = f.Close() }, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeValidation, "open gzip %s", path)
	}
	return gz, func() { _ = gz.Close(); _ = f.Close() }, nil
}

// rawFileKey recovers (period, modes, stamp) from a raw responses path
// shaped costs/<period>/<MODES>_responses_<stamp>.jsonl[.gz]
func rawFileKey(path string) (period, modes, stamp string, ok bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".jsonl")
	i := strings.Index(base, "_responses_")
	if i <= 0 {
		return "", "", "", false
	}
	modes = base[:i]
	stamp = base[i+len("_responses_"):]
	period = filepath.Base(filepath.Dir(path))
	if stamp == "" || period == "" || period == "." {
		return "", "", "", false
	}
	return period, modes, stamp, true
}

// Package centroids loads zone centroid sets from CSV. Zone names are
// NFC-normalised on the way in so ids and names compare stably however
// the source file was produced
package centroids

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"otp4gb/internal/core/geo"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
)

// Columns names the CSV columns a centroid file carries. ID, Lat and
// Lon are required in the file; Name and System are optional
type Columns struct {
	ID     string
	Name   string
	System string
	Lat    string
	Lon    string
}

// DefaultColumns matches the standard zone centroid export
func DefaultColumns() Columns {
	return Columns{
		ID:     "zone_id",
		Name:   "zone_name",
		System: "zone_system",
		Lat:    "latitude",
		Lon:    "longitude",
	}
}

// Zone is one centroid, immutable after load
type Zone struct {
	ID     string
	Name   string
	System string
	Point  geo.Point
}

// Data holds the origin and destination zone sets. Destinations default
// to the origin set when no separate file is supplied
type Data struct {
	Origins      []Zone
	Destinations []Zone

	byKey map[string]Zone
}

// Load reads the origin centroid CSV and, when destPath is non-empty, a
// separate destination CSV with the same column layout. Zones outside
// extents are dropped when extents is non-nil
func Load(originPath, destPath string, cols Columns, extents *geo.Bounds) (*Data, error) {
	log := logger.Named("centroids")

	origins, err := readFile(originPath, cols, extents)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", originPath).Int("zones", len(origins)).Msg("loaded origin centroids")

	dests := origins
	if destPath != "" {
		dests, err = readFile(destPath, cols, extents)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", destPath).Int("zones", len(dests)).Msg("loaded destination centroids")
	}

	d := &Data{Origins: origins, Destinations: dests, byKey: map[string]Zone{}}
	for _, z := range origins {
		d.byKey[pointKey(z.Point)] = z
	}
	for _, z := range dests {
		d.byKey[pointKey(z.Point)] = z
	}
	return d, nil
}

// ByPoint recovers the zone whose centroid sits exactly at p. Used to
// re-derive job identity from persisted request URLs
func (d *Data) ByPoint(p geo.Point) (Zone, bool) {
	z, ok := d.byKey[pointKey(p)]
	return z, ok
}

func readFile(path string, cols Columns, extents *geo.Bounds) ([]Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open centroids %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "read centroids header %s", path)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	required := map[string]string{"id": cols.ID, "latitude": cols.Lat, "longitude": cols.Lon}
	for what, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, perr.Validationf(
				"centroids %s missing %s column %q, file has %s",
				path, what, name, strings.Join(header, ", "))
		}
	}

	var (
		zones   []Zone
		skipped int
	)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "read centroids %s line %d", path, line)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[cols.Lat]]), 64)
		if err != nil {
			return nil, perr.Validationf("centroids %s line %d: bad latitude %q", path, line, rec[idx[cols.Lat]])
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[cols.Lon]]), 64)
		if err != nil {
			return nil, perr.Validationf("centroids %s line %d: bad longitude %q", path, line, rec[idx[cols.Lon]])
		}

		z := Zone{
			ID:    norm.NFC.String(strings.TrimSpace(rec[idx[cols.ID]])),
			Point: geo.Point{Lat: lat, Lon: lon},
		}
		if i, ok := idx[cols.Name]; ok && cols.Name != "" {
			z.Name = norm.NFC.String(strings.TrimSpace(rec[i]))
		}
		if i, ok := idx[cols.System]; ok && cols.System != "" {
			z.System = strings.TrimSpace(rec[i])
		}
		if z.ID == "" {
			return nil, perr.Validationf("centroids %s line %d: empty zone id", path, line)
		}

		if extents != nil && !extents.Contains(z.Point) {
			skipped++
			continue
		}
		zones = append(zones, z)
	}

	if skipped > 0 {
		logger.Named("centroids").Info().
			Str("path", path).
			Int("outside_extents", skipped).
			Msg("dropped centroids outside extents")
	}
	if len(zones) == 0 {
		return nil, perr.Validationf("centroids %s: no zones inside extents", path)
	}
	return zones, nil
}

func pointKey(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

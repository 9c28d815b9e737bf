package service

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/runconfig"
)

// zipDir packs the contents of srcDir into destZip, written atomically.
// Paths inside the archive are relative to srcDir, the layout the
// engine expects of a GTFS feed
func zipDir(srcDir, destZip string) error {
	part := destZip + ".part"
	out, err := os.Create(part)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create archive %s", destZip)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return perr.Wrapf(err, perr.ErrorCodeStartup, "pack archive %s", destZip)
	}
	if err := zw.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "close archive %s", destZip)
	}
	if err := out.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "close archive %s", destZip)
	}
	if err := os.Rename(part, destZip); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "finalise archive %s", destZip)
	}
	return nil
}

// boundsArg renders the timetable filter's minLat:minLon:maxLat:maxLon
// location argument
func boundsArg(p *runconfig.ProcessConfig) string {
	b := p.Extents
	return formatCoord(b.MinLat) + ":" + formatCoord(b.MinLon) + ":" +
		formatCoord(b.MaxLat) + ":" + formatCoord(b.MaxLon)
}

// formatBox renders osmconvert's comma-joined -b box
func formatBox(vals ...float64) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += formatCoord(v)
	}
	return out
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

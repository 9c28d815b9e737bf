// Package lookups loads the optional side tables that tune the job
// builder: rural-urban classification, irrelevant destinations and
// previous-trip results
package lookups

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	perr "otp4gb/internal/platform/errors"
)

// readCSV loads a whole CSV with its header, trimming a UTF-8 BOM
func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open lookup %s", path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeValidation, "read lookup header %s", path)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, perr.Wrapf(err, perr.ErrorCodeValidation, "read lookup %s", path)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// columnIndex finds a required column or errors listing what the file has
func columnIndex(path string, header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, perr.Validationf("lookup %s missing column %q, file has %s",
		path, name, strings.Join(header, ", "))
}

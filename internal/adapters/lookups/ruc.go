package lookups

import "strings"

// RUC maps zone ids to rural-urban classification codes and scales the
// crow-fly pre-filter distance by a per-code weight
type RUC struct {
	codes   map[string]string
	weights map[string]float64
}

// DefaultRUCWeights rises with rurality so rural origins keep a larger
// crow-fly search radius
func DefaultRUCWeights() map[string]float64 {
	return map[string]float64{
		"A1": 1,
		"B1": 1,
		"C1": 1,
		"C2": 1.1,
		"D1": 1.2,
		"D2": 1.3,
		"E1": 1.4,
		"E2": 1.5,
	}
}

// LoadRUC reads a zone_id,ruc CSV. A nil weights map falls back to
// DefaultRUCWeights
func LoadRUC(path string, weights map[string]float64) (*RUC, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	idi, err := columnIndex(path, header, "zone_id")
	if err != nil {
		return nil, err
	}
	ruci, err := columnIndex(path, header, "ruc")
	if err != nil {
		return nil, err
	}

	if weights == nil {
		weights = DefaultRUCWeights()
	}
	codes := make(map[string]string, len(rows))
	for _, rec := range rows {
		id := strings.TrimSpace(rec[idi])
		if id == "" {
			continue
		}
		codes[id] = strings.ToUpper(strings.TrimSpace(rec[ruci]))
	}
	return &RUC{codes: codes, weights: weights}, nil
}

// Factor returns the distance multiplier for a zone. Unknown zones,
// unknown codes and a nil lookup all weigh 1
func (r *RUC) Factor(zoneID string) float64 {
	if r == nil {
		return 1
	}
	w, ok := r.weights[r.codes[zoneID]]
	if !ok {
		return 1
	}
	return w
}

package lookups

import "strings"

// Irrelevant flags (origin, destination) pairs that should never be
// requested
type Irrelevant struct {
	pairs map[string]map[string]bool
}

// LoadIrrelevant reads an origin,destination CSV of pairs to skip
func LoadIrrelevant(path string) (*Irrelevant, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	oi, err := columnIndex(path, header, "origin")
	if err != nil {
		return nil, err
	}
	di, err := columnIndex(path, header, "destination")
	if err != nil {
		return nil, err
	}

	pairs := map[string]map[string]bool{}
	for _, rec := range rows {
		o := strings.TrimSpace(rec[oi])
		d := strings.TrimSpace(rec[di])
		if o == "" || d == "" {
			continue
		}
		if pairs[o] == nil {
			pairs[o] = map[string]bool{}
		}
		pairs[o][d] = true
	}
	return &Irrelevant{pairs: pairs}, nil
}

// Skip reports whether the pair is flagged irrelevant; nil lookups skip
// nothing
func (l *Irrelevant) Skip(origin, destination string) bool {
	if l == nil {
		return false
	}
	return l.pairs[origin][destination]
}

// Len returns the number of flagged pairs
func (l *Irrelevant) Len() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, m := range l.pairs {
		n += len(m)
	}
	return n
}

package runconfig

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"otp4gb/internal/core/geo"
	perr "otp4gb/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// BoundsFileName lives in the shared config directory and maps bounds
// names to extents for the -bounds override
const BoundsFileName = "bounds.yml"

// LoadBounds reads the named extents available for overriding a run
// config's extents from the command line
func LoadBounds(confDir string) (map[string]geo.Bounds, error) {
	path := filepath.Join(confDir, BoundsFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "read bounds file %s", path)
	}

	var out map[string]geo.Bounds
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "parse %s", path)
	}
	for name, b := range out {
		if err := b.Check(); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "bounds %q", name)
		}
	}
	return out, nil
}

// OverrideExtents replaces the configured extents with a named bounds.yml
// entry. Unknown names error with the list of known ones
func (c *ProcessConfig) OverrideExtents(bounds map[string]geo.Bounds, name string) error {
	b, ok := bounds[name]
	if !ok {
		known := slices.Sorted(maps.Keys(bounds))
		return perr.NotFoundf(
			"unknown bounds %q, should be one of: %s", name, strings.Join(known, ", "))
	}
	c.Extents = b
	return nil
}

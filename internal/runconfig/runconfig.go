// Package runconfig loads and validates the per-run YAML configuration:
// config.yml inside each run folder, the shared bounds.yml overrides, and
// the build-config.json handed to the engine's graph builder
package runconfig

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/core/cost"
	"otp4gb/internal/core/geo"
	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/platform/net/http/bind"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the run config expected inside every run folder
const ConfigFileName = "config.yml"

// Scalar layouts accepted in run configs
const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04"
	clockLayout    = "15:04"
)

// Fallback values applied after decode
const (
	defaultMaxWalkDistance = 2500
	defaultHostname        = "localhost"
	defaultPort            = 8080
)

var (
	tzOnce sync.Once
	tz     *time.Location
)

// Timezone returns the zone travel times are localised in. The network
// data is GB-wide, so Europe/London; falls back to the system zone when
// tzdata is unavailable
func Timezone() *time.Location {
	tzOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/London")
		if err != nil {
			logger.Named("runconfig").Warn().Err(err).
				Msg("Europe/London unavailable, using system timezone")
			loc = time.Local
		}
		tz = loc
	})
	return tz
}

// Date is a calendar date in ISO form (2024-04-15)
type Date struct{ time.Time }

// ParseDate parses an ISO calendar date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, perr.Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// UnmarshalYAML decodes a scalar date node
func (d *Date) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseDate(n.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Date) String() string { return d.Format(dateLayout) }

// DateTime is a wall clock instant (2023-04-12 10:19) in the run timezone
type DateTime struct{ time.Time }

// UnmarshalYAML decodes a scalar datetime node
func (d *DateTime) UnmarshalYAML(n *yaml.Node) error {
	t, err := time.ParseInLocation(datetimeLayout, strings.TrimSpace(n.Value), Timezone())
	if err != nil {
		return perr.Validationf("invalid datetime %q, expected YYYY-MM-DD HH:MM", n.Value)
	}
	d.Time = t
	return nil
}

func (d DateTime) String() string { return d.Format(datetimeLayout) }

// TimePeriod is one departure or arrival window to route
type TimePeriod struct {
	Name                string `yaml:"name" validate:"required"`
	TravelTime          string `yaml:"travel_time" validate:"required,hhmm"`
	SearchWindowMinutes *int   `yaml:"search_window_minutes" validate:"omitempty,min=1"`
}

// At pins the period's wall clock onto a calendar date in the run timezone
func (p TimePeriod) At(date Date) (time.Time, error) {
	t, err := time.Parse(clockLayout, p.TravelTime)
	if err != nil {
		return time.Time{}, perr.Validationf(
			"time period %s: invalid travel_time %q", p.Name, p.TravelTime)
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, Timezone(),
	), nil
}

// SearchWindow converts the optional window to a duration, zero when unset
func (p TimePeriod) SearchWindow() time.Duration {
	if p.SearchWindowMinutes == nil {
		return 0
	}
	return time.Duration(*p.SearchWindowMinutes) * time.Minute
}

// IsochroneConfig is the isochrone block carried inline in ProcessConfig
type IsochroneConfig struct {
	Centroids     string          `yaml:"iso_centroids" validate:"required"`
	LatColumn     string          `yaml:"iso_lat_col" validate:"required"`
	LonColumn     string          `yaml:"iso_long_col" validate:"required"`
	IDColumn      string          `yaml:"iso_id_col" validate:"required"`
	Datetime      DateTime        `yaml:"iso_datetime" validate:"required"`
	CutoffSeconds []int           `yaml:"cutoffs" validate:"required,min=1,dive,min=1"`
	Modes         [][]engine.Mode `yaml:"iso_modes" validate:"required,min=1"`
}

// Cutoffs converts the configured cutoff seconds into durations
func (c IsochroneConfig) Cutoffs() []time.Duration {
	out := make([]time.Duration, len(c.CutoffSeconds))
	for i, s := range c.CutoffSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// ProcessConfig is the parsed and validated config.yml for one run folder.
// Field names match the historical config schema, including the
// iterinary_aggregation_method spelling, so existing run folders keep
// working unchanged
type ProcessConfig struct {
	Date        Date            `yaml:"date" validate:"required"`
	Extents     geo.Bounds      `yaml:"extents" validate:"required"`
	OSMFile     string          `yaml:"osm_file" validate:"required"`
	GTFSFiles   []string        `yaml:"gtfs_files" validate:"required,min=1,dive,required"`
	TimePeriods []TimePeriod    `yaml:"time_periods" validate:"required,min=1,dive"`
	Modes       [][]engine.Mode `yaml:"modes" validate:"required,min=1"`

	GeneralisedCostFactors cost.Factors     `yaml:"generalised_cost_factors"`
	Centroids              string           `yaml:"centroids" validate:"required"`
	DestinationCentroids   string           `yaml:"destination_centroids"`
	AggregationMethod      cost.Aggregation `yaml:"iterinary_aggregation_method"`
	MaxWalkDistance        int              `yaml:"max_walk_distance" validate:"min=0"`
	NumberOfThreads        int              `yaml:"number_of_threads" validate:"min=0,max=10"`

	NoServer bool   `yaml:"no_server"`
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`

	CrowflyMaxDistance     *float64 `yaml:"crowfly_max_distance" validate:"omitempty,min=0"`
	RUCLookup              string   `yaml:"ruc_lookup"`
	IrrelevantDestinations string   `yaml:"irrelevant_destinations"`
	PreviousTrips          string   `yaml:"previous_trips"`
	WriteRawResponses      bool     `yaml:"write_raw_responses"`
	ArriveBy               *bool    `yaml:"arrive_by"`

	Isochrones IsochroneConfig `yaml:",inline"`
}

// Load reads and validates <folder>/config.yml
func Load(folder string) (*ProcessConfig, error) {
	path := filepath.Join(folder, ConfigFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "read run config %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var cfg ProcessConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, perr.Validationf("run config %s is empty", path)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "parse %s", path)
	}

	if err := bind.Get().Validator.Struct(cfg); err != nil {
		msgs := bind.ValidationMessages(err)
		return nil, perr.Validationf("%s: %s", path, strings.Join(msgs, "; "))
	}
	if err := cfg.normalise(); err != nil {
		return nil, perr.Wrapf(err, perr.CodeOf(err), "%s", path)
	}

	logger.Named("runconfig").Debug().
		Str("path", path).
		Str("date", cfg.Date.String()).
		Int("time_periods", len(cfg.TimePeriods)).
		Int("mode_combinations", len(cfg.Modes)).
		Msg("run config loaded")
	return &cfg, nil
}

// normalise applies defaults and canonicalises enum-like fields after the
// struct validation pass
func (c *ProcessConfig) normalise() error {
	if err := c.Extents.Check(); err != nil {
		return err
	}
	if err := normaliseModes(c.Modes, "modes"); err != nil {
		return err
	}
	if err := normaliseModes(c.Isochrones.Modes, "iso_modes"); err != nil {
		return err
	}

	if c.AggregationMethod == "" {
		c.AggregationMethod = cost.AggregationMean
	}
	agg, err := cost.ParseAggregation(string(c.AggregationMethod))
	if err != nil {
		return err
	}
	c.AggregationMethod = agg

	if c.GeneralisedCostFactors == (cost.Factors{}) {
		c.GeneralisedCostFactors = cost.DefaultFactors()
	}
	if c.MaxWalkDistance == 0 {
		c.MaxWalkDistance = defaultMaxWalkDistance
	}
	if strings.TrimSpace(c.Hostname) == "" {
		c.Hostname = defaultHostname
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.ArriveBy == nil {
		arrive := true
		c.ArriveBy = &arrive
	}
	c.DestinationCentroids = strings.TrimSpace(c.DestinationCentroids)
	return nil
}

// normaliseModes upper-cases mode tokens in place and rejects unknown ones
func normaliseModes(combos [][]engine.Mode, field string) error {
	for i, combo := range combos {
		if len(combo) == 0 {
			return perr.Validationf("%s[%d] is empty", field, i)
		}
		for j, m := range combo {
			parsed, err := engine.ParseMode(string(m))
			if err != nil {
				return err
			}
			combos[i][j] = parsed
		}
	}
	return nil
}

// EngineBaseURL is the routing engine address derived from hostname + port
func (c *ProcessConfig) EngineBaseURL() string {
	return "http://" + net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

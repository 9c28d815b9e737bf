// Package service implements the matrix pipeline: job building with
// pre-filters, dispatch against the engine, cost aggregation and the
// file sinks
package service

import (
	"iter"
	"time"

	"otp4gb/internal/adapters/centroids"
	"otp4gb/internal/adapters/engine"
	"otp4gb/internal/adapters/lookups"
	"otp4gb/internal/core/geo"
	"otp4gb/internal/platform/logger"
	"otp4gb/internal/services/matrix/domain"
)

// Period is a configured time period resolved onto the run date
type Period struct {
	Name                string
	Travel              time.Time
	SearchWindowSeconds int
}

// BuilderOptions configure the cross-product expansion and its
// pre-filters. Nil lookups disable the corresponding filter
type BuilderOptions struct {
	Periods  []Period
	Modes    [][]engine.Mode
	ArriveBy bool

	MaxWalkDistanceMeters float64

	// SkipSelfPairs drops origin == destination jobs instead of asking
	// the engine for a zero-length trip
	SkipSelfPairs bool

	// CrowflyMaxKm drops pairs further apart than this straight-line
	// distance, scaled per origin zone by the RUC weight
	CrowflyMaxKm *float64
	RUC          *lookups.RUC

	Irrelevant *lookups.Irrelevant
	Previous   *lookups.PreviousTrips
}

// Builder expands origins x destinations x periods x modes into
// dispatchable jobs, origin-major, applying the configured filters.
// Not safe for concurrent use; iterate Jobs once and read Counts after
type Builder struct {
	zones  *centroids.Data
	opts   BuilderOptions
	counts domain.BuildCounts
	reuse  func(job domain.Job, fields []string) error
	log    *logger.Logger
}

// NewBuilder creates a Builder over the loaded zones
func NewBuilder(zones *centroids.Data, opts BuilderOptions) *Builder {
	return &Builder{
		zones: zones,
		opts:  opts,
		log:   logger.Named("matrix"),
	}
}

// OnReuse registers the sink callback that receives replayed rows for
// jobs satisfied by a previous run. Without a callback reusable jobs
// are still skipped, which is what the dry-run wants
func (b *Builder) OnReuse(fn func(job domain.Job, fields []string) error) {
	b.reuse = fn
}

// Counts reports the tallies of the last Jobs iteration
func (b *Builder) Counts() domain.BuildCounts { return b.counts }

// Jobs yields the filtered cross-product in submission order: all
// variants of one origin before the next, destinations within an
// origin, periods within a destination, mode combinations within a
// period. Skip counts are in jobs, so a filtered pair accounts for
// every period and mode variant it would have produced
func (b *Builder) Jobs() iter.Seq[domain.Job] {
	perPair := len(b.opts.Periods) * len(b.opts.Modes)
	return func(yield func(domain.Job) bool) {
		b.counts = domain.BuildCounts{}
		for _, o := range b.zones.Origins {
			for _, d := range b.zones.Destinations {
				if b.opts.SkipSelfPairs && o.ID == d.ID {
					b.counts.SelfPairs += perPair
					continue
				}
				if b.skipCrowFly(o, d) {
					b.counts.CrowFly += perPair
					continue
				}
				if b.opts.Irrelevant.Skip(o.ID, d.ID) {
					b.counts.Irrelevant += perPair
					continue
				}
				for _, p := range b.opts.Periods {
					for _, modes := range b.opts.Modes {
						job := b.job(o, d, p, modes)
						if b.reusePrevious(job) {
							b.counts.Reused++
							continue
						}
						b.counts.Built++
						if !yield(job) {
							return
						}
					}
				}
			}
		}
	}
}

func (b *Builder) job(o, d centroids.Zone, p Period, modes []engine.Mode) domain.Job {
	return domain.Job{
		OriginID:              o.ID,
		OriginName:            o.Name,
		Origin:                o.Point,
		DestinationID:         d.ID,
		DestinationName:       d.Name,
		Destination:           d.Point,
		Period:                p.Name,
		Modes:                 modes,
		Travel:                p.Travel,
		ArriveBy:              b.opts.ArriveBy,
		SearchWindowSeconds:   p.SearchWindowSeconds,
		MaxWalkDistanceMeters: b.opts.MaxWalkDistanceMeters,
	}
}

func (b *Builder) skipCrowFly(o, d centroids.Zone) bool {
	if b.opts.CrowflyMaxKm == nil {
		return false
	}
	maxKm := *b.opts.CrowflyMaxKm * b.opts.RUC.Factor(o.ID)
	return geo.CrowFlyKm(o.Point, d.Point) > maxKm
}

// reusePrevious replays a finished row from a prior run into the sink
// instead of dispatching. A failed replay falls back to dispatching the
// job so the output stays complete
func (b *Builder) reusePrevious(job domain.Job) bool {
	prev := b.opts.Previous
	if prev == nil {
		return false
	}
	if !prev.Successful(job.OriginID, job.DestinationID, job.Period, job.ModeLabel()) {
		return false
	}
	if b.reuse == nil {
		return true
	}
	fields, _ := prev.Row(job.OriginID, job.DestinationID, job.Period, job.ModeLabel())
	if err := b.reuse(job, fields); err != nil {
		b.log.Warn().Err(err).
			Str("origin", job.OriginID).
			Str("destination", job.DestinationID).
			Msg("replaying previous trip failed, re-requesting")
		return false
	}
	return true
}

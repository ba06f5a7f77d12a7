package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
	"github.com/Benedict-Hyland/weather-modelling/internal/observability"
)

// Decoder extracts the slices selected by one VariableSpec from an archive
// file. Implementations wrap either the wgrib2 tool or the in-process GRIB
// reader; the driver never depends on which.
type Decoder interface {
	Name() string
	Extract(ctx context.Context, file string, spec domain.VariableSpec) ([]*grid.Dataset, error)
}

// Driver iterates the VariableSpec registry against resolved archive files
// and collects the decoded slices. The registry is read-only after
// construction; per-job state lives in the consumed set the caller owns.
type Driver struct {
	dec     Decoder
	specs   []domain.VariableSpec
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewDriver(dec Decoder, mode domain.LevelMode, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{
		dec:     dec,
		specs:   domain.Registry(mode),
		logger:  logger,
		metrics: metrics,
	}
}

// ExtractAll runs every registry spec for the given bucket against the file
// set. A non-mandatory variable that fails to resolve or decode is skipped
// with a diagnostic; a mandatory one fails the job. The consumed set tracks
// first-step-only specs across calls within one job so a static field is
// pulled exactly once.
func (d *Driver) ExtractAll(ctx context.Context, files domain.ArchiveFileSet, bucket domain.Bucket, consumed map[string]bool) ([]*grid.Dataset, error) {
	return d.extract(ctx, files, func(s domain.VariableSpec) bool { return s.Bucket == bucket }, consumed)
}

// ExtractCycleStep pulls the per-key variable set of the two-cycle merge
// path: every analysis field plus the static surface fields, regardless of
// which lead bucket the key falls in. GDAS carries all of them in every
// forecast-hour file, so a pair keyed in the accumulation lead range still
// yields the full dynamical set.
func (d *Driver) ExtractCycleStep(ctx context.Context, files domain.ArchiveFileSet, consumed map[string]bool) ([]*grid.Dataset, error) {
	return d.extract(ctx, files, cycleStepSpec, consumed)
}

func cycleStepSpec(s domain.VariableSpec) bool {
	if s.Bucket == domain.BucketAnalysis {
		return true
	}
	for _, v := range s.Vars {
		if canonical, ok := domain.CanonicalName(v.Source); ok && domain.IsStatic(canonical) {
			return true
		}
	}
	return false
}

func (d *Driver) extract(ctx context.Context, files domain.ArchiveFileSet, include func(domain.VariableSpec) bool, consumed map[string]bool) ([]*grid.Dataset, error) {
	var parts []*grid.Dataset

	for _, spec := range d.specs {
		if !include(spec) {
			continue
		}
		if spec.FirstStepOnly && consumed[spec.Key()] {
			continue
		}

		file, err := files.Require(spec.Family)
		if err != nil {
			if handled := d.skipOrFail(spec, err); handled != nil {
				return nil, handled
			}
			continue
		}

		start := time.Now()
		slices, err := d.dec.Extract(ctx, file, spec)
		d.metrics.ExtractDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			d.metrics.DecodeErrors.WithLabelValues(d.dec.Name()).Inc()
			if handled := d.skipOrFail(spec, err); handled != nil {
				return nil, handled
			}
			continue
		}

		for _, s := range slices {
			applyConversions(s, spec)
		}
		d.metrics.SlicesExtracted.Add(float64(len(slices)))
		if spec.FirstStepOnly {
			consumed[spec.Key()] = true
		}
		parts = append(parts, slices...)
	}
	return parts, nil
}

// skipOrFail implements the mandatory-variable policy: a returned error
// means the job must fail, nil means the variable was skipped.
func (d *Driver) skipOrFail(spec domain.VariableSpec, err error) error {
	if spec.Mandatory {
		return fmt.Errorf("extract %s: %w", spec.Selector, err)
	}
	d.logger.Warn("skipping variable", "selector", spec.Selector, "family", spec.Family, "error", err)
	d.metrics.VariablesSkipped.Inc()
	return nil
}

// applyConversions scales each decoded array by its variable's unit
// conversion factor.
func applyConversions(ds *grid.Dataset, spec domain.VariableSpec) {
	for name, a := range ds.Vars {
		if id, ok := varIDFor(spec, name); ok {
			a.Scale(id.Scale)
		}
	}
}

// varIDFor matches a decoder-emitted array name against the spec's variable
// table. Both backends emit the bare short name for isobaric groups; wgrib2
// names single-level output per spec ("TMP_2maboveground") and per-level
// isobaric records "TMP_500mb". Only the names the spec can produce match,
// so a stray record at an unrequested level is never converted.
func varIDFor(spec domain.VariableSpec, name string) (domain.VarID, bool) {
	for _, id := range spec.Vars {
		if name == id.Source {
			return id, true
		}
	}
	if spec.LevelKind != domain.LevelIsobaric {
		return domain.VarID{}, false
	}
	for _, id := range spec.Vars {
		for _, level := range spec.Levels {
			if name == fmt.Sprintf("%s_%dmb", id.Source, level) {
				return id, true
			}
		}
	}
	return domain.VarID{}, false
}

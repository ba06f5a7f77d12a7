// Package pipeline orchestrates the resolve-extract-assemble-write flow and
// owns the stage interfaces its adapters implement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
	"github.com/Benedict-Hyland/weather-modelling/internal/observability"
)

// Resolver locates the archive files for a forecast key or path.
type Resolver interface {
	Resolve(input string) (domain.ForecastKey, domain.ArchiveFileSet, error)
	ResolveKey(key domain.ForecastKey) (domain.ArchiveFileSet, error)
}

// ArtifactWriter serializes one harmonized dataset under dir/name and
// returns the path written. Writers replace rather than append, so repeated
// runs are idempotent.
type ArtifactWriter interface {
	Format() string
	Write(ctx context.Context, ds *grid.Dataset, dir, name string) (string, error)
}

// Notifier publishes artifact completion events to downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, ev domain.ArtifactEvent) error
}

// Pipeline runs extraction jobs end to end.
type Pipeline struct {
	resolver  Resolver
	driver    *Driver
	writers   []ArtifactWriter
	notifier  Notifier // nil disables notifications
	mode      domain.LevelMode
	outputDir string
	logger    *slog.Logger
	metrics   *observability.Metrics

	removeInputs bool
}

// New creates a Pipeline with the given stages and observability.
func New(r Resolver, d *Driver, writers []ArtifactWriter, notifier Notifier,
	mode domain.LevelMode, outputDir string, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		resolver:  r,
		driver:    d,
		writers:   writers,
		notifier:  notifier,
		mode:      mode,
		outputDir: outputDir,
		logger:    logger,
		metrics:   metrics,
	}
}

// EnableInputCleanup makes the pipeline remove consumed archive files after
// their artifact is written. Off by default.
func (p *Pipeline) EnableInputCleanup() {
	p.removeInputs = true
}

// ProcessCyclePair resolves and harmonizes two forecast keys independently,
// aligns the earlier one exactly one cycle interval before the later, and
// writes the concatenated two-step series as one artifact.
func (p *Pipeline) ProcessCyclePair(ctx context.Context, inputA, inputB string) error {
	return p.runJob(func() error {
		keyA, dsA, filesA, err := p.harmonizeInput(ctx, inputA)
		if err != nil {
			return err
		}
		keyB, dsB, filesB, err := p.harmonizeInput(ctx, inputB)
		if err != nil {
			return err
		}

		earlierKey, earlier, later := keyA, dsA, dsB
		if keyB.Cycle.Before(keyA.Cycle) {
			earlierKey, earlier, later = keyB, dsB, dsA
		}

		// The shift is computed from the later dataset's first timestamp,
		// never assumed from the keys.
		if err := grid.AlignCyclePair(earlier, later, domain.CycleInterval); err != nil {
			return err
		}
		merged, err := grid.ConcatTime(earlier, later)
		if err != nil {
			return err
		}

		name := domain.ArtifactName(earlierKey.Cycle, p.mode, merged.Steps(), nil)
		if err := p.writeAll(ctx, merged, earlierKey, name); err != nil {
			return err
		}
		p.cleanupInputs(append(filesA.Paths(), filesB.Paths()...))
		return nil
	})
}

// ProcessLeadPairs runs the six lead-window jobs for one cycle. Windows are
// independent: a failing window is logged and counted without stopping its
// siblings, and the joined error is returned at the end.
func (p *Pipeline) ProcessLeadPairs(ctx context.Context, cycle domain.ForecastKey) error {
	var errs []error
	for _, w := range LeadWindows() {
		err := p.runJob(func() error { return p.processWindow(ctx, cycle, w) })
		if err != nil {
			p.logger.Error("lead window failed", "cycle", cycle.Cycle, "analysis", w.Analysis, "accum", w.Accum, "error", err)
			errs = append(errs, fmt.Errorf("window f%03d/f%03d: %w", w.Analysis, w.Accum, err))
		}
	}
	return errors.Join(errs...)
}

// processWindow extracts one (analysis, accum) lead pair and writes it. Both
// leads share one consumed set so first-step-only fields are pulled once per
// window, and their slices assemble into a single two-step dataset.
func (p *Pipeline) processWindow(ctx context.Context, cycle domain.ForecastKey, w Window) error {
	consumed := make(map[string]bool)
	var parts []*grid.Dataset
	var inputs []string

	for _, stage := range []struct {
		lead   int
		bucket domain.Bucket
	}{
		{w.Analysis, domain.BucketAnalysis},
		{w.Accum, domain.BucketAccum},
	} {
		key := cycle.WithLead(stage.lead)
		files, err := p.resolver.ResolveKey(key)
		if err != nil {
			return err
		}
		if _, err := files.Require(domain.FamilyPrimary); err != nil {
			return fmt.Errorf("%s: %w", key.String(), err)
		}
		slices, err := p.driver.ExtractAll(ctx, files, stage.bucket, consumed)
		if err != nil {
			return fmt.Errorf("%s: %w", key.String(), err)
		}
		parts = append(parts, slices...)
		inputs = append(inputs, files.Paths()...)
	}

	ds, err := grid.Assemble(parts)
	if err != nil {
		return err
	}
	name := domain.ArtifactName(cycle.Cycle, p.mode, ds.Steps(), w.Leads())
	if err := p.writeAll(ctx, ds, cycle.WithLead(w.Analysis), name); err != nil {
		return err
	}
	p.cleanupInputs(inputs)
	return nil
}

// harmonizeInput resolves one key or path, extracts the cycle-step variable
// set (analysis fields plus the static surface fields, whatever the key's
// lead), and assembles it into a harmonized dataset.
func (p *Pipeline) harmonizeInput(ctx context.Context, input string) (domain.ForecastKey, *grid.Dataset, domain.ArchiveFileSet, error) {
	key, files, err := p.resolver.Resolve(input)
	if err != nil {
		return domain.ForecastKey{}, nil, nil, err
	}
	if _, err := files.Require(domain.FamilyPrimary); err != nil {
		return domain.ForecastKey{}, nil, nil, fmt.Errorf("%s: %w", input, err)
	}

	consumed := make(map[string]bool)
	parts, err := p.driver.ExtractCycleStep(ctx, files, consumed)
	if err != nil {
		return domain.ForecastKey{}, nil, nil, fmt.Errorf("%s: %w", key.String(), err)
	}

	ds, err := grid.Assemble(parts)
	if err != nil {
		return domain.ForecastKey{}, nil, nil, fmt.Errorf("%s: %w", key.String(), err)
	}
	return key, ds, files, nil
}

// cleanupInputs removes consumed archive files once their artifact is safely
// written. Failures are diagnostic only.
func (p *Pipeline) cleanupInputs(paths []string) {
	if !p.removeInputs {
		return
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			p.logger.Warn("input cleanup failed", "path", path, "error", err)
			continue
		}
		p.logger.Info("input removed", "path", path)
	}
}

// writeAll stamps provenance attributes, serializes the dataset with every
// configured writer, and publishes a completion event per artifact. A failed
// notification is logged, not fatal: the artifact is already on disk.
func (p *Pipeline) writeAll(ctx context.Context, ds *grid.Dataset, key domain.ForecastKey, name string) error {
	ds.Attrs["source"] = "gdas"
	ds.Attrs["resolution"] = "0.25"
	ds.Attrs["levels"] = strconv.Itoa(int(p.mode))
	ds.Attrs["created"] = domain.Now().UTC().Format(time.RFC3339)

	for _, w := range p.writers {
		path, err := w.Write(ctx, ds, p.outputDir, name)
		if err != nil {
			return fmt.Errorf("write %s: %w", w.Format(), err)
		}
		p.metrics.ArtifactsWritten.WithLabelValues(w.Format()).Inc()
		p.logger.Info("artifact written", "format", w.Format(), "path", path, "steps", ds.Steps())

		if p.notifier == nil {
			continue
		}
		ev := domain.ArtifactEvent{
			Key:       key.String(),
			Path:      path,
			Format:    w.Format(),
			LevelMode: int(p.mode),
			Steps:     ds.Steps(),
			WrittenAt: domain.Now(),
		}
		if err := p.notifier.Publish(ctx, ev); err != nil {
			p.logger.Warn("artifact notification failed", "path", path, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) runJob(fn func() error) error {
	p.metrics.JobsInFlight.Inc()
	defer p.metrics.JobsInFlight.Dec()
	start := time.Now()

	err := fn()
	p.metrics.JobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.JobsFailed.Inc()
		return err
	}
	p.metrics.JobsCompleted.Inc()
	return nil
}

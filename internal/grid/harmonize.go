package grid

import (
	"fmt"
	"math"
	"time"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

// Assemble merges decoder output slices for one forecast key and harmonizes
// the result: coordinate alignment, vertical-dimension consolidation,
// canonical renaming, time normalization, and the leading batch dimension.
func Assemble(parts []*Dataset) (*Dataset, error) {
	ds, err := Combine(parts)
	if err != nil {
		return nil, err
	}
	return Harmonize(ds)
}

// Harmonize turns a combined dataset into the canonical form consumed by the
// output writers:
//
//   - variables are renamed from decoder names to canonical physical names;
//     an unmapped name is a configuration error
//   - the time axis is sorted and re-expressed as elapsed offset from the
//     first valid time, with the absolute valid times retained as the
//     datetime coordinate
//   - a leading batch dimension is introduced on every time-varying
//     variable, while time-invariant surface fields are squeezed down to
//     (lat, lon)
func Harmonize(ds *Dataset) (*Dataset, error) {
	if len(ds.Vars) == 0 {
		return nil, fmt.Errorf("harmonize: %w", domain.ErrEmptyExtraction)
	}
	if ds.HasBatch {
		return nil, fmt.Errorf("harmonize: dataset already harmonized")
	}

	renamed := make(map[string]*Array, len(ds.Vars))
	for _, name := range ds.VarNames() {
		canonical, ok := domain.CanonicalName(name)
		if !ok {
			return nil, fmt.Errorf("harmonize: variable %q has no canonical name; registry and rename table out of sync", name)
		}
		if _, dup := renamed[canonical]; dup {
			return nil, fmt.Errorf("harmonize: two variables map to %q: %w", canonical, domain.ErrMergeConflict)
		}
		a := ds.Vars[name]
		a.Name = canonical
		renamed[canonical] = a
	}
	ds.Vars = renamed

	if err := ds.SortTime(); err != nil {
		return nil, err
	}
	ds.TimeOffsets = make([]time.Duration, len(ds.Times))
	for i, t := range ds.Times {
		ds.TimeOffsets[i] = t.Sub(ds.Times[0])
	}

	for name, a := range ds.Vars {
		if domain.IsStatic(name) {
			takeFirstTime(a)
			continue
		}
		a.Dims = append([]string{DimBatch}, a.Dims...)
		a.Shape = append([]int{1}, a.Shape...)
	}
	ds.HasBatch = true
	return ds, nil
}

// takeFirstTime reduces a time-invariant field to one time step and drops
// the time dimension, leaving (lat, lon). It keeps the first step that holds
// data: a static extracted at the second lead of a window lands with a fill
// slab at step zero after the outer join.
func takeFirstTime(a *Array) {
	ax := a.DimIndex(DimTime)
	if ax < 0 {
		return
	}
	if ax != 0 {
		panic(fmt.Sprintf("array %s: time is not the leading dimension: %v", a.Name, a.Dims))
	}
	n := a.Size() / a.Shape[ax]
	step := 0
	for s := 0; s < a.Shape[ax]; s++ {
		if hasData(a.Values[s*n : (s+1)*n]) {
			step = s
			break
		}
	}
	a.Values = append([]float64(nil), a.Values[step*n:(step+1)*n]...)
	a.Shape[ax] = 1
	a.squeeze(ax)
}

func hasData(v []float64) bool {
	for _, x := range v {
		if !math.IsNaN(x) {
			return true
		}
	}
	return false
}

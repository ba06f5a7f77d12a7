package grid

import (
	"fmt"
	"sort"
	"time"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

// AlignCyclePair rewrites the earlier dataset's valid times so they sit
// exactly one cycle interval before the later dataset's. The shift is always
// derived from the later dataset's first timestamp, never assumed from the
// forecast key; decoder-reported valid times are otherwise taken as-is.
func AlignCyclePair(earlier, later *Dataset, interval time.Duration) error {
	if len(earlier.Times) == 0 || len(later.Times) == 0 {
		return fmt.Errorf("align cycle pair: %w", domain.ErrEmptyExtraction)
	}
	anchor := later.Times[0].Add(-interval)
	base := earlier.Times[0]
	for i := range earlier.Times {
		earlier.Times[i] = anchor.Add(earlier.Times[i].Sub(base))
	}
	return nil
}

// ConcatTime concatenates two harmonized datasets along the time axis,
// producing a multi-step series. The canonical variable sets, grids, and
// level sets must match exactly: a variable present in one dataset but not
// the other is a merge conflict, never a silent drop. Static fields are
// carried from the first dataset after a shape check.
//
// The resulting time axis is sorted; duplicate timestamps mean the pairing
// collapsed two runs onto one instant and surface as a time-ordering error.
func ConcatTime(a, b *Dataset) (*Dataset, error) {
	if !a.HasBatch || !b.HasBatch {
		return nil, fmt.Errorf("concat: datasets must be harmonized first")
	}
	if err := sameNames(a, b); err != nil {
		return nil, err
	}
	if !floatsEqual(a.Lat, b.Lat) || !floatsEqual(a.Lon, b.Lon) {
		return nil, fmt.Errorf("concat: lat/lon grids differ: %w", domain.ErrMergeConflict)
	}
	if !intsEqual(a.Levels, b.Levels) {
		return nil, fmt.Errorf("concat: level sets differ: %w", domain.ErrMergeConflict)
	}

	out := NewDataset()
	out.Lat = append([]float64(nil), a.Lat...)
	out.Lon = append([]float64(nil), a.Lon...)
	out.Levels = append([]int(nil), a.Levels...)
	out.Times = append(append([]time.Time(nil), a.Times...), b.Times...)
	out.HasBatch = true
	out.Attrs = mergeAttrs([]*Dataset{a, b})

	for _, name := range a.VarNames() {
		av, bv := a.Vars[name], b.Vars[name]
		if domain.IsStatic(name) {
			if !dimsEqual(av.Dims, bv.Dims) || !intsEqual(av.Shape, bv.Shape) {
				return nil, fmt.Errorf("concat: static %s shapes differ: %w", name, domain.ErrMergeConflict)
			}
			out.AddVar(&Array{Name: name, Dims: append([]string(nil), av.Dims...), Shape: append([]int(nil), av.Shape...), Values: append([]float64(nil), av.Values...)})
			continue
		}
		merged, err := concatAlongTime(av, bv, len(a.Times), len(b.Times))
		if err != nil {
			return nil, err
		}
		out.AddVar(merged)
	}

	if err := out.SortTime(); err != nil {
		return nil, err
	}
	out.TimeOffsets = make([]time.Duration, len(out.Times))
	for i, t := range out.Times {
		out.TimeOffsets[i] = t.Sub(out.Times[0])
	}
	return out, nil
}

func concatAlongTime(av, bv *Array, aSteps, bSteps int) (*Array, error) {
	if !dimsEqual(av.Dims, bv.Dims) {
		return nil, fmt.Errorf("concat: %s dims differ: %w", av.Name, domain.ErrMergeConflict)
	}
	ax := av.DimIndex(DimTime)
	if ax < 0 {
		return nil, fmt.Errorf("concat: %s has no time dimension: %w", av.Name, domain.ErrMergeConflict)
	}
	for i := range av.Shape {
		if i != ax && av.Shape[i] != bv.Shape[i] {
			return nil, fmt.Errorf("concat: %s shapes differ on %s: %w", av.Name, av.Dims[i], domain.ErrMergeConflict)
		}
	}
	if av.Shape[ax] != aSteps || bv.Shape[ax] != bSteps {
		return nil, fmt.Errorf("concat: %s time length disagrees with coordinate: %w", av.Name, domain.ErrMergeConflict)
	}

	shape := append([]int(nil), av.Shape...)
	shape[ax] = aSteps + bSteps
	out := NewArray(av.Name, av.Dims, shape)

	copyTimeBlock(out, av, ax, 0)
	copyTimeBlock(out, bv, ax, aSteps)
	return out, nil
}

// copyTimeBlock copies src into dst with src's time indices offset by shift.
func copyTimeBlock(dst, src *Array, ax, shift int) {
	idx := make([]int, len(src.Shape))
	for flat := 0; flat < len(src.Values); flat++ {
		rem := flat
		for i := len(src.Shape) - 1; i >= 0; i-- {
			idx[i] = rem % src.Shape[i]
			rem /= src.Shape[i]
		}
		dstIdx := append([]int(nil), idx...)
		dstIdx[ax] += shift
		dst.Set(src.Values[flat], dstIdx...)
	}
}

// SortTime reorders the time axis ascending and verifies it is strictly
// increasing afterwards. A duplicate or inverted timestamp after sorting is
// an upstream selector or pairing bug and fails with domain.ErrTimeOrdering.
func (ds *Dataset) SortTime() error {
	n := len(ds.Times)
	if n == 0 {
		return nil
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return ds.Times[perm[i]].Before(ds.Times[perm[j]]) })

	sorted := make([]time.Time, n)
	for i, p := range perm {
		sorted[i] = ds.Times[p]
	}
	for i := 1; i < n; i++ {
		if !sorted[i].After(sorted[i-1]) {
			return fmt.Errorf("time axis: %s then %s: %w",
				sorted[i-1].Format(time.RFC3339), sorted[i].Format(time.RFC3339), domain.ErrTimeOrdering)
		}
	}
	ds.Times = sorted

	for _, a := range ds.Vars {
		ax := a.DimIndex(DimTime)
		if ax < 0 {
			continue
		}
		reorderAlong(a, ax, perm)
	}
	return nil
}

// reorderAlong permutes the array along one axis: output position k takes the
// slab that was at perm[k].
func reorderAlong(a *Array, ax int, perm []int) {
	identity := true
	for i, p := range perm {
		if i != p {
			identity = false
			break
		}
	}
	if identity {
		return
	}
	out := make([]float64, len(a.Values))
	idx := make([]int, len(a.Shape))
	for flat := 0; flat < len(a.Values); flat++ {
		rem := flat
		for i := len(a.Shape) - 1; i >= 0; i-- {
			idx[i] = rem % a.Shape[i]
			rem /= a.Shape[i]
		}
		srcIdx := append([]int(nil), idx...)
		srcIdx[ax] = perm[idx[ax]]
		out[flat] = a.At(srcIdx...)
	}
	a.Values = out
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameNames(a, b *Dataset) error {
	for name := range a.Vars {
		if _, ok := b.Vars[name]; !ok {
			return fmt.Errorf("concat: %s missing from second dataset: %w", name, domain.ErrMergeConflict)
		}
	}
	for name := range b.Vars {
		if _, ok := a.Vars[name]; !ok {
			return fmt.Errorf("concat: %s missing from first dataset: %w", name, domain.ErrMergeConflict)
		}
	}
	return nil
}

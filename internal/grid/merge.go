package grid

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

// Combine merges partial datasets by coordinate equality with an outer join
// on lat/lon/level/time: a variable present only on a subset of levels or
// times keeps its peers, with NaN where a combination was never extracted.
// Conflicting global attributes are dropped rather than failing the merge.
//
// It fails with domain.ErrEmptyExtraction when the parts carry no variables
// at all, and with domain.ErrMergeConflict when two slices claim the same
// variable with incompatible dimensions or disagreeing values for the same
// coordinates.
func Combine(parts []*Dataset) (*Dataset, error) {
	total := 0
	for _, p := range parts {
		if p != nil {
			total += len(p.Vars)
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("combine: %w", domain.ErrEmptyExtraction)
	}

	out := NewDataset()
	for _, p := range parts {
		if p == nil {
			continue
		}
		consolidateLevelDims(p)
		out.Lat = unionFloats(out.Lat, p.Lat)
		out.Lon = unionFloats(out.Lon, p.Lon)
		out.Levels = unionInts(out.Levels, p.Levels)
		out.Times = unionTimes(out.Times, p.Times)
	}
	out.Attrs = mergeAttrs(parts)

	latIdx := indexFloats(out.Lat)
	lonIdx := indexFloats(out.Lon)
	levelIdx := indexInts(out.Levels)
	timeIdx := indexTimes(out.Times)

	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, name := range p.VarNames() {
			if err := placeVar(out, p, p.Vars[name], latIdx, lonIdx, levelIdx, timeIdx); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// consolidateLevelDims folds the wgrib2 "plevel" dimension into the canonical
// "level" dimension and squeezes the degenerate size-1 vertical dimension
// left on single-level fields, so every level-bearing variable shares one
// vertical coordinate.
func consolidateLevelDims(p *Dataset) {
	for _, a := range p.Vars {
		if ax := a.DimIndex(DimLevel); ax >= 0 && a.Shape[ax] == 1 && len(p.Levels) == 0 {
			a.squeeze(ax)
		}
		if ax := a.DimIndex(DimPLevel); ax >= 0 {
			a.Dims[ax] = DimLevel
		}
	}
}

// placeVar reindexes one source array into the union coordinate system.
func placeVar(out, part *Dataset, src *Array, latIdx, lonIdx map[float64]int, levelIdx map[int]int, timeIdx map[int64]int) error {
	wantDims := []string{DimTime, DimLat, DimLon}
	levelled := src.HasDim(DimLevel)
	if levelled {
		wantDims = []string{DimTime, DimLevel, DimLat, DimLon}
	}
	if !dimsEqual(src.Dims, wantDims) {
		return fmt.Errorf("variable %s: dims %v, want %v: %w", src.Name, src.Dims, wantDims, domain.ErrMergeConflict)
	}

	dst := out.Vars[src.Name]
	if dst == nil {
		shape := []int{len(out.Times), len(out.Lat), len(out.Lon)}
		if levelled {
			shape = []int{len(out.Times), len(out.Levels), len(out.Lat), len(out.Lon)}
		}
		dst = NewArray(src.Name, wantDims, shape)
		out.AddVar(dst)
	} else if !dimsEqual(dst.Dims, wantDims) {
		return fmt.Errorf("variable %s: level-bearing and surface slices under one name: %w", src.Name, domain.ErrMergeConflict)
	}

	srcLevels := part.Levels
	if levelled && len(srcLevels) != src.Shape[src.DimIndex(DimLevel)] {
		return fmt.Errorf("variable %s: %d level coords for %d planes: %w",
			src.Name, len(srcLevels), src.Shape[src.DimIndex(DimLevel)], domain.ErrMergeConflict)
	}

	nLev := 1
	if levelled {
		nLev = len(srcLevels)
	}
	for t := 0; t < len(part.Times); t++ {
		ut := timeIdx[part.Times[t].UnixNano()]
		for l := 0; l < nLev; l++ {
			ul := 0
			if levelled {
				ul = levelIdx[srcLevels[l]]
			}
			for y := 0; y < len(part.Lat); y++ {
				uy := latIdx[part.Lat[y]]
				for x := 0; x < len(part.Lon); x++ {
					ux := lonIdx[part.Lon[x]]
					var v, old float64
					if levelled {
						v = src.At(t, l, y, x)
						old = dst.At(ut, ul, uy, ux)
					} else {
						v = src.At(t, y, x)
						old = dst.At(ut, uy, ux)
					}
					if math.IsNaN(v) {
						continue
					}
					if !math.IsNaN(old) && old != v {
						return fmt.Errorf("variable %s: conflicting values at time %s: %w",
							src.Name, part.Times[t].Format(time.RFC3339), domain.ErrMergeConflict)
					}
					if levelled {
						dst.Set(v, ut, ul, uy, ux)
					} else {
						dst.Set(v, ut, uy, ux)
					}
				}
			}
		}
	}
	return nil
}

// mergeAttrs keeps only attributes on which every defining part agrees.
func mergeAttrs(parts []*Dataset) map[string]string {
	merged := make(map[string]string)
	conflicted := make(map[string]bool)
	for _, p := range parts {
		if p == nil {
			continue
		}
		for k, v := range p.Attrs {
			if prev, ok := merged[k]; ok && prev != v {
				conflicted[k] = true
				continue
			}
			merged[k] = v
		}
	}
	for k := range conflicted {
		delete(merged, k)
	}
	return merged
}

func dimsEqual(a, b []string) bool {
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

func unionFloats(a, b []float64) []float64 {
	seen := make(map[float64]bool, len(a)+len(b))
	out := make([]float64, 0, len(a)+len(b))
	for _, s := range [][]float64{a, b} {
		for _, v := range s {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Float64s(out)
	return out
}

func unionInts(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, s := range [][]int{a, b} {
		for _, v := range s {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}

func unionTimes(a, b []time.Time) []time.Time {
	seen := make(map[int64]bool, len(a)+len(b))
	out := make([]time.Time, 0, len(a)+len(b))
	for _, s := range [][]time.Time{a, b} {
		for _, v := range s {
			if !seen[v.UnixNano()] {
				seen[v.UnixNano()] = true
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func indexFloats(s []float64) map[float64]int {
	m := make(map[float64]int, len(s))
	for i, v := range s {
		m[v] = i
	}
	return m
}

func indexInts(s []int) map[int]int {
	m := make(map[int]int, len(s))
	for i, v := range s {
		m[v] = i
	}
	return m
}

func indexTimes(s []time.Time) map[int64]int {
	m := make(map[int64]int, len(s))
	for i, v := range s {
		m[v.UnixNano()] = i
	}
	return m
}

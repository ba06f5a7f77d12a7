// Package grid holds the labeled-array dataset model and the assembly
// transformations that turn decoder output slices into one canonical,
// renamed, unit-normalized dataset.
package grid

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Canonical dimension names. Decoder backends may additionally emit the
// "plevel" dimension for isobaric blocks; Combine folds it into "level".
const (
	DimBatch = "batch"
	DimTime  = "time"
	DimLevel = "level"
	DimLat   = "lat"
	DimLon   = "lon"

	// DimPLevel is the vertical dimension name used by the wgrib2 NetCDF
	// path for isobaric blocks before consolidation.
	DimPLevel = "plevel"
)

// Array is a dense row-major labeled array over a Dataset's coordinates.
type Array struct {
	Name   string
	Dims   []string
	Shape  []int
	Values []float64
}

// NewArray allocates an array of the given shape filled with NaN, the
// missing-value sentinel used throughout assembly.
func NewArray(name string, dims []string, shape []int) *Array {
	if len(dims) != len(shape) {
		panic(fmt.Sprintf("array %s: %d dims, %d shape entries", name, len(dims), len(shape)))
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Array{Name: name, Dims: append([]string(nil), dims...), Shape: append([]int(nil), shape...), Values: values}
}

// Size is the total element count.
func (a *Array) Size() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// DimIndex returns the axis position of a dimension, or -1.
func (a *Array) DimIndex(dim string) int {
	for i, d := range a.Dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// HasDim reports whether the array carries the dimension.
func (a *Array) HasDim(dim string) bool { return a.DimIndex(dim) >= 0 }

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("array %s: %d indices for %d dims", a.Name, len(idx), len(a.Shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= a.Shape[i] {
			panic(fmt.Sprintf("array %s: index %d out of range for dim %s (size %d)", a.Name, x, a.Dims[i], a.Shape[i]))
		}
		off = off*a.Shape[i] + x
	}
	return off
}

// At reads one element by multidimensional index.
func (a *Array) At(idx ...int) float64 { return a.Values[a.offset(idx)] }

// Set writes one element by multidimensional index.
func (a *Array) Set(v float64, idx ...int) { a.Values[a.offset(idx)] = v }

// squeeze removes the axis at position ax, which must have size 1.
func (a *Array) squeeze(ax int) {
	if a.Shape[ax] != 1 {
		panic(fmt.Sprintf("array %s: squeeze of dim %s with size %d", a.Name, a.Dims[ax], a.Shape[ax]))
	}
	a.Dims = append(a.Dims[:ax:ax], a.Dims[ax+1:]...)
	a.Shape = append(a.Shape[:ax:ax], a.Shape[ax+1:]...)
}

// Dataset is a set of labeled arrays over shared coordinates. A decoder
// backend produces small partial datasets; Assemble merges them into the
// harmonized result.
type Dataset struct {
	Lat    []float64
	Lon    []float64
	Levels []int       // isobaric levels, hPa, ascending
	Times  []time.Time // valid times ("datetime" coordinate)

	// TimeOffsets is the canonical "time" coordinate after harmonization:
	// elapsed offset from the first valid time, so a dataset always starts
	// at offset zero.
	TimeOffsets []time.Duration

	// HasBatch is set once the leading batch dimension has been introduced.
	HasBatch bool

	Vars  map[string]*Array
	Attrs map[string]string
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Vars: make(map[string]*Array), Attrs: make(map[string]string)}
}

// AddVar registers an array under its name.
func (ds *Dataset) AddVar(a *Array) {
	if ds.Vars == nil {
		ds.Vars = make(map[string]*Array)
	}
	ds.Vars[a.Name] = a
}

// VarNames returns the variable names in sorted order.
func (ds *Dataset) VarNames() []string {
	names := make([]string, 0, len(ds.Vars))
	for name := range ds.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Steps is the length of the time axis.
func (ds *Dataset) Steps() int { return len(ds.Times) }

// OffsetSeconds renders the canonical time coordinate as elapsed seconds
// from the first valid time. A dataset that has not been through
// harmonization derives the offsets from its valid times directly.
func (ds *Dataset) OffsetSeconds() []float64 {
	out := make([]float64, len(ds.Times))
	if len(ds.TimeOffsets) == len(ds.Times) {
		for i, d := range ds.TimeOffsets {
			out[i] = d.Seconds()
		}
		return out
	}
	for i, t := range ds.Times {
		out[i] = t.Sub(ds.Times[0]).Seconds()
	}
	return out
}

// ShiftTimes adds d to every valid time. Used to stamp accumulated fields
// with their accumulation end time before assembly.
func (ds *Dataset) ShiftTimes(d time.Duration) {
	for i := range ds.Times {
		ds.Times[i] = ds.Times[i].Add(d)
	}
}

// Scale multiplies every element by f, skipping NaN fill values. Conversion
// state lives nowhere else, so re-extracting the same raw value always
// yields identical converted output.
func (a *Array) Scale(f float64) {
	if f == 1 {
		return
	}
	for i, v := range a.Values {
		if !math.IsNaN(v) {
			a.Values[i] = v * f
		}
	}
}

// ScaleValues applies Scale to every variable in the dataset.
func (ds *Dataset) ScaleValues(f float64) {
	for _, a := range ds.Vars {
		a.Scale(f)
	}
}

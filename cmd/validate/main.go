// Command validate performs integrity checks on written artifacts: variable
// completeness for the level mode, coordinate sanity, time axis ordering,
// and per-variable shape consistency. NetCDF artifacts are read in full;
// zarr stores are checked at the metadata level.
//
// Usage:
//
//	go run ./cmd/validate -levels 13 output/source-gdas_date-2025072012_res-0.25_levels-13_steps-2.zarr
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Benedict-Hyland/weather-modelling/internal/adapter/netcdfio"
	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	levels := flag.Int("levels", 13, "pressure level set the artifact was built with (13 or 37)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: validate [-levels N] ARTIFACT...")
		os.Exit(1)
	}

	mode, err := domain.ParseLevelMode(*levels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	code := 0
	for _, path := range flag.Args() {
		if run(path, mode) != 0 {
			code = 1
		}
	}
	os.Exit(code)
}

func run(path string, mode domain.LevelMode) int {
	fmt.Printf("=== Artifact Validation: %s ===\n\n", path)

	var phases []*phase
	switch {
	case strings.HasSuffix(path, ".zarr"):
		phases = validateZarr(path, mode)
	case strings.HasSuffix(path, ".nc"):
		ds, err := netcdfio.ReadRaw(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read artifact: %v\n", err)
			return 1
		}
		phases = []*phase{
			validateVariables(varNameSet(ds), mode),
			validateCoordinates(ds, mode),
			validateTimeAxis(ds),
			validateShapes(ds),
		}
	default:
		fmt.Fprintf(os.Stderr, "FATAL: unrecognized artifact %q: want .zarr or .nc\n", path)
		return 1
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// expectedVariables returns the canonical output names for the mode, split
// into required and optional sets.
func expectedVariables(mode domain.LevelMode) (required, optional map[string]bool) {
	required = map[string]bool{}
	optional = map[string]bool{}
	for _, spec := range domain.Registry(mode) {
		for _, v := range spec.Vars {
			canonical, ok := domain.CanonicalName(v.Source)
			if !ok {
				continue
			}
			if spec.Mandatory {
				required[canonical] = true
			} else {
				optional[canonical] = true
			}
		}
	}
	return required, optional
}

func varNameSet(ds *grid.Dataset) map[string]bool {
	names := map[string]bool{}
	for name := range ds.Vars {
		names[name] = true
	}
	return names
}

func validateVariables(present map[string]bool, mode domain.LevelMode) *phase {
	p := &phase{name: "variable completeness"}
	required, optional := expectedVariables(mode)

	for name := range required {
		if !present[name] {
			p.errorf("required variable %q missing", name)
		}
	}
	for name := range present {
		if !required[name] && !optional[name] {
			p.errorf("unexpected variable %q", name)
		}
	}
	for name := range optional {
		if !present[name] {
			fmt.Printf("  note: optional variable %q absent\n", name)
		}
	}
	return p
}

func validateCoordinates(ds *grid.Dataset, mode domain.LevelMode) *phase {
	p := &phase{name: "coordinate sanity"}

	if len(ds.Lat) == 0 {
		p.errorf("latitude coordinate empty")
	} else if !monotonic(ds.Lat) {
		p.errorf("latitude not monotonic")
	}
	if len(ds.Lon) == 0 {
		p.errorf("longitude coordinate empty")
	} else if !monotonic(ds.Lon) {
		p.errorf("longitude not monotonic")
	}

	if want := int(mode); len(ds.Levels) != want {
		p.errorf("level count %d, want %d", len(ds.Levels), want)
	}
	for i := 1; i < len(ds.Levels); i++ {
		if ds.Levels[i] <= ds.Levels[i-1] {
			p.errorf("levels not strictly ascending at index %d (%d after %d)", i, ds.Levels[i], ds.Levels[i-1])
			break
		}
	}
	return p
}

func validateTimeAxis(ds *grid.Dataset) *phase {
	p := &phase{name: "time axis"}
	if len(ds.Times) == 0 {
		p.errorf("time coordinate empty")
		return p
	}
	for i := 1; i < len(ds.Times); i++ {
		d := ds.Times[i].Sub(ds.Times[i-1])
		if d <= 0 {
			p.errorf("times not strictly increasing at index %d", i)
		} else if d != domain.CycleInterval {
			p.errorf("time step %d is %s apart, want %s", i, d, domain.CycleInterval)
		}
	}
	return p
}

func validateShapes(ds *grid.Dataset) *phase {
	p := &phase{name: "variable shapes"}
	dimLen := map[string]int{
		grid.DimTime:  len(ds.Times),
		grid.DimLevel: len(ds.Levels),
		grid.DimLat:   len(ds.Lat),
		grid.DimLon:   len(ds.Lon),
		grid.DimBatch: 1,
	}

	for _, name := range ds.VarNames() {
		a := ds.Vars[name]
		if len(a.Dims) != len(a.Shape) {
			p.errorf("%s: %d dims but %d shape entries", name, len(a.Dims), len(a.Shape))
			continue
		}
		n := 1
		for i, d := range a.Dims {
			if want, ok := dimLen[d]; ok && a.Shape[i] != want {
				p.errorf("%s: dim %s has extent %d, want %d", name, d, a.Shape[i], want)
			}
			n *= a.Shape[i]
		}
		if n != len(a.Values) {
			p.errorf("%s: shape implies %d values, got %d", name, n, len(a.Values))
			continue
		}
		if allNaN(a.Values) {
			p.errorf("%s: all values are NaN", name)
		}
	}
	return p
}

// ── Zarr metadata checks ──

type zarrayMeta struct {
	ZarrFormat int    `json:"zarr_format"`
	Shape      []int  `json:"shape"`
	Chunks     []int  `json:"chunks"`
	Dtype      string `json:"dtype"`
}

func validateZarr(root string, mode domain.LevelMode) []*phase {
	store := &phase{name: "zarr store layout"}
	arrays := map[string]zarrayMeta{}
	dims := map[string][]string{}

	if _, err := os.Stat(filepath.Join(root, ".zgroup")); err != nil {
		store.errorf("missing .zgroup: %v", err)
		return []*phase{store}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		store.errorf("read store: %v", err)
		return []*phase{store}
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		meta, err := readJSON[zarrayMeta](filepath.Join(root, name, ".zarray"))
		if err != nil {
			store.errorf("%s: %v", name, err)
			continue
		}
		if meta.ZarrFormat != 2 {
			store.errorf("%s: zarr_format %d, want 2", name, meta.ZarrFormat)
		}
		if len(meta.Shape) != len(meta.Chunks) {
			store.errorf("%s: shape rank %d but chunk rank %d", name, len(meta.Shape), len(meta.Chunks))
		}
		attrs, err := readJSON[map[string][]string](filepath.Join(root, name, ".zattrs"))
		if err != nil {
			store.errorf("%s: %v", name, err)
			continue
		}
		ad, ok := attrs["_ARRAY_DIMENSIONS"]
		if !ok || len(ad) != len(meta.Shape) {
			store.errorf("%s: _ARRAY_DIMENSIONS missing or rank mismatch", name)
			continue
		}
		arrays[name] = meta
		dims[name] = ad
	}

	coords := &phase{name: "coordinate arrays"}
	for _, c := range []string{"lat", "lon", "time", "datetime"} {
		if _, ok := arrays[c]; !ok {
			coords.errorf("coordinate array %q missing", c)
		}
	}
	if lvl, ok := arrays["level"]; !ok {
		coords.errorf("coordinate array %q missing", "level")
	} else if want := int(mode); len(lvl.Shape) != 1 || lvl.Shape[0] != want {
		coords.errorf("level has shape %v, want [%d]", lvl.Shape, want)
	}

	present := map[string]bool{}
	for name := range arrays {
		switch name {
		case "lat", "lon", "level", "time", "datetime":
		default:
			present[name] = true
		}
	}
	return []*phase{store, coords, validateVariables(present, mode)}
}

func readJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func monotonic(vals []float64) bool {
	if len(vals) < 2 {
		return true
	}
	asc := vals[1] > vals[0]
	for i := 1; i < len(vals); i++ {
		if asc && vals[i] <= vals[i-1] {
			return false
		}
		if !asc && vals[i] >= vals[i-1] {
			return false
		}
	}
	return true
}

func allNaN(vals []float64) bool {
	for _, v := range vals {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

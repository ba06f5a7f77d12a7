// Package netcdfio reads and writes NetCDF artifacts with the pure-Go CDF
// implementation. The reader understands the files wgrib2 emits (latitude,
// longitude, time in epoch seconds, plevel in hPa); the writer produces the
// harmonized artifact layout.
package netcdfio

import (
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

// wgrib2FillValue marks missing points in wgrib2 NetCDF output.
const wgrib2FillValue = 9.999e20

// dimRename maps the on-file dimension names to canonical ones.
var dimRename = map[string]string{
	"latitude":  grid.DimLat,
	"longitude": grid.DimLon,
	"time":      grid.DimTime,
	"plevel":    grid.DimPLevel,
	"level":     grid.DimLevel,
	"lat":       grid.DimLat,
	"lon":       grid.DimLon,
}

var coordVars = map[string]bool{
	"latitude": true, "longitude": true, "time": true, "plevel": true, "level": true,
	"lat": true, "lon": true, "datetime": true,
}

// ReadRaw loads a NetCDF file into a Dataset, keeping the variable names as
// written. Fill values become NaN.
func ReadRaw(path string) (*grid.Dataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, domain.ErrDecode, err)
	}
	defer nc.Close()

	ds := grid.NewDataset()
	if ds.Lat, err = coordFloats(nc, "latitude", "lat"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if ds.Lon, err = coordFloats(nc, "longitude", "lon"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if ds.Times, err = readTimes(nc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if levels, err := coordFloats(nc, "plevel", "level"); err == nil {
		ds.Levels = make([]int, len(levels))
		for i, l := range levels {
			ds.Levels[i] = int(math.Round(l))
		}
	}

	if attrs := nc.Attributes(); attrs != nil {
		for _, key := range attrs.Keys() {
			if v, ok := attrs.Get(key); ok {
				if s, ok := v.(string); ok {
					ds.Attrs[key] = s
				}
			}
		}
	}

	for _, name := range nc.ListVariables() {
		if coordVars[name] {
			continue
		}
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("%s var %s: %w: %v", path, name, domain.ErrDecode, err)
		}
		values, err := vg.Values()
		if err != nil {
			return nil, fmt.Errorf("%s var %s: %w: %v", path, name, domain.ErrDecode, err)
		}

		dims := make([]string, len(vg.Dimensions()))
		for i, d := range vg.Dimensions() {
			if canonical, ok := dimRename[d]; ok {
				dims[i] = canonical
			} else {
				dims[i] = d
			}
		}
		a := &grid.Array{
			Name:   name,
			Dims:   dims,
			Shape:  shapeOf(values),
			Values: flatten(values, fillValueOf(vg)),
		}
		ds.AddVar(a)
	}
	return ds, nil
}

// coordFloats reads a coordinate variable under any of the given names.
func coordFloats(nc api.Group, names ...string) ([]float64, error) {
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		values, err := vg.Values()
		if err != nil {
			return nil, fmt.Errorf("coordinate %s: %w: %v", name, domain.ErrDecode, err)
		}
		return flatten(values, 0), nil
	}
	return nil, fmt.Errorf("coordinate %s: %w", names[0], domain.ErrDecode)
}

// readTimes reads the valid times. Artifacts carry them as epoch seconds in
// the datetime coordinate (the time coordinate holds elapsed offsets there);
// wgrib2 interchange files store epoch seconds directly in time.
func readTimes(nc api.Group) ([]time.Time, error) {
	secs, err := coordFloats(nc, "datetime", "time")
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(secs))
	for i, s := range secs {
		times[i] = time.Unix(int64(s), 0).UTC()
	}
	return times, nil
}

func fillValueOf(vg api.VarGetter) float64 {
	if attrs := vg.Attributes(); attrs != nil {
		if v, ok := attrs.Get("_FillValue"); ok {
			return flatten(v, 0)[0]
		}
	}
	return wgrib2FillValue
}

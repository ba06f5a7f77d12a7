package netcdfio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

// Writer serializes harmonized datasets as flat NetCDF artifacts. Existing
// artifacts are replaced, never appended to.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

func (w *Writer) Format() string { return "netcdf" }

// Write serializes ds to dir/name.nc and returns the path. Coordinates
// follow the artifact convention: lat/lon as float32, level as int32 hPa,
// time as elapsed seconds from the first valid time with the absolute times
// in the datetime coordinate.
func (w *Writer) Write(_ context.Context, ds *grid.Dataset, dir, name string) (string, error) {
	path := filepath.Join(dir, name+".nc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if err := addGlobalAttrs(cw, ds.Attrs); err != nil {
		cw.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.addCoords(cw, ds); err != nil {
		cw.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	fill := float32(math.NaN())
	for _, varName := range ds.VarNames() {
		a := ds.Vars[varName]
		v := api.Variable{
			Values:     nestFloat32(a.Values, a.Shape, fill),
			Dimensions: a.Dims,
		}
		if err := cw.AddVar(varName, v); err != nil {
			cw.Close()
			return "", fmt.Errorf("write %s var %s: %w", path, varName, err)
		}
	}

	if err := cw.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	w.logger.Debug("netcdf artifact written", "path", path, "vars", len(ds.Vars))
	return path, nil
}

func (w *Writer) addCoords(cw api.Writer, ds *grid.Dataset) error {
	lat := make([]float32, len(ds.Lat))
	for i, v := range ds.Lat {
		lat[i] = float32(v)
	}
	if err := cw.AddVar("lat", api.Variable{Values: lat, Dimensions: []string{grid.DimLat}}); err != nil {
		return err
	}

	lon := make([]float32, len(ds.Lon))
	for i, v := range ds.Lon {
		lon[i] = float32(v)
	}
	if err := cw.AddVar("lon", api.Variable{Values: lon, Dimensions: []string{grid.DimLon}}); err != nil {
		return err
	}

	if len(ds.Levels) > 0 {
		levels := make([]int32, len(ds.Levels))
		for i, l := range ds.Levels {
			levels[i] = int32(l)
		}
		if err := cw.AddVar("level", api.Variable{Values: levels, Dimensions: []string{grid.DimLevel}}); err != nil {
			return err
		}
	}

	// The canonical time axis is the elapsed offset from the first valid
	// time; the absolute times ride along as the datetime coordinate,
	// expanded over batch.
	offsetUnits, err := util.NewOrderedMap(
		[]string{"units"},
		map[string]interface{}{"units": "seconds"},
	)
	if err != nil {
		return err
	}
	if err := cw.AddVar("time", api.Variable{
		Values:     ds.OffsetSeconds(),
		Dimensions: []string{grid.DimTime},
		Attributes: offsetUnits,
	}); err != nil {
		return err
	}

	secs := make([]float64, len(ds.Times))
	for i, t := range ds.Times {
		secs[i] = float64(t.Unix())
	}
	dims := []string{grid.DimTime}
	var values interface{} = secs
	if ds.HasBatch {
		dims = []string{grid.DimBatch, grid.DimTime}
		values = [][]float64{secs}
	}
	epochUnits, err := util.NewOrderedMap(
		[]string{"units"},
		map[string]interface{}{"units": "seconds since 1970-01-01 00:00:00.0 0:00"},
	)
	if err != nil {
		return err
	}
	return cw.AddVar("datetime", api.Variable{
		Values:     values,
		Dimensions: dims,
		Attributes: epochUnits,
	})
}

// addGlobalAttrs carries the dataset's provenance attributes onto the file.
func addGlobalAttrs(cw api.Writer, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	values := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		keys = append(keys, k)
		values[k] = v
	}
	sort.Strings(keys)
	am, err := util.NewOrderedMap(keys, values)
	if err != nil {
		return err
	}
	return cw.AddAttributes(am)
}

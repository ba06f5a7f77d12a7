package zarrstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDataset() *grid.Dataset {
	t0 := time.Date(2025, 7, 20, 6, 0, 0, 0, time.UTC)
	ds := &grid.Dataset{
		Lat:      []float64{10, 0, -10},
		Lon:      []float64{100, 110},
		Levels:   []int{500, 1000},
		Times:    []time.Time{t0, t0.Add(6 * time.Hour)},
		HasBatch: true,
		Vars:     map[string]*grid.Array{},
		Attrs:    map[string]string{"source": "gdas"},
	}
	temp := make([]float64, 1*2*2*3*2)
	for i := range temp {
		temp[i] = float64(i)
	}
	temp[5] = math.NaN()
	ds.Vars["temperature"] = &grid.Array{
		Name:   "temperature",
		Dims:   []string{grid.DimBatch, grid.DimTime, grid.DimLevel, grid.DimLat, grid.DimLon},
		Shape:  []int{1, 2, 2, 3, 2},
		Values: temp,
	}
	ds.Vars["land_sea_mask"] = &grid.Array{
		Name:   "land_sea_mask",
		Dims:   []string{grid.DimLat, grid.DimLon},
		Shape:  []int{3, 2},
		Values: []float64{1, 0, 0, 1, 1, 0},
	}
	return ds
}

func readZarray(t *testing.T, path string) zarrayMeta {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var meta zarrayMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	return meta
}

func readChunkF4(t *testing.T, path string) []float32 {
	raw := readChunk(t, path)
	vals := make([]float32, len(raw)/4)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vals
}

func readChunkF8(t *testing.T, path string) []float64 {
	raw := readChunk(t, path)
	vals := make([]float64, len(raw)/8)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return vals
}

func readChunk(t *testing.T, path string) []byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := zlib.NewReader(f)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	return raw
}

func TestWriteStore(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(discard())

	path, err := w.Write(context.Background(), testDataset(), dir, "artifact")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "artifact.zarr"), path)

	group, err := os.ReadFile(filepath.Join(path, ".zgroup"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"zarr_format": 2}`, string(group))

	meta := readZarray(t, filepath.Join(path, "temperature", ".zarray"))
	assert.Equal(t, []int{1, 2, 2, 3, 2}, meta.Shape)
	assert.Equal(t, []int{1, 1, 2, 3, 2}, meta.Chunks)
	assert.Equal(t, "<f4", meta.Dtype)
	assert.Equal(t, "NaN", meta.FillValue)
	assert.Equal(t, "C", meta.Order)

	var attrs map[string][]string
	data, err := os.ReadFile(filepath.Join(path, "temperature", ".zattrs"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &attrs))
	assert.Equal(t, []string{"batch", "time", "level", "lat", "lon"}, attrs["_ARRAY_DIMENSIONS"])
}

func TestChunkPerTimeStep(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(discard())

	path, err := w.Write(context.Background(), testDataset(), dir, "artifact")
	require.NoError(t, err)

	first := readChunkF4(t, filepath.Join(path, "temperature", "0.0.0.0.0"))
	require.Len(t, first, 12)
	assert.InDelta(t, 0, first[0], 1e-6)
	assert.InDelta(t, 4, first[4], 1e-6)
	assert.True(t, math.IsNaN(float64(first[5])))

	second := readChunkF4(t, filepath.Join(path, "temperature", "0.1.0.0.0"))
	require.Len(t, second, 12)
	assert.InDelta(t, 12, second[0], 1e-6)
	assert.InDelta(t, 23, second[11], 1e-6)
}

func TestCoordinateArrays(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(discard())

	path, err := w.Write(context.Background(), testDataset(), dir, "artifact")
	require.NoError(t, err)

	lat := readChunkF4(t, filepath.Join(path, "lat", "0"))
	assert.Equal(t, []float32{10, 0, -10}, lat)

	meta := readZarray(t, filepath.Join(path, "level", ".zarray"))
	assert.Equal(t, "<i4", meta.Dtype)

	meta = readZarray(t, filepath.Join(path, "time", ".zarray"))
	assert.Equal(t, "<f8", meta.Dtype)
	assert.Equal(t, []int{2}, meta.Shape)

	// time carries elapsed offsets from the first valid time.
	offsets := readChunkF8(t, filepath.Join(path, "time", "0"))
	assert.Equal(t, []float64{0, 6 * 3600}, offsets)

	mask := readChunkF4(t, filepath.Join(path, "land_sea_mask", "0.0"))
	assert.Equal(t, []float32{1, 0, 0, 1, 1, 0}, mask)
}

func TestDatetimeCoordinate(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(discard())

	path, err := w.Write(context.Background(), testDataset(), dir, "artifact")
	require.NoError(t, err)

	meta := readZarray(t, filepath.Join(path, "datetime", ".zarray"))
	assert.Equal(t, "<f8", meta.Dtype)
	assert.Equal(t, []int{1, 2}, meta.Shape)

	var attrs map[string][]string
	data, err := os.ReadFile(filepath.Join(path, "datetime", ".zattrs"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &attrs))
	assert.Equal(t, []string{"batch", "time"}, attrs["_ARRAY_DIMENSIONS"])

	t0 := time.Date(2025, 7, 20, 6, 0, 0, 0, time.UTC)
	got := readChunkF8(t, filepath.Join(path, "datetime", "0.0"))
	assert.Equal(t, []float64{float64(t0.Unix()), float64(t0.Add(6 * time.Hour).Unix())}, got)
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(discard())

	stale := filepath.Join(dir, "artifact.zarr", "old_var")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, ".zarray"), []byte("{}"), 0o644))

	path, err := w.Write(context.Background(), testDataset(), dir, "artifact")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(path, "old_var"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(path, "temperature", ".zarray"))
	assert.NoError(t, err)
}

// Package zarrstore serializes harmonized datasets as Zarr v2 directory
// stores, the chunked layout the inference side consumes with xarray. Each
// array carries the _ARRAY_DIMENSIONS attribute xarray expects, chunks are
// zlib-compressed float32 in C order, and a store is replaced wholesale on
// rewrite so stale chunks from a previous run never survive.
package zarrstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

const zarrFormat = 2

type zarrayMeta struct {
	ZarrFormat int         `json:"zarr_format"`
	Shape      []int       `json:"shape"`
	Chunks     []int       `json:"chunks"`
	Dtype      string      `json:"dtype"`
	Compressor interface{} `json:"compressor"`
	FillValue  interface{} `json:"fill_value"`
	Order      string      `json:"order"`
	Filters    interface{} `json:"filters"`
}

type compressorMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// Writer writes Zarr v2 stores.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

func (w *Writer) Format() string { return "zarr" }

// Write serializes ds to dir/name.zarr and returns the path. An existing
// store under the same name is removed first.
func (w *Writer) Write(_ context.Context, ds *grid.Dataset, dir, name string) (string, error) {
	root := filepath.Join(dir, name+".zarr")
	if err := os.RemoveAll(root); err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(root, ".zgroup"), map[string]int{"zarr_format": zarrFormat}); err != nil {
		return "", err
	}
	attrs := map[string]string{}
	for k, v := range ds.Attrs {
		attrs[k] = v
	}
	if err := writeJSON(filepath.Join(root, ".zattrs"), attrs); err != nil {
		return "", err
	}

	if err := w.writeCoords(root, ds); err != nil {
		return "", err
	}
	for _, varName := range ds.VarNames() {
		a := ds.Vars[varName]
		if err := writeArray(root, varName, a.Dims, a.Shape, chunksFor(a), encodeF4(a.Values), "<f4", "NaN"); err != nil {
			return "", err
		}
	}

	w.logger.Debug("zarr store written", "path", root, "vars", len(ds.Vars))
	return root, nil
}

func (w *Writer) writeCoords(root string, ds *grid.Dataset) error {
	if err := writeCoord1D(root, "lat", grid.DimLat, encodeF4(ds.Lat), len(ds.Lat), "<f4"); err != nil {
		return err
	}
	if err := writeCoord1D(root, "lon", grid.DimLon, encodeF4(ds.Lon), len(ds.Lon), "<f4"); err != nil {
		return err
	}
	if len(ds.Levels) > 0 {
		if err := writeCoord1D(root, "level", grid.DimLevel, encodeI4(ds.Levels), len(ds.Levels), "<i4"); err != nil {
			return err
		}
	}
	// The canonical time axis is the elapsed offset from the first valid
	// time; the absolute times ride along as the datetime coordinate,
	// expanded over batch.
	offsets := ds.OffsetSeconds()
	if err := writeCoord1D(root, "time", grid.DimTime, encodeF8(offsets), len(offsets), "<f8"); err != nil {
		return err
	}
	secs := make([]float64, len(ds.Times))
	for i, t := range ds.Times {
		secs[i] = float64(t.Unix())
	}
	dims := []string{grid.DimTime}
	shape := []int{len(secs)}
	if ds.HasBatch {
		dims = []string{grid.DimBatch, grid.DimTime}
		shape = []int{1, len(secs)}
	}
	return writeArray(root, "datetime", dims, shape, shape, encodeF8(secs), "<f8", nil)
}

func writeCoord1D(root, name, dim string, raw []byte, n int, dtype string) error {
	return writeArray(root, name, []string{dim}, []int{n}, []int{n}, raw, dtype, nil)
}

// writeArray lays down one zarr array: metadata, dimension attributes, and
// the compressed chunks. Chunk boundaries fall on the leading chunked
// dimensions only, so every chunk is one contiguous slab of the C-order
// values.
func writeArray(root, name string, dims []string, shape, chunks []int, raw []byte, dtype string, fill interface{}) error {
	adir := filepath.Join(root, name)
	if err := os.MkdirAll(adir, 0o755); err != nil {
		return err
	}

	meta := zarrayMeta{
		ZarrFormat: zarrFormat,
		Shape:      shape,
		Chunks:     chunks,
		Dtype:      dtype,
		Compressor: compressorMeta{ID: "zlib", Level: 5},
		FillValue:  fill,
		Order:      "C",
		Filters:    nil,
	}
	if err := writeJSON(filepath.Join(adir, ".zarray"), meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(adir, ".zattrs"), map[string][]string{"_ARRAY_DIMENSIONS": dims}); err != nil {
		return err
	}

	counts := make([]int, len(shape))
	total := 1
	for i := range shape {
		counts[i] = shape[i] / chunks[i]
		total *= counts[i]
	}
	itemSize := len(raw) / max(1, product(shape))
	chunkBytes := itemSize * product(chunks)

	for k := 0; k < total; k++ {
		idx := make([]string, len(counts))
		rem := k
		for i := len(counts) - 1; i >= 0; i-- {
			idx[i] = strconv.Itoa(rem % counts[i])
			rem /= counts[i]
		}
		chunk := raw[k*chunkBytes : (k+1)*chunkBytes]
		if err := writeChunk(filepath.Join(adir, strings.Join(idx, ".")), chunk); err != nil {
			return err
		}
	}
	return nil
}

// chunksFor chunks per (batch, time) slab: leading batch/time dimensions at
// one, spatial and vertical dimensions whole.
func chunksFor(a *grid.Array) []int {
	chunks := append([]int(nil), a.Shape...)
	for i, d := range a.Dims {
		if d == grid.DimBatch || d == grid.DimTime {
			chunks[i] = 1
		}
	}
	return chunks
}

func writeChunk(path string, raw []byte) error {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, 5)
	if err != nil {
		return err
	}
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func encodeF4(vals []float64) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}

func encodeF8(vals []float64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

func encodeI4(vals []int) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
	}
	return out
}

func product(s []int) int {
	p := 1
	for _, v := range s {
		p *= v
	}
	return p
}

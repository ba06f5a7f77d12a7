// Package gribnative decodes GRIB2 archive files in process, without
// shelling out. Messages are matched by GRIB2 identity (discipline,
// category, number) and fixed-surface type/value, mirroring what the wgrib2
// selectors match textually.
package gribnative

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/nilsmagnus/grib/griblib"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

// Decoder reads GRIB2 files with the pure-Go grib library.
type Decoder struct {
	logger *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) Name() string { return "native" }

// Extract decodes every (variable, level) combination the spec selects from
// the file. Valid times are derived from the reference time plus forecast
// offset; accumulated fields additionally get their accumulation period so
// they are stamped at the window end like the wgrib2 path reports them.
func (d *Decoder) Extract(ctx context.Context, file string, spec domain.VariableSpec) ([]*grid.Dataset, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, domain.ErrNotFound)
	}
	defer f.Close()

	messages, err := griblib.ReadMessages(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", file, domain.ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Debug("grib file read", "file", file, "messages", len(messages))

	ds, err := extractFromMessages(messages, spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return []*grid.Dataset{ds}, nil
}

func extractFromMessages(messages []*griblib.Message, spec domain.VariableSpec) (*grid.Dataset, error) {
	levels := spec.Levels
	if spec.LevelKind != domain.LevelIsobaric {
		levels = []int{spec.LevelValue}
	}

	ds := grid.NewDataset()
	if spec.LevelKind == domain.LevelIsobaric {
		ds.Levels = append([]int(nil), spec.Levels...)
	}

	for _, id := range spec.Vars {
		var varData [][]float64
		for _, level := range levels {
			msg := selectMessage(messages, id, spec.LevelKind, level)
			if msg == nil {
				return nil, fmt.Errorf("%s at %s %d: no matching message: %w",
					id.Source, spec.LevelKind.String(), level, domain.ErrNotFound)
			}
			if len(ds.Times) == 0 {
				if err := takeCoords(ds, msg, id.ValidTimeOffset); err != nil {
					return nil, err
				}
			}
			vals := make([]float64, len(msg.Section7.Data))
			for i, v := range msg.Section7.Data {
				vals[i] = float64(v)
			}
			if want := len(ds.Lat) * len(ds.Lon); len(vals) != want {
				return nil, fmt.Errorf("%s at %d: %d points, grid has %d: %w",
					id.Source, level, len(vals), want, domain.ErrDecode)
			}
			varData = append(varData, vals)
		}
		ds.AddVar(buildArray(id.Source, spec, varData, len(ds.Lat), len(ds.Lon)))
	}
	return ds, nil
}

// selectMessage finds the message matching the variable identity and level.
// When both an interval-statistic and a point-in-time encoding are present
// (precipitation type fields), the point-in-time template wins.
func selectMessage(messages []*griblib.Message, id domain.VarID, kind domain.LevelKind, level int) *griblib.Message {
	var found *griblib.Message
	for _, m := range messages {
		if uint8(m.Section0.Discipline) != id.Discipline {
			continue
		}
		pdt := m.Section4.ProductDefinitionTemplate
		if uint8(pdt.ParameterCategory) != id.Category || uint8(pdt.ParameterNumber) != id.Number {
			continue
		}
		if uint8(pdt.FirstSurface.Type) != kind.GRIB2Type() || !surfaceMatches(pdt.FirstSurface, kind, level) {
			continue
		}
		if found == nil || pointInTime(m) && !pointInTime(found) {
			found = m
		}
	}
	return found
}

// surfaceMatches compares the coded fixed-surface value against the
// requested level: Pa for isobaric surfaces, metres above ground otherwise.
func surfaceMatches(s griblib.Surface, kind domain.LevelKind, level int) bool {
	coded := float64(s.Value) / math.Pow(10, float64(s.Scale))
	switch kind {
	case domain.LevelIsobaric:
		return coded == float64(level)*100
	case domain.LevelHeightAboveGround:
		return coded == float64(level)
	default:
		return true
	}
}

func pointInTime(m *griblib.Message) bool {
	return m.Section4.ProductDefinitionTemplateNumber == 0
}

// takeCoords fills the dataset's lat/lon/time coordinates from one message.
func takeCoords(ds *grid.Dataset, msg *griblib.Message, validOffset time.Duration) error {
	g, ok := msg.Section3.Definition.(*griblib.Grid0)
	if !ok {
		return fmt.Errorf("grid template %d: only regular lat/lon supported: %w",
			msg.Section3.TemplateNumber, domain.ErrDecode)
	}
	ds.Lat = axis(float64(g.La1), float64(g.La2), int(g.Nj))
	ds.Lon = axis(float64(g.Lo1), float64(g.Lo2), int(g.Ni))

	ref := msg.Section1.ReferenceTime
	valid := time.Date(int(ref.Year), time.Month(ref.Month), int(ref.Day),
		int(ref.Hour), int(ref.Minute), int(ref.Second), 0, time.UTC).
		Add(time.Duration(msg.Section4.ProductDefinitionTemplate.ForecastTime) * time.Hour).
		Add(validOffset)
	ds.Times = []time.Time{valid}
	return nil
}

// axis expands the coded first/last coordinates (micro-degrees) into a
// coordinate array of n points.
func axis(first, last float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = first * 1e-6
		return out
	}
	step := (last - first) / float64(n-1)
	for i := range out {
		out[i] = (first + step*float64(i)) * 1e-6
	}
	return out
}

// buildArray stacks per-level slabs into one labeled array.
func buildArray(name string, spec domain.VariableSpec, varData [][]float64, nlat, nlon int) *grid.Array {
	if spec.LevelKind != domain.LevelIsobaric {
		a := grid.NewArray(name, []string{grid.DimTime, grid.DimLat, grid.DimLon}, []int{1, nlat, nlon})
		copy(a.Values, varData[0])
		return a
	}
	a := grid.NewArray(name,
		[]string{grid.DimTime, grid.DimLevel, grid.DimLat, grid.DimLon},
		[]int{1, len(varData), nlat, nlon})
	for li, slab := range varData {
		copy(a.Values[li*nlat*nlon:(li+1)*nlat*nlon], slab)
	}
	return a
}

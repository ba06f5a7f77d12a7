package gribnative

import (
	"errors"
	"testing"
	"time"

	"github.com/nilsmagnus/grib/griblib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

// message builds a GRIB2 message on a 3x4 grid spanning 10..-10 lat and
// 100..110 lon, initialized 2025-07-20T06Z.
func message(discipline, category, number, surfaceType uint8, surfaceValue uint32, templateNum uint16, forecastTime uint32, fill float64) *griblib.Message {
	data := make([]float64, 12)
	for i := range data {
		data[i] = fill
	}
	m := &griblib.Message{}
	m.Section0.Discipline = discipline
	m.Section1.ReferenceTime = griblib.Time{Year: 2025, Month: 7, Day: 20, Hour: 6}
	m.Section3.Definition = &griblib.Grid0{
		Ni: 4, Nj: 3,
		La1: 10_000_000, Lo1: 100_000_000,
		La2: -10_000_000, Lo2: 110_000_000,
	}
	m.Section4.ProductDefinitionTemplateNumber = templateNum
	m.Section4.ProductDefinitionTemplate.ParameterCategory = category
	m.Section4.ProductDefinitionTemplate.ParameterNumber = number
	m.Section4.ProductDefinitionTemplate.ForecastTime = forecastTime
	m.Section4.ProductDefinitionTemplate.FirstSurface = griblib.Surface{Type: surfaceType, Value: surfaceValue}
	m.Section7.Data = data
	return m
}

func TestExtractFromMessages_Isobaric(t *testing.T) {
	spec := domain.VariableSpec{
		Selector: ":HGT|TMP:",
		Vars: []domain.VarID{
			{Source: "HGT", Discipline: 0, Category: 3, Number: 5, Scale: domain.Gravity},
			{Source: "TMP", Discipline: 0, Category: 0, Number: 0, Scale: 1},
		},
		LevelKind: domain.LevelIsobaric,
		Levels:    []int{500, 850},
	}

	messages := []*griblib.Message{
		message(0, 3, 5, 100, 50_000, 0, 0, 5500), // HGT 500 hPa
		message(0, 3, 5, 100, 85_000, 0, 0, 1400), // HGT 850 hPa
		message(0, 0, 0, 100, 50_000, 0, 0, 252),  // TMP 500 hPa
		message(0, 0, 0, 100, 85_000, 0, 0, 280),  // TMP 850 hPa
		message(0, 0, 0, 100, 100_000, 0, 0, 290), // TMP 1000 hPa, not requested
	}

	ds, err := extractFromMessages(messages, spec)
	require.NoError(t, err)

	assert.Equal(t, []int{500, 850}, ds.Levels)
	assert.Equal(t, []time.Time{time.Date(2025, 7, 20, 6, 0, 0, 0, time.UTC)}, ds.Times)
	assert.InDeltaSlice(t, []float64{10, 0, -10}, ds.Lat, 1e-9)
	assert.InDeltaSlice(t, []float64{100, 100 + 10.0/3, 100 + 20.0/3, 110}, ds.Lon, 1e-9)

	hgt := ds.Vars["HGT"]
	require.NotNil(t, hgt)
	assert.Equal(t, []string{grid.DimTime, grid.DimLevel, grid.DimLat, grid.DimLon}, hgt.Dims)
	assert.Equal(t, []int{1, 2, 3, 4}, hgt.Shape)
	assert.Equal(t, 5500.0, hgt.At(0, 0, 0, 0))
	assert.Equal(t, 1400.0, hgt.At(0, 1, 0, 0))
	assert.Equal(t, 280.0, ds.Vars["TMP"].At(0, 1, 2, 3))
}

func TestExtractFromMessages_SurfaceAndForecastTime(t *testing.T) {
	spec := domain.VariableSpec{
		Selector:  ":LAND:",
		Vars:      []domain.VarID{{Source: "LAND_surface", Discipline: 2, Category: 0, Number: 0, Scale: 1}},
		LevelKind: domain.LevelSurface,
	}
	messages := []*griblib.Message{message(2, 0, 0, 1, 0, 0, 6, 1)}

	ds, err := extractFromMessages(messages, spec)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC), ds.Times[0])
	land := ds.Vars["LAND_surface"]
	require.NotNil(t, land)
	assert.Equal(t, []string{grid.DimTime, grid.DimLat, grid.DimLon}, land.Dims)
	assert.Empty(t, ds.Levels)
}

func TestExtractFromMessages_AccumulationStampedAtWindowEnd(t *testing.T) {
	spec := domain.VariableSpec{
		Selector: ":APCP:",
		Vars: []domain.VarID{{
			Source: "APCP_surface", Discipline: 0, Category: 1, Number: 8,
			Scale: domain.PrecipDepthScale, ValidTimeOffset: domain.AccumPeriod,
		}},
		LevelKind: domain.LevelSurface,
	}
	// Period start f006 plus the 6h accumulation window.
	messages := []*griblib.Message{message(0, 1, 8, 1, 0, 8, 6, 0.5)}

	ds, err := extractFromMessages(messages, spec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 20, 18, 0, 0, 0, time.UTC), ds.Times[0])
}

func TestSelectMessage_PrefersPointInTime(t *testing.T) {
	id := domain.VarID{Source: "PRATE", Discipline: 0, Category: 1, Number: 7, Scale: 1}
	interval := message(0, 1, 7, 1, 0, 8, 6, 111)
	instant := message(0, 1, 7, 1, 0, 0, 6, 222)

	got := selectMessage([]*griblib.Message{interval, instant}, id, domain.LevelSurface, 0)
	require.NotNil(t, got)
	assert.Equal(t, 222.0, got.Section7.Data[0])

	// Order independent.
	got = selectMessage([]*griblib.Message{instant, interval}, id, domain.LevelSurface, 0)
	assert.Equal(t, 222.0, got.Section7.Data[0])
}

func TestExtractFromMessages_MissingLevelIsNotFound(t *testing.T) {
	spec := domain.VariableSpec{
		Selector:  ":HGT:",
		Vars:      []domain.VarID{{Source: "HGT", Discipline: 0, Category: 3, Number: 5, Scale: domain.Gravity}},
		LevelKind: domain.LevelIsobaric,
		Levels:    []int{500, 850},
	}
	messages := []*griblib.Message{message(0, 3, 5, 100, 50_000, 0, 0, 5500)}

	_, err := extractFromMessages(messages, spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAxis(t *testing.T) {
	assert.InDeltaSlice(t, []float64{90, 0, -90}, axis(90_000_000, -90_000_000, 3), 1e-9)
	assert.InDeltaSlice(t, []float64{0}, axis(0, 0, 1), 1e-9)
}

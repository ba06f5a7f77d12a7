package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForecastKey(t *testing.T) {
	key, err := ParseForecastKey("20250720_06_004")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.July, 20, 6, 0, 0, 0, time.UTC), key.Cycle)
	assert.Equal(t, 4, key.Lead)
	assert.Equal(t, "20250720_06_004", key.String())
	assert.Equal(t, time.Date(2025, time.July, 20, 10, 0, 0, 0, time.UTC), key.ValidTime())
}

func TestParseForecastKey_Invalid(t *testing.T) {
	for _, in := range []string{"", "20250720", "20250720_6_004", "20250720_06_04", "2025072_06_004", "20251340_06_004"} {
		_, err := ParseForecastKey(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestForecastKey_FileNames(t *testing.T) {
	key, err := ParseForecastKey("20250720_06_004")
	require.NoError(t, err)

	assert.Equal(t, "20250720_06_004_pgrba.grib2", key.StemFileName(FamilyPrimary))
	assert.Equal(t, "20250720_06_004_pgrbb.grib2", key.StemFileName(FamilySecondary))
	assert.Equal(t, "gdas.t06z.pgrb2.0p25.f004", key.CycleFileName(FamilyPrimary))
	assert.Equal(t, "gdas.t06z.pgrb2b.0p25.f004", key.CycleFileName(FamilySecondary))
	assert.Equal(t, "gdas.t*z.pgrb2.0p25.f004", key.CycleGlob(FamilyPrimary))
}

func TestForecastKey_WithLead(t *testing.T) {
	key, err := ParseForecastKey("20250720_06_000")
	require.NoError(t, err)

	shifted := key.WithLead(6)
	assert.Equal(t, key.Cycle, shifted.Cycle)
	assert.Equal(t, 6, shifted.Lead)
	assert.Equal(t, "20250720_06_006", shifted.String())
}

func TestArchiveFileSet_Require(t *testing.T) {
	set := ArchiveFileSet{FamilyPrimary: "/data/20250720_06_004_pgrba.grib2"}

	path, err := set.Require(FamilyPrimary)
	require.NoError(t, err)
	assert.Equal(t, "/data/20250720_06_004_pgrba.grib2", path)

	_, err = set.Require(FamilySecondary)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, set.Has(FamilySecondary))
}

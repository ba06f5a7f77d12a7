package grid

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

func harmonizedAt(t *testing.T, at time.Time, value float64) *Dataset {
	t.Helper()
	ds, err := Assemble([]*Dataset{
		slice("TMP_2maboveground", []time.Time{at}, nil, value),
		slice("LAND_surface", []time.Time{at}, nil, 1),
	})
	require.NoError(t, err)
	return ds
}

func TestAlignCyclePair_ShiftDerivedFromLater(t *testing.T) {
	// The earlier dataset carries an off-by-one-cycle timestamp, as happens
	// when a selector picked the wrong reference time. The shift comes from
	// the later dataset's first timestamp, not from the earlier one.
	earlier := harmonizedAt(t, t0.Add(-17*time.Hour), 280)
	later := harmonizedAt(t, t0.Add(6*time.Hour), 285)

	require.NoError(t, AlignCyclePair(earlier, later, domain.CycleInterval))
	assert.Equal(t, t0, earlier.Times[0])
}

func TestConcatTime_CyclePair(t *testing.T) {
	earlier := harmonizedAt(t, t0, 280)
	later := harmonizedAt(t, t0.Add(6*time.Hour), 285)

	require.NoError(t, AlignCyclePair(earlier, later, domain.CycleInterval))
	out, err := ConcatTime(earlier, later)
	require.NoError(t, err)

	require.Equal(t, []time.Time{t0, t0.Add(6 * time.Hour)}, out.Times)
	assert.Equal(t, []time.Duration{0, 6 * time.Hour}, out.TimeOffsets)

	t2m := out.Vars["2m_temperature"]
	assert.Equal(t, []string{DimBatch, DimTime, DimLat, DimLon}, t2m.Dims)
	assert.Equal(t, []int{1, 2, 3, 2}, t2m.Shape)
	assert.Equal(t, 280.0, t2m.At(0, 0, 0, 0))
	assert.Equal(t, 285.0, t2m.At(0, 1, 0, 0))

	lsm := out.Vars["land_sea_mask"]
	assert.Equal(t, []string{DimLat, DimLon}, lsm.Dims)
}

func TestConcatTime_OrderIndependent(t *testing.T) {
	forward, err := ConcatTime(harmonizedAt(t, t0, 280), harmonizedAt(t, t0.Add(6*time.Hour), 285))
	require.NoError(t, err)
	reversed, err := ConcatTime(harmonizedAt(t, t0.Add(6*time.Hour), 285), harmonizedAt(t, t0, 280))
	require.NoError(t, err)

	if diff := cmp.Diff(forward, reversed, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("concatenation depends on input order (-forward +reversed):\n%s", diff)
	}
}

func TestConcatTime_SortsOutOfOrderInputs(t *testing.T) {
	a := harmonizedAt(t, t0.Add(6*time.Hour), 285)
	b := harmonizedAt(t, t0, 280)

	out, err := ConcatTime(a, b)
	require.NoError(t, err)
	assert.Equal(t, t0, out.Times[0])
	assert.Equal(t, 280.0, out.Vars["2m_temperature"].At(0, 0, 0, 0))
	assert.Equal(t, 285.0, out.Vars["2m_temperature"].At(0, 1, 0, 0))
}

func TestConcatTime_DifferingVariableSetsConflict(t *testing.T) {
	full := harmonizedAt(t, t0, 280)

	noMask, err := Assemble([]*Dataset{
		slice("TMP_2maboveground", []time.Time{t0.Add(6 * time.Hour)}, nil, 285),
	})
	require.NoError(t, err)

	_, err = ConcatTime(full, noMask)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMergeConflict), "a missing variable must conflict, not silently drop")
}

func TestConcatTime_DuplicateTimestampIsOrderingError(t *testing.T) {
	a := harmonizedAt(t, t0, 280)
	b := harmonizedAt(t, t0, 285)

	_, err := ConcatTime(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeOrdering))
}

func TestConcatTime_GridMismatchConflicts(t *testing.T) {
	a := harmonizedAt(t, t0, 280)
	b := harmonizedAt(t, t0.Add(6*time.Hour), 285)
	b.Lat = []float64{-90, 0, 90}

	_, err := ConcatTime(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMergeConflict))
}

func TestConcatTime_RequiresHarmonized(t *testing.T) {
	raw := slice("TMP_2maboveground", []time.Time{t0}, nil, 280)
	_, err := ConcatTime(raw, raw)
	assert.Error(t, err)
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

func specBySelector(t *testing.T, mode domain.LevelMode, selector string) domain.VariableSpec {
	t.Helper()
	for _, s := range domain.Registry(mode) {
		if s.Selector == selector {
			return s
		}
	}
	t.Fatalf("no spec with selector %q", selector)
	return domain.VariableSpec{}
}

func TestVarIDFor_ExactName(t *testing.T) {
	spec := specBySelector(t, domain.Levels13, ":TMP:")

	id, ok := varIDFor(spec, "TMP_2maboveground")
	require.True(t, ok)
	assert.Equal(t, "TMP_2maboveground", id.Source)
}

func TestVarIDFor_IsobaricNames(t *testing.T) {
	spec := specBySelector(t, domain.Levels13, ":SPFH|VVEL|VGRD|UGRD|HGT|TMP:")

	id, ok := varIDFor(spec, "HGT")
	require.True(t, ok)
	assert.Equal(t, domain.Gravity, id.Scale)

	id, ok = varIDFor(spec, "TMP_500mb")
	require.True(t, ok)
	assert.Equal(t, "TMP", id.Source)
}

func TestVarIDFor_RejectsStrayRecords(t *testing.T) {
	// A record at a level or height the spec never requested must not be
	// converted under that spec.
	isobaric := specBySelector(t, domain.Levels13, ":SPFH|VVEL|VGRD|UGRD|HGT|TMP:")
	_, ok := varIDFor(isobaric, "HGT_80maboveground")
	assert.False(t, ok)
	_, ok = varIDFor(isobaric, "TMP_975mb") // 975 absent from the coarse set
	assert.False(t, ok)

	twoMetre := specBySelector(t, domain.Levels13, ":TMP:")
	_, ok = varIDFor(twoMetre, "TMP_80maboveground")
	assert.False(t, ok)
	_, ok = varIDFor(twoMetre, "TMP")
	assert.False(t, ok)
}

func TestCycleStepSpec(t *testing.T) {
	var selected []string
	for _, s := range domain.Registry(domain.Levels13) {
		if cycleStepSpec(s) {
			selected = append(selected, s.Selector)
		}
	}
	assert.Contains(t, selected, ":LAND:")
	assert.Contains(t, selected, ":HGT:")
	assert.Contains(t, selected, ":SPFH|VVEL|VGRD|UGRD|HGT|TMP:")
	assert.NotContains(t, selected, ":APCP:")
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRegistry(t *testing.T) {
	require.NoError(t, VerifyRegistry(Levels13))
	require.NoError(t, VerifyRegistry(Levels37))
}

func TestRegistry_CoarseMode(t *testing.T) {
	specs := Registry(Levels13)

	for _, spec := range specs {
		assert.Equal(t, FamilyPrimary, spec.Family, "coarse mode never touches the secondary family")
	}

	var isobaric *VariableSpec
	for i := range specs {
		if specs[i].LevelKind == LevelIsobaric {
			isobaric = &specs[i]
		}
	}
	require.NotNil(t, isobaric)
	assert.Len(t, isobaric.Levels, 13)
	assert.Equal(t, ":(50|100|150|200|250|300|400|500|600|700|850|925|1000) mb:", isobaric.LevelSelector())
}

func TestRegistry_FineModeDrawsSecondaryLevels(t *testing.T) {
	specs := Registry(Levels37)

	var primaryLevels, secondaryLevels []int
	for _, spec := range specs {
		if spec.LevelKind != LevelIsobaric {
			continue
		}
		switch spec.Family {
		case FamilyPrimary:
			primaryLevels = spec.Levels
		case FamilySecondary:
			secondaryLevels = spec.Levels
		}
	}
	require.Len(t, primaryLevels, 31)
	require.Equal(t, []int{125, 175, 225, 775, 825, 875}, secondaryLevels)
	assert.Len(t, append(primaryLevels, secondaryLevels...), 37)
}

func TestRegistry_IsImmutable(t *testing.T) {
	first := Registry(Levels13)
	for i := range first {
		first[i].Selector = "mutated"
		for j := range first[i].Vars {
			first[i].Vars[j].Scale = -1
		}
		if len(first[i].Levels) > 0 {
			first[i].Levels = nil
		}
	}

	second := Registry(Levels13)
	require.NoError(t, VerifyRegistry(Levels13))
	assert.Equal(t, ":HGT:", second[0].Selector)
}

func TestUnitConversions(t *testing.T) {
	specs := Registry(Levels37)

	for _, spec := range specs {
		for _, v := range spec.Vars {
			canonical, ok := CanonicalName(v.Source)
			require.True(t, ok, "unmapped source %q", v.Source)

			switch canonical {
			case "geopotential", "geopotential_at_surface":
				assert.Equal(t, 9.80665, v.Scale, "%s must scale by standard gravity", v.Source)
			case "total_precipitation_6hr":
				assert.Equal(t, 1.0/1000.0, v.Scale, "%s must divide by water density", v.Source)
				assert.Equal(t, 6*time.Hour, v.ValidTimeOffset)
			default:
				assert.Equal(t, 1.0, v.Scale, "%s has a surprise conversion", v.Source)
			}
		}
	}
}

func TestLevelSelectors(t *testing.T) {
	specs := Registry(Levels13)

	bySelector := make(map[string]VariableSpec)
	for _, s := range specs {
		bySelector[s.Selector] = s
	}

	assert.Equal(t, ":surface:", bySelector[":HGT:"].LevelSelector())
	assert.Equal(t, ":2 m above ground:", bySelector[":TMP:"].LevelSelector())
	assert.Equal(t, ":mean sea level:", bySelector[":PRMSL:"].LevelSelector())
	assert.Equal(t, ":10 m above ground:", bySelector[":VGRD|UGRD:"].LevelSelector())
	assert.Equal(t, ":surface:", bySelector[":LAND:"].LevelSelector())
}

func TestBucketForLead(t *testing.T) {
	for lead := 0; lead <= 5; lead++ {
		b, err := BucketForLead(lead)
		require.NoError(t, err)
		assert.Equal(t, BucketAnalysis, b)
	}
	for lead := 6; lead <= 11; lead++ {
		b, err := BucketForLead(lead)
		require.NoError(t, err)
		assert.Equal(t, BucketAccum, b)
	}
	_, err := BucketForLead(12)
	assert.Error(t, err)
	_, err = BucketForLead(-1)
	assert.Error(t, err)
}

func TestIsStatic(t *testing.T) {
	assert.True(t, IsStatic("land_sea_mask"))
	assert.True(t, IsStatic("geopotential_at_surface"))
	assert.False(t, IsStatic("2m_temperature"))
	assert.False(t, IsStatic("geopotential"))
}

func TestArtifactName(t *testing.T) {
	cycle := time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC)

	assert.Equal(t,
		"source-gdas_date-2024011206_res-0.25_levels-13_steps-2",
		ArtifactName(cycle, Levels13, 2, nil))
	assert.Equal(t,
		"source-gdas_date-2024011206_res-0.25_levels-37_steps-2_fh-f000_f006",
		ArtifactName(cycle, Levels37, 2, []int{0, 6}))
}

func TestParseLevelMode(t *testing.T) {
	mode, err := ParseLevelMode(13)
	require.NoError(t, err)
	assert.Equal(t, Levels13, mode)

	mode, err = ParseLevelMode(37)
	require.NoError(t, err)
	assert.Equal(t, Levels37, mode)

	_, err = ParseLevelMode(20)
	assert.Error(t, err)
}

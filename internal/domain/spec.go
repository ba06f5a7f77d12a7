package domain

import (
	"fmt"
	"strings"
	"time"
)

// Gravity is the WMO standard gravity used to convert geopotential height
// (gpm) to geopotential (m²/s²).
const Gravity = 9.80665

// PrecipDepthScale converts accumulated precipitation mass per area (kg/m²)
// to depth (m) by dividing by the density of water, 1000 kg/m³.
const PrecipDepthScale = 1.0 / 1000.0

// AccumPeriod is the accumulation window of GDAS precipitation fields. The
// valid time of an accumulated field is the end of its window.
const AccumPeriod = 6 * time.Hour

// LevelMode selects the vertical level set of a run.
type LevelMode int

const (
	// Levels13 is the coarse 13-level mode served entirely by the primary family.
	Levels13 LevelMode = 13
	// Levels37 is the fine 37-level mode, drawing six extra levels from the
	// secondary family.
	Levels37 LevelMode = 37
)

// ParseLevelMode validates a configured level count.
func ParseLevelMode(n int) (LevelMode, error) {
	switch LevelMode(n) {
	case Levels13, Levels37:
		return LevelMode(n), nil
	}
	return 0, fmt.Errorf("level mode %d: want 13 or 37", n)
}

var (
	coarseLevels = []int{50, 100, 150, 200, 250, 300, 400, 500, 600, 700, 850, 925, 1000}

	fineLevels = []int{
		1, 2, 3, 5, 7, 10, 20, 30, 50, 70, 100, 150, 200, 250, 300, 350, 400,
		450, 500, 550, 600, 650, 700, 750, 800, 850, 900, 925, 950, 975, 1000,
	}

	// secondaryLevels are present only in the pgrb2b family.
	secondaryLevels = []int{125, 175, 225, 775, 825, 875}
)

// PrimaryLevels returns the isobaric levels (hPa) extracted from the primary
// family in this mode. The slice is a copy; the tables stay immutable.
func (m LevelMode) PrimaryLevels() []int {
	if m == Levels37 {
		return append([]int(nil), fineLevels...)
	}
	return append([]int(nil), coarseLevels...)
}

// SecondaryLevels returns the extra isobaric levels drawn from the secondary
// family, empty in coarse mode.
func (m LevelMode) SecondaryLevels() []int {
	if m == Levels37 {
		return append([]int(nil), secondaryLevels...)
	}
	return nil
}

// Bucket partitions leads by the fields their files contribute.
type Bucket int

const (
	// BucketAnalysis (f000–f005): surface analysis fields and the isobaric set.
	BucketAnalysis Bucket = iota
	// BucketAccum (f006–f011): land/sea mask and accumulated precipitation.
	BucketAccum
)

func (b Bucket) String() string {
	if b == BucketAccum {
		return "accum"
	}
	return "analysis"
}

// BucketForLead maps a forecast hour to its bucket.
func BucketForLead(lead int) (Bucket, error) {
	switch {
	case lead >= 0 && lead <= 5:
		return BucketAnalysis, nil
	case lead >= 6 && lead <= 11:
		return BucketAccum, nil
	}
	return 0, fmt.Errorf("lead f%03d outside the 0–11 extraction range", lead)
}

// LevelKind is the vertical coordinate convention of a spec.
type LevelKind uint8

const (
	LevelSurface LevelKind = iota
	LevelMeanSea
	LevelHeightAboveGround
	LevelIsobaric
)

func (k LevelKind) String() string {
	switch k {
	case LevelMeanSea:
		return "mean sea level"
	case LevelHeightAboveGround:
		return "height above ground"
	case LevelIsobaric:
		return "isobaric"
	default:
		return "surface"
	}
}

// GRIB2Type returns the GRIB2 fixed-surface type code for the kind.
func (k LevelKind) GRIB2Type() uint8 {
	switch k {
	case LevelMeanSea:
		return 101
	case LevelHeightAboveGround:
		return 103
	case LevelIsobaric:
		return 100
	default:
		return 1
	}
}

// VarID identifies one physical variable a spec yields: the name the decoder
// backends emit for it, its GRIB2 identification for in-process matching, and
// the unit conversion applied at extraction time.
type VarID struct {
	Source     string // decoder-emitted name, e.g. "TMP_2maboveground" or "HGT"
	Discipline uint8
	Category   uint8
	Number     uint8

	// Scale is the unit conversion multiplier. 1 means no conversion.
	Scale float64

	// ValidTimeOffset is the accumulation window of the variable. Backends
	// that derive valid times from the forecast period start (the in-process
	// GRIB reader) add it so accumulated fields are stamped at their
	// accumulation end; the wgrib2 path already reports verification times
	// and ignores it.
	ValidTimeOffset time.Duration
}

// VariableSpec describes one decoder invocation: a variable selector group,
// its vertical levels, the file family it reads from, and extraction policy.
type VariableSpec struct {
	Selector   string // wgrib2 -match variable selector, e.g. ":VGRD|UGRD:"
	Vars       []VarID
	LevelKind  LevelKind
	LevelValue int   // fixed level for LevelHeightAboveGround (m)
	Levels     []int // isobaric levels (hPa) for LevelIsobaric
	Family     Family
	Bucket     Bucket

	// FirstStepOnly restricts the spec to the first time step of a job.
	// Consumption is tracked per job, never by mutating the registry.
	FirstStepOnly bool

	// Mandatory fails the whole job when extraction fails, instead of
	// skipping the variable with a diagnostic.
	Mandatory bool
}

// LevelSelector renders the wgrib2 -match level selector for the spec.
func (s VariableSpec) LevelSelector() string {
	switch s.LevelKind {
	case LevelMeanSea:
		return ":mean sea level:"
	case LevelHeightAboveGround:
		return fmt.Sprintf(":%d m above ground:", s.LevelValue)
	case LevelIsobaric:
		alts := make([]string, len(s.Levels))
		for i, l := range s.Levels {
			alts[i] = fmt.Sprintf("%d", l)
		}
		return fmt.Sprintf(":(%s) mb:", strings.Join(alts, "|"))
	default:
		return ":surface:"
	}
}

// Key identifies the spec within a job for consumed-once tracking.
func (s VariableSpec) Key() string {
	return string(s.Family) + "|" + s.Bucket.String() + "|" + s.Selector
}

var isobaricVars = []VarID{
	{Source: "SPFH", Discipline: 0, Category: 1, Number: 0, Scale: 1},
	{Source: "VVEL", Discipline: 0, Category: 2, Number: 8, Scale: 1},
	{Source: "VGRD", Discipline: 0, Category: 2, Number: 3, Scale: 1},
	{Source: "UGRD", Discipline: 0, Category: 2, Number: 2, Scale: 1},
	{Source: "HGT", Discipline: 0, Category: 3, Number: 5, Scale: Gravity},
	{Source: "TMP", Discipline: 0, Category: 0, Number: 0, Scale: 1},
}

const isobaricSelector = ":SPFH|VVEL|VGRD|UGRD|HGT|TMP:"

// Registry returns the active extraction specs for the level mode. The
// returned slice is freshly allocated; the underlying tables are never
// mutated at runtime.
func Registry(mode LevelMode) []VariableSpec {
	specs := []VariableSpec{
		{
			Selector:  ":HGT:",
			Vars:      []VarID{{Source: "HGT_surface", Discipline: 0, Category: 3, Number: 5, Scale: Gravity}},
			LevelKind: LevelSurface,
			Family:    FamilyPrimary, Bucket: BucketAnalysis,
			FirstStepOnly: true, Mandatory: true,
		},
		{
			Selector:  ":TMP:",
			Vars:      []VarID{{Source: "TMP_2maboveground", Discipline: 0, Category: 0, Number: 0, Scale: 1}},
			LevelKind: LevelHeightAboveGround, LevelValue: 2,
			Family: FamilyPrimary, Bucket: BucketAnalysis,
			Mandatory: true,
		},
		{
			Selector:  ":PRMSL:",
			Vars:      []VarID{{Source: "PRMSL_meansealevel", Discipline: 0, Category: 3, Number: 1, Scale: 1}},
			LevelKind: LevelMeanSea,
			Family:    FamilyPrimary, Bucket: BucketAnalysis,
			Mandatory: true,
		},
		{
			Selector: ":VGRD|UGRD:",
			Vars: []VarID{
				{Source: "UGRD_10maboveground", Discipline: 0, Category: 2, Number: 2, Scale: 1},
				{Source: "VGRD_10maboveground", Discipline: 0, Category: 2, Number: 3, Scale: 1},
			},
			LevelKind: LevelHeightAboveGround, LevelValue: 10,
			Family: FamilyPrimary, Bucket: BucketAnalysis,
			Mandatory: true,
		},
		{
			Selector:  isobaricSelector,
			Vars:      append([]VarID(nil), isobaricVars...),
			LevelKind: LevelIsobaric, Levels: mode.PrimaryLevels(),
			Family: FamilyPrimary, Bucket: BucketAnalysis,
			Mandatory: true,
		},
		{
			Selector:  ":LAND:",
			Vars:      []VarID{{Source: "LAND_surface", Discipline: 2, Category: 0, Number: 0, Scale: 1}},
			LevelKind: LevelSurface,
			Family:    FamilyPrimary, Bucket: BucketAccum,
			FirstStepOnly: true, Mandatory: true,
		},
		{
			Selector:  ":APCP:",
			Vars:      []VarID{{Source: "APCP_surface", Discipline: 0, Category: 1, Number: 8, Scale: PrecipDepthScale, ValidTimeOffset: AccumPeriod}},
			LevelKind: LevelSurface,
			Family:    FamilyPrimary, Bucket: BucketAccum,
		},
	}

	if extra := mode.SecondaryLevels(); len(extra) > 0 {
		specs = append(specs, VariableSpec{
			Selector:  isobaricSelector,
			Vars:      append([]VarID(nil), isobaricVars...),
			LevelKind: LevelIsobaric, Levels: extra,
			Family: FamilySecondary, Bucket: BucketAnalysis,
			Mandatory: true,
		})
	}
	return specs
}

// renameTable maps decoder-emitted names to canonical output names.
var renameTable = map[string]string{
	"HGT_surface":         "geopotential_at_surface",
	"LAND_surface":        "land_sea_mask",
	"PRMSL_meansealevel":  "mean_sea_level_pressure",
	"TMP_2maboveground":   "2m_temperature",
	"UGRD_10maboveground": "10m_u_component_of_wind",
	"VGRD_10maboveground": "10m_v_component_of_wind",
	"APCP_surface":        "total_precipitation_6hr",
	"HGT":                 "geopotential",
	"TMP":                 "temperature",
	"SPFH":                "specific_humidity",
	"VVEL":                "vertical_velocity",
	"UGRD":                "u_component_of_wind",
	"VGRD":                "v_component_of_wind",
}

// CanonicalName maps a decoder-emitted variable name to its canonical name.
func CanonicalName(source string) (string, bool) {
	c, ok := renameTable[source]
	return c, ok
}

// staticVars are time-invariant surface fields carried without batch or time
// dimensions in the harmonized dataset.
var staticVars = map[string]bool{
	"geopotential_at_surface": true,
	"land_sea_mask":           true,
}

// IsStatic reports whether a canonical variable is time-invariant.
func IsStatic(canonical string) bool {
	return staticVars[canonical]
}

// VerifyRegistry checks that the registry is internally consistent for the
// mode: every variable has a canonical rename target and a positive scale.
// An unmapped name is a configuration error, caught at startup rather than
// mid-merge.
func VerifyRegistry(mode LevelMode) error {
	for _, spec := range Registry(mode) {
		if len(spec.Vars) == 0 {
			return fmt.Errorf("spec %s: no variables", spec.Key())
		}
		for _, v := range spec.Vars {
			if _, ok := renameTable[v.Source]; !ok {
				return fmt.Errorf("spec %s: variable %q has no canonical name", spec.Key(), v.Source)
			}
			if v.Scale <= 0 {
				return fmt.Errorf("spec %s: variable %q has non-positive scale %v", spec.Key(), v.Source, v.Scale)
			}
		}
		if spec.LevelKind == LevelIsobaric && len(spec.Levels) == 0 {
			return fmt.Errorf("spec %s: isobaric spec without levels", spec.Key())
		}
	}
	return nil
}

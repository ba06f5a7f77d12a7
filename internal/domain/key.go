package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Family identifies one of the two companion archive files per forecast key.
type Family string

const (
	// FamilyPrimary is the pgrb2 file carrying surface fields and the
	// standard isobaric level set.
	FamilyPrimary Family = "pgrb2"

	// FamilySecondary is the pgrb2b file carrying the extra isobaric levels
	// used in 37-level mode.
	FamilySecondary Family = "pgrb2b"
)

// StemSuffix returns the filename suffix of the family in the stem layout,
// e.g. "20250720_06_004_pgrba.grib2".
func (f Family) StemSuffix() string {
	if f == FamilySecondary {
		return "_pgrbb.grib2"
	}
	return "_pgrba.grib2"
}

// CycleSuffix returns the filename suffix of the family in the NCEP cycle
// layout for the given lead, e.g. ".pgrb2.0p25.f004".
func (f Family) CycleSuffix(lead int) string {
	return fmt.Sprintf(".%s.0p25.f%03d", string(f), lead)
}

// CycleInterval is the spacing between GDAS forecast cycles.
const CycleInterval = 6 * time.Hour

var stemKeyRe = regexp.MustCompile(`^(\d{8})_(\d{2})_(\d{3})$`)

// ForecastKey identifies a unique forecast initialization and horizon.
type ForecastKey struct {
	Cycle time.Time // initialization time, UTC, hour precision
	Lead  int       // forecast hour offset from Cycle
}

// ParseForecastKey parses a stem-layout key like "20250720_06_004".
func ParseForecastKey(s string) (ForecastKey, error) {
	m := stemKeyRe.FindStringSubmatch(s)
	if m == nil {
		return ForecastKey{}, fmt.Errorf("forecast key %q: want yyyymmdd_hh_lll", s)
	}
	cycle, err := time.Parse("2006010215", m[1]+m[2])
	if err != nil {
		return ForecastKey{}, fmt.Errorf("forecast key %q: %w", s, err)
	}
	lead, err := strconv.Atoi(m[3])
	if err != nil {
		return ForecastKey{}, fmt.Errorf("forecast key %q: %w", s, err)
	}
	return ForecastKey{Cycle: cycle, Lead: lead}, nil
}

// String renders the key in the stem layout.
func (k ForecastKey) String() string {
	return fmt.Sprintf("%s_%03d", k.Cycle.UTC().Format("20060102_15"), k.Lead)
}

// ValidTime is the forecast valid time: cycle initialization plus lead.
func (k ForecastKey) ValidTime() time.Time {
	return k.Cycle.Add(time.Duration(k.Lead) * time.Hour)
}

// StemFileName is the filename of the given family in the stem layout.
func (k ForecastKey) StemFileName(f Family) string {
	return k.String() + f.StemSuffix()
}

// CycleFileName is the filename of the given family in the NCEP cycle layout.
func (k ForecastKey) CycleFileName(f Family) string {
	return fmt.Sprintf("gdas.t%02dz%s", k.Cycle.UTC().Hour(), f.CycleSuffix(k.Lead))
}

// CycleGlob is a glob pattern matching the family's file for any cycle hour,
// used when probing a directory whose cycle hour is encoded in the path.
func (k ForecastKey) CycleGlob(f Family) string {
	return "gdas.t*z" + f.CycleSuffix(k.Lead)
}

// WithLead returns a copy of the key at a different forecast hour.
func (k ForecastKey) WithLead(lead int) ForecastKey {
	return ForecastKey{Cycle: k.Cycle, Lead: lead}
}

// ArchiveFileSet maps each present file family to its resolved path.
// An absent family is a valid state; callers that need a family call Require.
type ArchiveFileSet map[Family]string

// Has reports whether the family was resolved.
func (s ArchiveFileSet) Has(f Family) bool {
	_, ok := s[f]
	return ok
}

// Require returns the path of the family or ErrNotFound if it is absent.
func (s ArchiveFileSet) Require(f Family) (string, error) {
	path, ok := s[f]
	if !ok {
		return "", fmt.Errorf("family %s: %w", f, ErrNotFound)
	}
	return path, nil
}

// Paths returns the resolved paths in deterministic order.
func (s ArchiveFileSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for _, f := range []Family{FamilyPrimary, FamilySecondary} {
		if p, ok := s[f]; ok {
			paths = append(paths, p)
		}
	}
	return paths
}

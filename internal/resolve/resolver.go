// Package resolve locates the companion GDAS archive files for a forecast
// key across one or more search roots.
//
// Two on-disk layouts are recognized: the stem layout used by pre-staged
// pairs ("20250720_06_004_pgrba.grib2") and the NCEP cycle layout produced
// by bucket downloads ("gdas.t06z.pgrb2.0p25.f004"). A missing family is a
// valid result, not an error; callers that need a family call Require on the
// returned set.
package resolve

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

var cycleNameRe = regexp.MustCompile(`^gdas\.t(\d{2})z\.pgrb2b?\.0p25\.f(\d{3})$`)
var cycleDirRe = regexp.MustCompile(`^gdas\.(\d{8})$`)
var dateComponentRe = regexp.MustCompile(`\d{8}`)

// Resolver probes search roots for archive files.
type Resolver struct {
	roots []string
	log   *slog.Logger
}

func New(roots []string, log *slog.Logger) *Resolver {
	return &Resolver{roots: roots, log: log}
}

// Resolve accepts either a forecast key in stem form ("20250720_06_004") or
// a filesystem path: an existing archive file, or a directory+stem prefix.
// It returns the key together with whichever families were found.
func (r *Resolver) Resolve(input string) (domain.ForecastKey, domain.ArchiveFileSet, error) {
	if key, err := domain.ParseForecastKey(input); err == nil {
		set, err := r.ResolveKey(key)
		return key, set, err
	}
	return r.ResolvePath(input)
}

// ResolveKey probes every search root in order and stops at the first root
// where at least one family is present. An empty set means no root had any
// matching file.
func (r *Resolver) ResolveKey(key domain.ForecastKey) (domain.ArchiveFileSet, error) {
	for _, root := range r.roots {
		set, err := r.probeRoot(root, key)
		if err != nil {
			return nil, err
		}
		if len(set) > 0 {
			r.log.Debug("resolved archive files", "key", key.String(), "root", root, "families", len(set))
			return set, nil
		}
	}
	r.log.Debug("no archive files found", "key", key.String(), "roots", len(r.roots))
	return domain.ArchiveFileSet{}, nil
}

func (r *Resolver) probeRoot(root string, key domain.ForecastKey) (domain.ArchiveFileSet, error) {
	set := domain.ArchiveFileSet{}
	for _, f := range []domain.Family{domain.FamilyPrimary, domain.FamilySecondary} {
		if p := existingFile(filepath.Join(root, key.StemFileName(f))); p != "" {
			set[f] = p
			continue
		}
		if p := existingFile(filepath.Join(root, key.CycleFileName(f))); p != "" {
			set[f] = p
			continue
		}
		matches, err := filepath.Glob(filepath.Join(root, key.CycleGlob(f)))
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", root, err)
		}
		switch len(matches) {
		case 0:
		case 1:
			set[f] = matches[0]
		default:
			return nil, fmt.Errorf("family %s: %d candidates under %s: %w",
				f, len(matches), root, domain.ErrAmbiguousSource)
		}
	}
	return set, nil
}

// ResolvePath resolves from a path instead of a key. If the path is an
// existing archive file, the sibling family is probed in the same directory.
// If the path names a directory entry without a family suffix, it is treated
// as a stem prefix and both family filenames are probed.
func (r *Resolver) ResolvePath(input string) (domain.ForecastKey, domain.ArchiveFileSet, error) {
	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		return r.resolveSibling(input)
	}
	return r.resolveStem(input)
}

// resolveSibling derives the shared stem from one existing family file and
// probes for the other family next to it.
func (r *Resolver) resolveSibling(path string) (domain.ForecastKey, domain.ArchiveFileSet, error) {
	base := filepath.Base(path)

	for _, f := range []domain.Family{domain.FamilyPrimary, domain.FamilySecondary} {
		suffix := f.StemSuffix()
		if !strings.HasSuffix(base, suffix) {
			continue
		}
		stem := strings.TrimSuffix(base, suffix)
		key, err := domain.ParseForecastKey(stem)
		if err != nil {
			return domain.ForecastKey{}, nil, fmt.Errorf("derive key from %s: %w", path, err)
		}
		set := domain.ArchiveFileSet{f: path}
		other := siblingFamily(f)
		if p := existingFile(filepath.Join(filepath.Dir(path), key.StemFileName(other))); p != "" {
			set[other] = p
		}
		return key, set, nil
	}

	if m := cycleNameRe.FindStringSubmatch(base); m != nil {
		return r.resolveCycleSibling(path, m)
	}
	return domain.ForecastKey{}, nil, fmt.Errorf("resolve %s: not a recognized archive filename", path)
}

// resolveCycleSibling handles the NCEP cycle layout, where the cycle date is
// carried by the directory path rather than the filename.
func (r *Resolver) resolveCycleSibling(path string, m []string) (domain.ForecastKey, domain.ArchiveFileSet, error) {
	hour, _ := strconv.Atoi(m[1])
	lead, _ := strconv.Atoi(m[2])

	cycle, ok := cycleDate(filepath.Dir(path))
	if !ok {
		return domain.ForecastKey{}, nil, fmt.Errorf("resolve %s: no cycle date in path", path)
	}
	key := domain.ForecastKey{Cycle: cycle.Add(time.Duration(hour) * time.Hour), Lead: lead}

	set := domain.ArchiveFileSet{}
	for _, f := range []domain.Family{domain.FamilyPrimary, domain.FamilySecondary} {
		candidate := filepath.Join(filepath.Dir(path), key.CycleFileName(f))
		if candidate == path || existingFile(candidate) != "" {
			set[f] = candidate
		}
	}
	return key, set, nil
}

// cycleDate derives the cycle date from the directory components, innermost
// first, so a digit-bearing ancestor never shadows the real cycle directory.
// An NCEP "gdas.<yyyymmdd>" component wins outright; otherwise the innermost
// component embedding a parseable eight-digit date is taken.
func cycleDate(dir string) (time.Time, bool) {
	comps := strings.Split(filepath.Clean(dir), string(filepath.Separator))
	for i := len(comps) - 1; i >= 0; i-- {
		if m := cycleDirRe.FindStringSubmatch(comps[i]); m != nil {
			if t, err := time.Parse("20060102", m[1]); err == nil {
				return t, true
			}
		}
	}
	for i := len(comps) - 1; i >= 0; i-- {
		for _, candidate := range dateComponentRe.FindAllString(comps[i], -1) {
			if t, err := time.Parse("20060102", candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// resolveStem treats the input as directory+stem and probes both family
// filenames there.
func (r *Resolver) resolveStem(input string) (domain.ForecastKey, domain.ArchiveFileSet, error) {
	key, err := domain.ParseForecastKey(filepath.Base(input))
	if err != nil {
		return domain.ForecastKey{}, nil, fmt.Errorf("resolve %s: %w", input, err)
	}
	set := domain.ArchiveFileSet{}
	for _, f := range []domain.Family{domain.FamilyPrimary, domain.FamilySecondary} {
		if p := existingFile(input + f.StemSuffix()); p != "" {
			set[f] = p
		}
	}
	return key, set, nil
}

func siblingFamily(f domain.Family) domain.Family {
	if f == domain.FamilyPrimary {
		return domain.FamilySecondary
	}
	return domain.FamilyPrimary
}

func existingFile(path string) string {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

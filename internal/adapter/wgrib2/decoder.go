// Package wgrib2 decodes GRIB2 archive files by shelling out to the wgrib2
// tool, which dumps the matched records to a NetCDF interchange file that is
// read back and deleted.
package wgrib2

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Benedict-Hyland/weather-modelling/internal/adapter/netcdfio"
	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/grid"
)

// Decoder runs one wgrib2 process per extraction call.
type Decoder struct {
	bin      string
	workDir  string
	keepWork bool
	logger   *slog.Logger
}

func NewDecoder(bin, workDir string, keepWork bool, logger *slog.Logger) *Decoder {
	return &Decoder{bin: bin, workDir: workDir, keepWork: keepWork, logger: logger}
}

func (d *Decoder) Name() string { return "wgrib2" }

// Extract matches the spec's variable and level selectors against the file
// and returns the decoded slices. The NetCDF interchange file is scoped to
// this call: created in the work directory with a unique name, consumed
// once, and removed even when decoding fails, unless keep-work is set.
func (d *Decoder) Extract(ctx context.Context, file string, spec domain.VariableSpec) ([]*grid.Dataset, error) {
	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(d.workDir, interchangePattern(file, spec))
	if err != nil {
		return nil, err
	}
	tmp.Close()
	if !d.keepWork {
		defer os.Remove(tmp.Name())
	}

	args := buildArgs(file, spec, tmp.Name())
	cmd := exec.CommandContext(ctx, d.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug("running wgrib2", "file", file, "selector", spec.Selector, "levels", spec.LevelSelector())
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("wgrib2 %s %s: %w: %v: %s",
			file, spec.Selector, domain.ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	ds, err := netcdfio.ReadRaw(tmp.Name())
	if err != nil {
		return nil, err
	}
	return []*grid.Dataset{ds}, nil
}

// buildArgs assembles the wgrib2 invocation: -nc_nlev sizes the vertical
// dimension of the NetCDF output, the two -match expressions select variable
// and level.
func buildArgs(file string, spec domain.VariableSpec, out string) []string {
	return []string{
		"-nc_nlev", strconv.Itoa(vertLevels(spec)),
		file,
		"-match", spec.Selector,
		"-match", spec.LevelSelector(),
		"-netcdf", out,
	}
}

func vertLevels(spec domain.VariableSpec) int {
	switch spec.LevelKind {
	case domain.LevelIsobaric:
		return len(spec.Levels)
	case domain.LevelHeightAboveGround:
		return 1
	default:
		return 0
	}
}

// interchangePattern yields a CreateTemp pattern unique per (file, spec) so
// concurrent extractions never collide on interchange names.
func interchangePattern(file string, spec domain.VariableSpec) string {
	sel := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, spec.Selector)
	return fmt.Sprintf("%s_%s_*.nc", filepath.Base(file), strings.Trim(sel, "-"))
}

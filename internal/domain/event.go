package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArtifactEvent announces one written output artifact to downstream
// consumers (typically the inference scheduler).
type ArtifactEvent struct {
	Key       string    `json:"key"`        // forecast key the artifact was built from
	Path      string    `json:"path"`       // artifact location on shared storage
	Format    string    `json:"format"`     // "zarr" or "netcdf"
	LevelMode int       `json:"levels"`     // 13 or 37
	Steps     int       `json:"steps"`      // number of time steps in the artifact
	WrittenAt time.Time `json:"written_at"` // from the injected clock
}

// ArtifactName derives the deterministic output artifact stem from the cycle
// time and run parameters. Repeated runs produce the same name so writers
// replace rather than accumulate stale partials. The date component is the
// cycle time plus one cycle interval, matching the convention of the archive
// this feeds.
func ArtifactName(cycle time.Time, mode LevelMode, steps int, leads []int) string {
	name := fmt.Sprintf("source-gdas_date-%s_res-0.25_levels-%d_steps-%d",
		cycle.Add(CycleInterval).UTC().Format("2006010215"), int(mode), steps)
	if len(leads) > 0 {
		hours := make([]string, len(leads))
		for i, l := range leads {
			hours[i] = fmt.Sprintf("f%03d", l)
		}
		name += "_fh-" + strings.Join(hours, "_")
	}
	return name
}

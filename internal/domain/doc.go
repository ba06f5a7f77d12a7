// Package domain models GDAS archive files and the extraction specifications
// used to harmonize them into canonical grid datasets.
//
// # Data Source
//
// Inputs are GDAS (Global Data Assimilation System) pressure-level GRIB2
// files at 0.25 degree resolution, one pair of companion files per forecast
// cycle and lead time. Two on-disk naming layouts are supported:
//
//	Cycle layout:  gdas.t<HH>z.pgrb2.0p25.f<LLL>   (NCEP operational naming)
//	Stem layout:   <yyyymmdd>_<hh>_<lll>_pgrba.grib2 / _pgrbb.grib2
//
// where HH is the cycle hour (00/06/12/18 UTC) and LLL the forecast hour.
//
// # File Families
//
// Each cycle/lead has up to two companion files:
//
//	pgrb2  (primary)   — surface fields plus the standard 13-level isobaric set
//	pgrb2b (secondary) — the extra isobaric levels needed for 37-level output
//
// The primary family is mandatory; the secondary is consulted only in
// 37-level mode and supplies levels {125, 175, 225, 775, 825, 875} hPa.
//
// # Forecast-Hour Buckets
//
// Extraction specs are bucketed by lead time. Leads f000–f005 carry the
// analysis-style fields (orography, 2 m temperature, MSL pressure, 10 m
// winds, the isobaric set); leads f006–f011 carry the accumulation bucket
// (land/sea mask and 6-hour accumulated precipitation).
//
// # Canonical Names and Units
//
// Source short names are renamed to the canonical vocabulary of the output
// dataset (2m_temperature, 10m_u_component_of_wind, geopotential, ...).
// Two unit conversions are applied at extraction time:
//
//	geopotential height [gpm]        × 9.80665  → geopotential [m²/s²]
//	accumulated precipitation [kg/m²] ÷ 1000    → depth [m]
//
// Accumulated precipitation is additionally stamped with the accumulation
// end time (valid time + 6 h).
//
// The rename table is total over the registry: every variable a spec can
// yield has a canonical target, enforced by [VerifyRegistry].
package domain

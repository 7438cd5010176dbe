// Package domain models municipal civic datasets and the risk scoring
// pipeline built on top of them.
//
// # Data Sources
//
// Inputs are locally stored snapshots of open-data exports: building code
// violations, 311 service requests, the SAM address registry, property
// assessments, a student-housing survey, and city-council district boundary
// polygons (GeoJSON). All tabular inputs are column-name addressed; column
// spelling varies between export vintages, so each canonical field carries an
// alias list (see the column aliases in normalize.go).
//
// # Address Normalization
//
// Records from different sources describe the same physical property with
// different address spellings. Normalization casefolds, strips punctuation,
// folds common street suffixes to their short form (street→st, avenue→ave,
// road→rd, boulevard→blvd, place→pl, court→ct) and drops apartment/unit/floor
// markers while keeping the unit number itself:
//
//	"123 Example Street Apt #2"  →  "123 example st 2"
//	"123 main street, apt 4"     →  "123 main st 4"
//
// Two records whose normalized addresses are equal refer to the same property.
//
// # Property Keys
//
// Property keys are deterministic SHA-256 short hashes. Records linked across
// two or more sources share an address-derived key ("prop-<hash>"); a record
// seen in only one source gets a key synthesized from that source's native id
// ("sam-<hash>", "assessment-<hash>", ...). The source prefix guarantees two
// sources can never collide even when their native ids are equal as strings.
// Deterministic keys make reruns reproducible: the same inputs always produce
// byte-identical output tables.
//
// # Risk Scoring
//
// Each violation contributes severity_weight × decay(age). Severity codes are
// ordinal 1..5 with strictly increasing weights {1:2, 2:4, 3:6, 4:8, 5:10}.
// Decay is exponential with a configurable half-life (default 180 days):
// decay(age) = 0.5^(age_days/half_life_days), so decay(0) = 1 and an event two
// half-lives old counts a quarter. Ages are measured against an explicit
// as-of date supplied by the caller, never the wall clock. 311 requests are
// unverified complaints and contribute at a fixed 0.4 multiplier relative to
// violations of comparable severity.
//
// # District Assignment
//
// Properties with coordinates are placed in council districts by
// point-in-polygon containment, polygons tested in input order. Polygons are
// assumed non-overlapping; a point contained by more than one polygon is a
// data-quality warning resolved by keeping the first match. Properties without
// coordinates, or outside every polygon, fall back to the district attribute
// carried in the source data; properties with neither are counted unmatched
// but never dropped from global totals.
package domain

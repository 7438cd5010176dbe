package domain

import (
	"math"
	"sort"
	"time"
)

// severityWeights maps ordinal severity codes to scoring weights. Strictly
// increasing: a higher code always outweighs a lower one at equal age.
var severityWeights = map[int]float64{
	1: 2,
	2: 4,
	3: 6,
	4: 8,
	5: 10,
}

// SeverityWeight returns the scoring weight for a severity code. Codes
// outside 1..5 are clamped.
func SeverityWeight(code int) float64 {
	if code < 1 {
		code = 1
	}
	if code > 5 {
		code = 5
	}
	return severityWeights[code]
}

// Decay down-weights an event by age with an exponential half-life:
// 0.5^(age_days/half_life_days). Decay(0) is exactly 1; events dated after
// the as-of date are not boosted.
func Decay(ageDays, halfLifeDays float64) float64 {
	if ageDays <= 0 {
		return 1
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// ageDays measures whole-day age of an event relative to the as-of date.
func ageDays(eventDate, asOf time.Time) float64 {
	return asOf.Sub(eventDate).Hours() / 24
}

// RiskConfig parameterizes scoring. AsOf is required: decay is always
// computed against an externally supplied date so reruns are reproducible.
type RiskConfig struct {
	AsOf              time.Time
	HalfLifeDays      float64
	RequestMultiplier float64
	FlagThreshold     float64
}

// DefaultRiskConfig returns the documented defaults: 180-day half-life, 311
// requests at 0.4 of violation weight, landlords flagged at aggregate ≥ 25.
func DefaultRiskConfig(asOf time.Time) RiskConfig {
	return RiskConfig{
		AsOf:              asOf,
		HalfLifeDays:      180,
		RequestMultiplier: 0.4,
		FlagThreshold:     25,
	}
}

// RiskResult is the scored output of one pipeline run.
type RiskResult struct {
	Properties []PropertyRisk
	Landlords  []LandlordRisk
}

// ScoreProperties links events to the registry and computes decayed
// severity-weighted scores per property, then aggregates to landlord level.
// Events that cannot be linked are excluded from scoring and counted in the
// report; a property with no events scores zero.
func ScoreProperties(reg *Registry, violations []ViolationEvent, requests []ServiceRequest311, cfg RiskConfig) (RiskResult, QualityReport) {
	report := QualityReport{RowsSeen: len(violations) + len(requests)}

	violationsByKey := make(map[string][]ViolationEvent)
	for _, ev := range violations {
		key, ok := linkEvent(reg, ev.PropertyKey, ev.Address, ev.District)
		if !ok {
			report.Unlinked++
			continue
		}
		ev.PropertyKey = key
		violationsByKey[key] = append(violationsByKey[key], ev)
	}

	requestsByKey := make(map[string][]ServiceRequest311)
	for _, ev := range requests {
		key, ok := linkEvent(reg, ev.PropertyKey, ev.Address, ev.District)
		if !ok {
			report.Unlinked++
			continue
		}
		ev.PropertyKey = key
		requestsByKey[key] = append(requestsByKey[key], ev)
	}
	report.RowsOut = report.RowsSeen - report.Unlinked
	report.RowsRejected = report.Unlinked

	properties := make([]PropertyRisk, 0, len(reg.Properties))
	for _, rec := range reg.Properties {
		violationScore := 0.0
		for _, ev := range violationsByKey[rec.PropertyKey] {
			violationScore += SeverityWeight(ev.SeverityCode) * Decay(ageDays(ev.Date, cfg.AsOf), cfg.HalfLifeDays)
		}
		requestScore := 0.0
		for _, ev := range requestsByKey[rec.PropertyKey] {
			requestScore += SeverityWeight(ev.SeverityCode) * Decay(ageDays(ev.Date, cfg.AsOf), cfg.HalfLifeDays)
		}

		properties = append(properties, PropertyRisk{
			PropertyKey:     rec.PropertyKey,
			Address:         rec.Address,
			District:        rec.District,
			Landlord:        rec.Landlord,
			Latitude:        rec.Latitude,
			Longitude:       rec.Longitude,
			ViolationEvents: len(violationsByKey[rec.PropertyKey]),
			RequestEvents:   len(requestsByKey[rec.PropertyKey]),
			ViolationScore:  violationScore,
			RequestScore:    requestScore,
			Score:           violationScore + cfg.RequestMultiplier*requestScore,
		})
	}

	landlords := aggregateLandlords(properties, cfg.FlagThreshold)
	applyLandlordFlags(properties, landlords)

	return RiskResult{Properties: properties, Landlords: landlords}, report
}

// linkEvent resolves an event to a property key, honoring a pre-linked key
// when present.
func linkEvent(reg *Registry, preLinked, address, district string) (string, bool) {
	if preLinked != "" {
		return preLinked, true
	}
	key, _, ok := reg.Lookup(address, district)
	return key, ok
}

// aggregateLandlords groups property scores by landlord identity. Properties
// with no landlord are excluded here but stay in the property-level output.
func aggregateLandlords(properties []PropertyRisk, threshold float64) []LandlordRisk {
	byLandlord := make(map[string]*LandlordRisk)
	for _, p := range properties {
		if p.Landlord == "" {
			continue
		}
		agg, ok := byLandlord[p.Landlord]
		if !ok {
			agg = &LandlordRisk{Landlord: p.Landlord}
			byLandlord[p.Landlord] = agg
		}
		agg.PropertyCount++
		agg.ViolationEvents += p.ViolationEvents
		agg.RequestEvents += p.RequestEvents
		agg.AggregateScore += p.Score
	}

	landlords := make([]LandlordRisk, 0, len(byLandlord))
	for _, name := range sortedKeys(byLandlord) {
		agg := byLandlord[name]
		agg.Flagged = agg.AggregateScore >= threshold
		landlords = append(landlords, *agg)
	}

	// Highest aggregate risk first; name breaks ties deterministically.
	sort.SliceStable(landlords, func(i, j int) bool {
		if landlords[i].AggregateScore != landlords[j].AggregateScore {
			return landlords[i].AggregateScore > landlords[j].AggregateScore
		}
		return landlords[i].Landlord < landlords[j].Landlord
	})
	return landlords
}

// applyLandlordFlags back-fills the per-property flagged_landlord column once
// landlord aggregates are known.
func applyLandlordFlags(properties []PropertyRisk, landlords []LandlordRisk) {
	flagged := make(map[string]bool, len(landlords))
	for _, l := range landlords {
		if l.Flagged {
			flagged[l.Landlord] = true
		}
	}
	for i := range properties {
		properties[i].FlaggedLandlord = flagged[properties[i].Landlord]
	}
}

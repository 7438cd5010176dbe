package domain

import (
	"sort"
	"strings"
)

// RegistryInput is one normalized record offered to the registry builder,
// regardless of which dataset it came from.
type RegistryInput struct {
	Source    Source
	NativeID  string
	Address   string
	District  string
	Landlord  string
	Latitude  *float64
	Longitude *float64
}

// RegistryOptions control the resolution strategy chain.
type RegistryOptions struct {
	// Fuzzy enables token-similarity matching as the last linking strategy
	// before falling back to a synthesized key.
	Fuzzy bool
	// FuzzyThreshold is the minimum Jaccard similarity for a fuzzy link.
	FuzzyThreshold float64
}

// DefaultRegistryOptions enable fuzzy linking at the threshold the original
// municipal datasets were tuned against.
func DefaultRegistryOptions() RegistryOptions {
	return RegistryOptions{Fuzzy: true, FuzzyThreshold: 0.6}
}

// addressIndex maps normalized (and composite address+district) forms to
// registry entries.
type addressIndex struct {
	byNormalized map[string]*PropertyRecord
	normalized   []string // sorted plain forms, for deterministic fuzzy scans
	dirty        bool
}

func newAddressIndex() *addressIndex {
	return &addressIndex{byNormalized: make(map[string]*PropertyRecord)}
}

func (idx *addressIndex) add(norm string, rec *PropertyRecord) {
	if norm == "" {
		return
	}
	if _, exists := idx.byNormalized[norm]; !exists {
		idx.byNormalized[norm] = rec
		idx.normalized = append(idx.normalized, norm)
		idx.dirty = true
	}
}

func (idx *addressIndex) sortedForms() []string {
	if idx.dirty {
		sort.Strings(idx.normalized)
		idx.dirty = false
	}
	return idx.normalized
}

// matchStrategy is one step of the resolution chain. Each strategy returns a
// definitive match-or-no-match so the resolution order stays auditable.
type matchStrategy interface {
	Name() string
	Match(normalized string, idx *addressIndex) (*PropertyRecord, bool)
}

// exactAddressMatch links records whose normalized addresses are equal.
type exactAddressMatch struct{}

func (exactAddressMatch) Name() string { return "exact" }

func (exactAddressMatch) Match(normalized string, idx *addressIndex) (*PropertyRecord, bool) {
	rec, ok := idx.byNormalized[normalized]
	return rec, ok
}

// fuzzyAddressMatch links records by token-set similarity. Catches residual
// spelling variance the normalization table does not fold (e.g. missing house
// number suffixes), at the cost of a linear scan.
type fuzzyAddressMatch struct {
	threshold float64
}

func (fuzzyAddressMatch) Name() string { return "fuzzy" }

func (s fuzzyAddressMatch) Match(normalized string, idx *addressIndex) (*PropertyRecord, bool) {
	best, _ := bestAddressMatch(normalized, idx.sortedForms(), s.threshold)
	if best == "" {
		return nil, false
	}
	return idx.byNormalized[best], true
}

// Registry is the canonical property registry for one pipeline run.
type Registry struct {
	// Properties is sorted by PropertyKey.
	Properties []*PropertyRecord

	index      *addressIndex
	strategies []matchStrategy
	opts       RegistryOptions
}

func linkStrategies(opts RegistryOptions) []matchStrategy {
	strategies := []matchStrategy{exactAddressMatch{}}
	if opts.Fuzzy {
		strategies = append(strategies, fuzzyAddressMatch{threshold: opts.FuzzyThreshold})
	}
	return strategies
}

// BuildRegistry resolves normalized multi-source records into one
// PropertyRecord per physical property. Every input maps to exactly one
// record; inputs that link to no other source stay in the registry under a
// synthesized key with Unmatched set.
func BuildRegistry(inputs []RegistryInput, opts RegistryOptions) (*Registry, QualityReport) {
	report := QualityReport{RowsSeen: len(inputs)}

	index := newAddressIndex()
	strategies := linkStrategies(opts)
	var entries []*PropertyRecord

	for _, in := range inputs {
		norm := NormalizeAddress(in.Address)

		var rec *PropertyRecord
		if norm != "" {
			for _, strategy := range strategies {
				if match, ok := strategy.Match(norm, index); ok {
					rec = match
					break
				}
			}
		}
		if rec == nil {
			rec = &PropertyRecord{
				Address:           in.Address,
				NormalizedAddress: norm,
				SourceIDs:         make(map[Source][]string),
			}
			entries = append(entries, rec)
			index.add(norm, rec)
		}
		mergeInput(rec, in)
	}

	for _, rec := range entries {
		assignKey(rec)
		if rec.Unmatched {
			report.Unmatched++
		}
	}
	dedupeKeys(entries)

	sort.Slice(entries, func(i, j int) bool { return entries[i].PropertyKey < entries[j].PropertyKey })
	report.RowsOut = len(entries)
	// Inputs folded into an existing entry count as deduplicated so the
	// conservation law still balances.
	report.RowsDeduplicated = len(inputs) - len(entries)

	reg := &Registry{Properties: entries, opts: opts}
	reg.rebuildIndex()
	return reg, report
}

// NewRegistry reconstructs a Registry from previously built records, e.g.
// when the risk stage reloads the registry table written by the prior stage.
func NewRegistry(records []*PropertyRecord, opts RegistryOptions) *Registry {
	sorted := make([]*PropertyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PropertyKey < sorted[j].PropertyKey })

	reg := &Registry{Properties: sorted, opts: opts}
	reg.rebuildIndex()
	return reg
}

// mergeInput folds a source record into a registry entry, keeping the first
// non-empty value per field and recording the source id.
func mergeInput(rec *PropertyRecord, in RegistryInput) {
	if rec.District == "" {
		rec.District = in.District
	}
	if rec.Landlord == "" {
		rec.Landlord = in.Landlord
	}
	if rec.Latitude == nil {
		rec.Latitude = in.Latitude
	}
	if rec.Longitude == nil {
		rec.Longitude = in.Longitude
	}
	id := in.NativeID
	if id == "" {
		id = rec.NormalizedAddress
	}
	for _, existing := range rec.SourceIDs[in.Source] {
		if existing == id {
			return
		}
	}
	rec.SourceIDs[in.Source] = append(rec.SourceIDs[in.Source], id)
}

// assignKey gives a record its canonical key: address-derived when linked
// across at least two sources, otherwise synthesized from the single source's
// native id (falling back to the normalized address for sources without one).
func assignKey(rec *PropertyRecord) {
	if len(rec.SourceIDs) >= 2 && rec.NormalizedAddress != "" {
		rec.PropertyKey = PropertyKeyFromAddress(rec.NormalizedAddress)
		return
	}
	rec.Unmatched = true
	for source, ids := range rec.SourceIDs {
		rec.PropertyKey = SyntheticKey(source, ids[0])
		return
	}
}

// dedupeKeys enforces key uniqueness when a source reuses a native id for
// distinct addresses; the later entry is re-salted with its address hash.
func dedupeKeys(entries []*PropertyRecord) {
	// Iterate in insertion order so the same input always keeps its key.
	seen := make(map[string]bool, len(entries))
	for _, rec := range entries {
		for seen[rec.PropertyKey] {
			rec.PropertyKey = rec.PropertyKey + "-" + shortHash(rec.NormalizedAddress+rec.Address)
		}
		seen[rec.PropertyKey] = true
	}
}

func (r *Registry) rebuildIndex() {
	r.index = newAddressIndex()
	r.strategies = linkStrategies(r.opts)
	for _, rec := range r.Properties {
		r.index.add(rec.NormalizedAddress, rec)
		if rec.District != "" {
			composite := NormalizeAddress(rec.Address + " " + rec.District)
			r.index.add(composite, rec)
		}
	}
}

// Lookup resolves an event address to a property key using the same strategy
// chain as registry construction, trying the plain normalized form first and
// the composite address+district form second. Returns the matching method
// name for audit logs.
func (r *Registry) Lookup(address, district string) (key, method string, ok bool) {
	norm := NormalizeAddress(address)
	if norm == "" {
		return "", "", false
	}

	forms := []string{norm}
	if district != "" {
		if composite := NormalizeAddress(address + " " + district); composite != norm {
			forms = append(forms, composite)
		}
	}

	for _, strategy := range r.strategies {
		for _, form := range forms {
			if rec, found := strategy.Match(form, r.index); found {
				return rec.PropertyKey, strategy.Name(), true
			}
		}
	}
	return "", "", false
}

// Get returns the registry entry for a property key.
func (r *Registry) Get(key string) (*PropertyRecord, bool) {
	for _, rec := range r.Properties {
		if rec.PropertyKey == key {
			return rec, true
		}
	}
	return nil, false
}

// SourcesField renders the source id map as the stable pipe-delimited form
// used in the registry table, e.g. "assessment:A1|sam:S4|sam:S5".
func (p *PropertyRecord) SourcesField() string {
	var parts []string
	for source, ids := range p.SourceIDs {
		for _, id := range ids {
			parts = append(parts, string(source)+":"+id)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// ParseSourcesField restores a source id map from its table form.
func ParseSourcesField(field string) map[Source][]string {
	out := make(map[Source][]string)
	if field == "" {
		return out
	}
	for _, part := range strings.Split(field, "|") {
		source, id, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		out[Source(source)] = append(out[Source(source)], id)
	}
	return out
}

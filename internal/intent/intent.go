// Package intent implements component E: a pure function mapping a
// free-text query to a typed Intent record, using config-supplied keyword
// and regex artifacts plus the immutable catalog name/series sets (never
// the module-level globals the source used — see SPEC_FULL §9).
package intent

import (
	"strings"

	"github.com/xrick/laptop-funnel-dialogue/internal/catalog"
	"github.com/xrick/laptop-funnel-dialogue/internal/config"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// Extractor holds the immutable config/catalog dependencies needed to
// resolve a query into an Intent. Constructed once at startup.
type Extractor struct {
	keywords        []config.IntentKeyword
	entityPatterns  map[string]config.CompiledEntityPattern
	comparisonWords []string
	names           map[string]struct{}
	series          map[string]struct{}
}

func New(domain *config.Domain, store catalog.Store) *Extractor {
	return &Extractor{
		keywords:        domain.IntentKeywords,
		entityPatterns:  domain.EntityPatterns,
		comparisonWords: domain.Funnel.TriggerKeywords.Comparison,
		names:           store.Names(),
		series:          store.Series(),
	}
}

// Extract is the pure extract(query) -> Intent operation of §4.E.
func (e *Extractor) Extract(query string) models.Intent {
	lower := strings.ToLower(query)

	modelNames := e.matchedEntities(query, lower, "MODEL_NAME", e.names)
	seriesKeys := e.matchedEntities(query, lower, "SERIES_KEY", e.series)

	topic := e.assignTopic(lower)
	if containsAny(lower, e.comparisonWords) && len(modelNames) >= 2 {
		topic = "comparison"
	}

	shape := models.ShapeUnknown
	switch {
	case len(modelNames) > 0:
		shape = models.ShapeSpecificModel
	case len(seriesKeys) > 0:
		shape = models.ShapeSeries
	}

	return models.Intent{
		ModelNames: modelNames,
		SeriesKeys: seriesKeys,
		Topic:      topic,
		Shape:      shape,
		RawQuery:   query,
	}
}

// matchedEntities finds every substring matched by any regex of kind,
// dedups preserving first-occurrence order, and filters to the known
// catalog set (names or series), preventing hallucinated references from
// leaking into downstream retrieval.
func (e *Extractor) matchedEntities(original, lower, kind string, known map[string]struct{}) []string {
	pat, ok := e.entityPatterns[kind]
	if !ok {
		return nil
	}

	var ordered []string
	seen := map[string]struct{}{}
	for _, re := range pat.Regexes {
		for _, m := range re.FindAllString(original, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			ordered = append(ordered, m)
		}
	}
	_ = lower // entity regexes run against the original-cased text; kept for symmetry with keyword matching

	out := make([]string, 0, len(ordered))
	for _, m := range ordered {
		if _, isKnown := known[m]; isKnown {
			out = append(out, m)
		}
	}
	return out
}

// RawSeriesCandidates returns every SERIES_KEY regex match in query,
// without filtering against the known catalog series set. The router (G)
// uses this to detect "looks like a series but isn't one" queries (§4.G
// point 3); Extract's ModelNames/SeriesKeys are deliberately pre-filtered
// and cannot serve that purpose.
func (e *Extractor) RawSeriesCandidates(query string) []string {
	pat, ok := e.entityPatterns["SERIES_KEY"]
	if !ok {
		return nil
	}
	var ordered []string
	seen := map[string]struct{}{}
	for _, re := range pat.Regexes {
		for _, m := range re.FindAllString(query, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// assignTopic scans the intent-keyword map in declaration order — the
// config file's order is authoritative; never sort by length or score.
func (e *Extractor) assignTopic(lower string) string {
	for _, kw := range e.keywords {
		for _, k := range kw.Keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				return kw.Topic
			}
		}
	}
	return "general"
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

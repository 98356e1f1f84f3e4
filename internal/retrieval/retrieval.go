// Package retrieval implements component H: mapping a (possibly
// funnel-augmented) Intent to the rows and target names the prompt
// builder and response shaper need, per SPEC_FULL §4.H.
package retrieval

import (
	"context"

	"github.com/xrick/laptop-funnel-dialogue/internal/catalog"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
	"github.com/xrick/laptop-funnel-dialogue/internal/vectorstore"
)

// enrichTopics are the topics for which vector enrichment runs when more
// than one row survives the catalog filter.
var enrichTopics = map[string]struct{}{"general": {}, "unclear": {}}

// Plan is the (rows, target_names) pair H produces, plus the optional
// DataUnavailable signal that routes J straight to a prose-only reply.
type Plan struct {
	Rows         []models.SKU
	TargetNames  []string
	Unavailable  bool
	UnavailField string
}

// Planner ties the catalog and vector store together for one turn.
type Planner struct {
	store       catalog.Store
	vectors     vectorstore.Store
	vectorTopK  int
	defaultSeries []string
}

func New(store catalog.Store, vectors vectorstore.Store, vectorTopK int, defaultSeries []string) *Planner {
	if vectorTopK <= 0 {
		vectorTopK = 5
	}
	return &Planner{store: store, vectors: vectors, vectorTopK: vectorTopK, defaultSeries: defaultSeries}
}

// Plan implements §4.H's algorithm. dbFilters is non-empty only on a
// funnel-completion path; it is ignored for specific_model/series shapes.
// For any other shape, an empty filter set or one that matches nothing
// yields the rows of the default series set.
func (p *Planner) Plan(ctx context.Context, in models.Intent, dbFilters []models.FieldFilter) Plan {
	var rows []models.SKU

	switch in.Shape {
	case models.ShapeSpecificModel:
		rows = p.store.ByName(ctx, in.ModelNames)
	case models.ShapeSeries:
		rows = p.store.BySeries(ctx, in.SeriesKeys)
	default:
		if len(dbFilters) > 0 {
			rows = applyFilters(p.store.All(ctx), dbFilters)
		}
		if len(rows) == 0 {
			rows = p.store.BySeries(ctx, p.defaultSeries)
		}
	}

	targetNames := make([]string, 0, len(rows))
	for _, r := range rows {
		targetNames = append(targetNames, r.Name)
	}

	if _, enrich := enrichTopics[in.Topic]; enrich && len(rows) > 1 && p.vectors != nil {
		rows, targetNames = p.enrich(ctx, in, rows, targetNames)
	}

	if field, ok := models.FieldForTopic(in.Topic); ok {
		if unavailable(rows, field) {
			return Plan{Rows: rows, TargetNames: targetNames, Unavailable: true, UnavailField: in.Topic}
		}
	}

	return Plan{Rows: rows, TargetNames: targetNames}
}

// enrich runs VectorStore.search and reorders rows so vector-ranked names
// come first, discarding vector hits that are not already catalog-filter
// survivors and preserving any survivor the vector store didn't rank.
func (p *Planner) enrich(ctx context.Context, in models.Intent, rows []models.SKU, targetNames []string) ([]models.SKU, []string) {
	query := in.Query()
	hits, err := p.vectors.Search(ctx, query, p.vectorTopK)
	if err != nil || len(hits) == 0 {
		return rows, targetNames
	}

	byName := make(map[string]models.SKU, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}

	var ordered []models.SKU
	used := make(map[string]struct{})
	for _, h := range hits {
		if sku, ok := byName[h.ModelName]; ok {
			if _, dup := used[h.ModelName]; dup {
				continue
			}
			ordered = append(ordered, sku)
			used[h.ModelName] = struct{}{}
		}
	}
	for _, r := range rows {
		if _, done := used[r.Name]; !done {
			ordered = append(ordered, r)
			used[r.Name] = struct{}{}
		}
	}

	names := make([]string, 0, len(ordered))
	for _, r := range ordered {
		names = append(names, r.Name)
	}
	return ordered, names
}

// unavailable implements the §4.H availability check: every retrieved
// row has an empty value for the topic's field.
func unavailable(rows []models.SKU, field string) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if r.Field(field) != "" {
			return false
		}
	}
	return true
}

func applyFilters(rows []models.SKU, filters []models.FieldFilter) []models.SKU {
	if len(filters) == 0 {
		return rows
	}
	out := make([]models.SKU, 0, len(rows))
	for _, r := range rows {
		if matchesAll(r, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r models.SKU, filters []models.FieldFilter) bool {
	for _, f := range filters {
		if !matches(r, f) {
			return false
		}
	}
	return true
}

func matches(r models.SKU, f models.FieldFilter) bool {
	v := r.Field(f.Field)
	switch f.Op {
	case models.FilterEquals:
		return v == f.Value
	case models.FilterIn:
		for _, want := range f.Values {
			if v == want {
				return true
			}
		}
		return false
	case models.FilterGTE:
		_, numeric := leadingNumber(v)
		return numeric && compareNumeric(v, f.Value) >= 0
	case models.FilterLTE:
		_, numeric := leadingNumber(v)
		return numeric && compareNumeric(v, f.Value) <= 0
	default:
		return false
	}
}

// Package router implements component G: the entry point for every user
// turn that is not itself a funnel answer, per SPEC_FULL §4.G. The
// router only classifies; it performs no retrieval.
package router

import (
	"regexp"

	"github.com/xrick/laptop-funnel-dialogue/internal/catalog"
	"github.com/xrick/laptop-funnel-dialogue/internal/funnel"
	"github.com/xrick/laptop-funnel-dialogue/internal/intent"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

var listAllPattern = regexp.MustCompile(`(?i)\blist all (models|series)\b|\bshow all (models|series)\b|所有(型號|系列)`)

// DecisionKind tags the router's classification.
type DecisionKind string

const (
	DecisionListAll       DecisionKind = "list_all"
	DecisionFunnelStart   DecisionKind = "funnel_start"
	DecisionUnknownSeries DecisionKind = "unknown_series"
	DecisionDirectAnswer  DecisionKind = "direct_answer"
)

// Decision is the router's output for one turn.
type Decision struct {
	Kind DecisionKind

	Names  []string // DecisionListAll
	Series []string // DecisionListAll

	Scenario string // DecisionFunnelStart

	RequestedSeries []string // DecisionUnknownSeries
	KnownSeries     []string // DecisionUnknownSeries

	Intent models.Intent // DecisionDirectAnswer
}

// Router ties the extractor, funnel activation check, and catalog
// together into the ordered decision of §4.G.
type Router struct {
	extractor       *intent.Extractor
	funnelCtl       *funnel.Controller
	catalogStore    catalog.Store
	lifestyleTopics []string
}

func New(extractor *intent.Extractor, funnelCtl *funnel.Controller, store catalog.Store, lifestyleTopics []string) *Router {
	return &Router{
		extractor:       extractor,
		funnelCtl:       funnelCtl,
		catalogStore:    store,
		lifestyleTopics: lifestyleTopics,
	}
}

// Route implements the four-rule decision order: list-all,
// known-unknown series, funnel trigger, direct answer. Known-unknown
// series precedes funnel activation so a query carrying an unresolved
// series-like token (e.g. "777 系列有哪些？", topic=general) is never
// swallowed by should_activate's general-topic trigger (§8 invariant 5).
func (r *Router) Route(query string) Decision {
	if listAllPattern.MatchString(query) {
		return Decision{
			Kind:   DecisionListAll,
			Names:  catalog.SortedNames(r.catalogStore),
			Series: catalog.SortedSeries(r.catalogStore),
		}
	}

	in := r.extractor.Extract(query)

	if unknown := r.unknownSeries(query, in); len(unknown) > 0 {
		return Decision{
			Kind:            DecisionUnknownSeries,
			RequestedSeries: unknown,
			KnownSeries:     catalog.SortedSeries(r.catalogStore),
		}
	}

	if active, scenario := r.funnelCtl.ShouldActivate(query, in, r.lifestyleTopics); active {
		return Decision{Kind: DecisionFunnelStart, Scenario: scenario}
	}

	return Decision{Kind: DecisionDirectAnswer, Intent: in}
}

// unknownSeries returns every series-like token in query that is not a
// known catalog series, i.e. a query that looks like it names a series
// but names one that does not exist (§4.G point 3, §8 invariant 5). It
// declines whenever a valid model or series was already resolved, per
// invariant 5's "no valid model/series" condition.
func (r *Router) unknownSeries(query string, in models.Intent) []string {
	if in.Shape == models.ShapeSpecificModel || len(in.SeriesKeys) > 0 {
		return nil
	}
	raw := r.extractor.RawSeriesCandidates(query)
	known := r.catalogStore.Series()

	var unknown []string
	for _, s := range raw {
		if _, ok := known[s]; !ok {
			unknown = append(unknown, s)
		}
	}
	return unknown
}

// Package response implements component J: turning the parsed LLM
// object (or a planner/LLM failure) into the final reply, per
// SPEC_FULL §4.J. Fallbacks are first-class: a fallback Response is
// syntactically indistinguishable from an LLM-produced one.
package response

import (
	"fmt"
	"strings"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// Shape builds the success-path reply: the parsed object, unchanged.
func Shape(parsed models.Response) models.Response {
	return parsed
}

// DataUnavailable builds the prose-only reply for §4.H's availability
// check: no LLM call is made for this path.
func DataUnavailable(field string, names []string) models.Response {
	summary := fmt.Sprintf("No %s data is registered for %s.", field, strings.Join(names, ", "))
	return models.Response{Summary: summary, Table: []models.Row{}}
}

// Unavailable builds the "service temporarily unavailable" reply used
// when retrieval itself times out (§5) and returns nothing to shape.
func Unavailable() models.Response {
	return models.Response{
		Summary: "The catalog service is temporarily unavailable. Please try again shortly.",
		Table:   []models.Row{},
	}
}

// Fallback builds the rule-based reply directly from rows when the LLM
// call fails or its output cannot be parsed into a valid table shape
// (§4.J): one row per topic-relevant field (every canonical field for
// comparison, otherwise just the topic's own field), columns equal to
// targetNames.
func Fallback(topic string, rows []models.SKU, targetNames []string) models.Response {
	fields := topicFields(topic)
	table := make([]models.Row, 0, len(fields))
	for _, f := range fields {
		row := models.Row{"feature": f}
		for _, name := range targetNames {
			row[name] = fieldFor(rows, name, f)
		}
		table = append(table, row)
	}

	return models.Response{
		Summary: "This reply is produced directly from catalog data, without LLM analysis.",
		Table:   table,
	}
}

func topicFields(topic string) []string {
	if field, ok := models.FieldForTopic(topic); ok {
		return []string{field}
	}
	return models.CanonicalFields
}

func fieldFor(rows []models.SKU, name, field string) string {
	for _, r := range rows {
		if r.Name == name {
			if v := r.Field(field); v != "" {
				return v
			}
			return "N/A"
		}
	}
	return "N/A"
}

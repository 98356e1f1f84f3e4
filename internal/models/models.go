// Package models holds the data types shared across the dialogue core:
// catalog rows, intents, funnel questions/sessions, and the canonical
// response shape. Component packages import models rather than
// redeclaring these shapes locally.
package models

import "time"

// SKU is one laptop configuration row from the catalog.
type SKU struct {
	Name   string            `json:"name" db:"model_name"`
	Series string            `json:"series" db:"series_key"`
	Fields map[string]string `json:"fields" db:"-"`
}

// Field returns the value for a spec field name, or "" if absent.
func (s SKU) Field(name string) string {
	return s.Fields[name]
}

// CanonicalFields is the fixed, ordered set of spec field names a SKU row
// may carry. Order here becomes row order for the comparison-topic
// fallback table (one row per field).
var CanonicalFields = []string{
	"cpu", "gpu", "memory", "storage", "lcd", "battery", "wireless",
	"weight", "price", "webcam", "keyboard", "audio", "ports", "os",
	"chassis", "color", "warranty", "touchpad", "thermal", "biometric",
	"connectivity", "resolution", "refresh_rate", "brightness", "panel", "dimensions",
}

// topicFieldAliases maps an intent topic to the canonical SKU field it
// names, for topics whose keyword (intent_keywords.json) differs from
// the field name itself.
var topicFieldAliases = map[string]string{
	"display": "lcd",
}

// FieldForTopic resolves an intent topic to the single canonical field
// it names, following any alias. Topics with no single field
// (general/unclear/comparison, lifestyle topics like portability/gaming)
// report ok=false.
func FieldForTopic(topic string) (string, bool) {
	if alias, ok := topicFieldAliases[topic]; ok {
		topic = alias
	}
	for _, f := range CanonicalFields {
		if f == topic {
			return f, true
		}
	}
	return "", false
}

// Shape is the resolved intent shape.
type Shape string

const (
	ShapeSpecificModel Shape = "specific_model"
	ShapeSeries        Shape = "series"
	ShapeUnknown       Shape = "unknown"
)

// Intent is the output of the entity+intent extractor (E), consumed by
// the router (G) and retrieval planner (H).
type Intent struct {
	ModelNames    []string
	SeriesKeys    []string
	Topic         string
	Shape         Shape
	RawQuery      string
	EnhancedQuery string // set on funnel-completion augmentation; "" means "use RawQuery"
}

// Query returns EnhancedQuery when set, else RawQuery.
func (i Intent) Query() string {
	if i.EnhancedQuery != "" {
		return i.EnhancedQuery
	}
	return i.RawQuery
}

// FilterOp is a comparison operator for a field filter rule.
type FilterOp string

const (
	FilterEquals FilterOp = "eq"
	FilterIn     FilterOp = "in"
	FilterGTE    FilterOp = "gte"
	FilterLTE    FilterOp = "lte"
)

// FieldFilter is a partial predicate over one SKU spec field. Values are
// compared as normalized numerics for gte/lte, exact (case-sensitive)
// string equality/membership otherwise.
type FieldFilter struct {
	Field  string   `json:"field" mapstructure:"field"`
	Op     FilterOp `json:"op" mapstructure:"op"`
	Value  string   `json:"value,omitempty" mapstructure:"value"`
	Values []string `json:"values,omitempty" mapstructure:"values"`
}

// Option is one selectable answer to a funnel Question.
type Option struct {
	OptionID    string        `json:"option_id" mapstructure:"option_id"`
	Label       string        `json:"label" mapstructure:"label"`
	Description string        `json:"description" mapstructure:"description"`
	Filters     []FieldFilter `json:"filters" mapstructure:"filters"`
}

// Question is one step of the funnel, static and loaded from config.
type Question struct {
	FeatureID  string   `json:"feature_id" mapstructure:"feature_id"`
	PromptText string   `json:"prompt_text" mapstructure:"prompt_text"`
	Options    []Option `json:"options" mapstructure:"options"`
}

// Session is the funnel's runtime state. Owned exclusively by the funnel
// controller; no other package mutates a Session's fields directly.
type Session struct {
	SessionID     string
	OriginalQuery string
	Scenario      string
	QuestionOrder []string
	StepIndex     int
	Answers       map[string]string // feature_id -> option_id
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Done reports whether every question in QuestionOrder has been answered.
func (s Session) Done() bool {
	return s.StepIndex >= len(s.QuestionOrder)
}

// Row is one line of a canonical comparison table: "feature" plus one
// column per compared SKU name, all string-valued.
type Row map[string]string

// Response is the canonical reply payload produced by J.
type Response struct {
	Summary string `json:"summary"`
	Table   []Row  `json:"table"`
}

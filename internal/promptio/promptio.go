// Package promptio implements component I: building the LLM prompt from
// retrieved rows and intent, and parsing/repairing/canonicalizing the
// model's reply, per SPEC_FULL §4.I. The <think> strip is purely
// syntactic and the accepted table shapes are canonicalized exactly
// once, here — no downstream package ever branches on shape again (§9).
package promptio

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// ErrNoJSONObject means no {...} span could be located in the reply, or
// the located span could not be decoded even after the repair passes.
var ErrNoJSONObject = errors.New("promptio: no JSON object found in reply")

// ErrTableShape means table was present but in none of the three
// accepted shapes; J treats this as an LLM-output failure.
var ErrTableShape = errors.New("promptio: table is not in an accepted shape")

const defaultTruncateWidth = 50
const maxRepairPasses = 4

var thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)

const envelopeSchemaJSON = `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "string"}
	}
}`

var envelopeSchema = mustCompileEnvelopeSchema()

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(envelopeSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("promptio: invalid envelope schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		panic(fmt.Sprintf("promptio: add envelope schema: %v", err))
	}
	s, err := c.Compile("envelope.json")
	if err != nil {
		panic(fmt.Sprintf("promptio: compile envelope schema: %v", err))
	}
	return s
}

// Builder assembles prompts from the domain prompt template.
type Builder struct {
	template      string
	truncateWidth int
}

func NewBuilder(template string, truncateWidth int) *Builder {
	if truncateWidth <= 0 {
		truncateWidth = defaultTruncateWidth
	}
	return &Builder{template: template, truncateWidth: truncateWidth}
}

// Build serializes rows (restricted to the topic's relevant fields,
// or every canonical field for comparison), any stated funnel
// preferences, and the resolved intent into the template's {context}
// and {query} placeholders, prefixed by a short instruction block.
func (b *Builder) Build(in models.Intent, rows []models.SKU, targetNames []string, preferences map[string]string) string {
	var ctx strings.Builder

	ctx.WriteString("Intent analysis: topic=")
	ctx.WriteString(in.Topic)
	ctx.WriteString(", shape=")
	ctx.WriteString(string(in.Shape))
	ctx.WriteString(", target_names=[")
	ctx.WriteString(strings.Join(targetNames, ", "))
	ctx.WriteString("]\n")
	ctx.WriteString("Focus strictly on these models and this topic. Reply with one JSON object: {\"summary\": ..., \"table\": [...]}.\n\n")

	if len(preferences) > 0 {
		ctx.WriteString("Stated preferences:\n")
		for _, k := range sortedKeys(preferences) {
			fmt.Fprintf(&ctx, "  - %s: %s\n", k, preferences[k])
		}
		ctx.WriteString("\n")
	}

	fields := relevantFields(in.Topic)
	ctx.WriteString("Catalog data:\n")
	for _, r := range rows {
		ctx.WriteString("- ")
		ctx.WriteString(r.Name)
		ctx.WriteString(" (series ")
		ctx.WriteString(r.Series)
		ctx.WriteString("):")
		for _, f := range fields {
			v := r.Field(f)
			if v == "" {
				continue
			}
			fmt.Fprintf(&ctx, " %s=%s;", f, v)
		}
		ctx.WriteString("\n")
	}

	prompt := strings.ReplaceAll(b.template, "{context}", ctx.String())
	prompt = strings.ReplaceAll(prompt, "{query}", in.Query())
	return prompt
}

func relevantFields(topic string) []string {
	if field, ok := models.FieldForTopic(topic); ok {
		return []string{field}
	}
	return models.CanonicalFields
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Parser turns a raw LLM reply into the canonical models.Response shape.
type Parser struct {
	truncateWidth int
	targetNames   []string
}

func NewParser(truncateWidth int, targetNames []string) *Parser {
	if truncateWidth <= 0 {
		truncateWidth = defaultTruncateWidth
	}
	return &Parser{truncateWidth: truncateWidth, targetNames: targetNames}
}

// Parse implements the four-step procedure of §4.I.
func (p *Parser) Parse(reply string) (models.Response, error) {
	stripped := thinkBlock.ReplaceAllString(reply, "")

	span, ok := extractBraces(stripped)
	if !ok {
		return models.Response{}, ErrNoJSONObject
	}

	obj, err := decodeWithRepair(span)
	if err != nil {
		return models.Response{}, fmt.Errorf("promptio: %w: %v", ErrNoJSONObject, err)
	}

	var doc any = obj
	if err := envelopeSchema.Validate(doc); err != nil {
		return models.Response{}, fmt.Errorf("promptio: envelope validation: %w", err)
	}

	summary, _ := obj["summary"].(string)
	rawTable, hasTable := obj["table"]
	if !hasTable {
		return models.Response{Summary: summary, Table: []models.Row{}}, nil
	}

	rows, err := p.canonicalizeTable(rawTable)
	if err != nil {
		return models.Response{}, err
	}
	return models.Response{Summary: summary, Table: rows}, nil
}

// canonicalizeTable converts any of the three accepted shapes (§4.I) into
// the single internal list-of-row-maps shape, with fixed column order
// (feature, then target_names), "N/A" fill, and value truncation.
func (p *Parser) canonicalizeTable(raw any) ([]models.Row, error) {
	switch t := raw.(type) {
	case []any:
		return p.canonicalizeRowList(t)
	case map[string]any:
		if isTransposed(t) {
			return p.canonicalizeTransposed(t)
		}
		return p.canonicalizeSingleRow(t)
	default:
		return nil, ErrTableShape
	}
}

func isTransposed(m map[string]any) bool {
	for _, v := range m {
		if _, ok := v.([]any); !ok {
			return false
		}
	}
	return len(m) > 0
}

func (p *Parser) canonicalizeRowList(list []any) ([]models.Row, error) {
	rows := make([]models.Row, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, ErrTableShape
		}
		rows = append(rows, p.buildRow(stringify(m["feature"]), m))
	}
	return rows, nil
}

func (p *Parser) canonicalizeTransposed(m map[string]any) ([]models.Row, error) {
	featureCol, ok := m["Feature"].([]any)
	if !ok {
		featureCol, ok = m["feature"].([]any)
		if !ok {
			return nil, ErrTableShape
		}
	}
	rows := make([]models.Row, 0, len(featureCol))
	for i, feat := range featureCol {
		row := models.Row{"feature": stringify(feat)}
		for _, name := range p.targetNames {
			col, ok := m[name].([]any)
			if !ok || i >= len(col) {
				row[name] = "N/A"
				continue
			}
			row[name] = p.truncate(stringify(col[i]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Parser) canonicalizeSingleRow(m map[string]any) ([]models.Row, error) {
	return []models.Row{p.buildRow(stringify(m["feature"]), m)}, nil
}

func (p *Parser) buildRow(feature string, m map[string]any) models.Row {
	row := models.Row{"feature": feature}
	for _, name := range p.targetNames {
		v, ok := m[name]
		if !ok {
			row[name] = "N/A"
			continue
		}
		row[name] = p.truncate(stringify(v))
	}
	return row
}

func (p *Parser) truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= p.truncateWidth {
		return s
	}
	return string(runes[:p.truncateWidth]) + "…"
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "N/A"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// extractBraces returns the substring from the first '{' to its matching
// last '}', tolerating nested braces.
func extractBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeWithRepair attempts strict decoding, then a bounded number of
// idempotent repair passes (§4.I point 3).
func decodeWithRepair(span string) (map[string]any, error) {
	if obj, err := strictDecode(span); err == nil {
		return obj, nil
	}

	repaired := span
	var lastErr error
	for i := 0; i < maxRepairPasses; i++ {
		next := repairPass(repaired)
		if obj, err := strictDecode(next); err == nil {
			return obj, nil
		} else {
			lastErr = err
		}
		if next == repaired {
			break // fixed point reached; further passes would not help
		}
		repaired = next
	}
	return nil, lastErr
}

func strictDecode(s string) (map[string]any, error) {
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

var (
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

// repairPass applies one idempotent pass of the bounded repair set:
// quote unquoted keys, convert single to double quotes, drop trailing
// commas, collapse accidental duplicate braces.
func repairPass(s string) string {
	s = unquotedKeyPattern.ReplaceAllString(s, `$1"$2"$3`)
	s = strings.ReplaceAll(s, "'", `"`)
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = collapseOuterDuplicateBraces(s)
	return s
}

// collapseOuterDuplicateBraces strips one layer of accidental `{{...}}`
// wrapping at the very start/end of the span, leaving legitimate nested
// objects untouched.
func collapseOuterDuplicateBraces(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		return "{" + strings.TrimSuffix(strings.TrimPrefix(trimmed, "{{"), "}}") + "}"
	}
	return s
}
